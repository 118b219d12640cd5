package domain

import "time"

// ProtectedAccount is an account followed through discovery. It is kept
// even when it does not follow back, until its retention period runs out.
type ProtectedAccount struct {
	Username   Username
	AcquiredAt time.Time
}

// DaysHeld returns the number of calendar days between acquisition and now,
// counted in the acquisition's time zone.
func (p ProtectedAccount) DaysHeld(now time.Time) int {
	return int(calendarDate(now.In(p.AcquiredAt.Location())).Sub(calendarDate(p.AcquiredAt)) / (24 * time.Hour))
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsExpired reports whether more than retentionDays whole days have passed.
// An account held exactly retentionDays days is still active.
func (p ProtectedAccount) IsExpired(now time.Time, retentionDays int) bool {
	return p.DaysHeld(now) > retentionDays
}

// PartitionProtected splits accounts into active and expired, keeping order.
func PartitionProtected(accounts []ProtectedAccount, now time.Time, retentionDays int) (active, expired []ProtectedAccount) {
	for _, a := range accounts {
		if a.IsExpired(now, retentionDays) {
			expired = append(expired, a)
		} else {
			active = append(active, a)
		}
	}
	return active, expired
}

// ProtectedNames returns the usernames of accounts as a set.
func ProtectedNames(accounts []ProtectedAccount) UserSet {
	s := make(UserSet, len(accounts))
	for _, a := range accounts {
		s.Add(a.Username)
	}
	return s
}
