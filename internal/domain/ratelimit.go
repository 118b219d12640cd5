package domain

import "time"

// RateLimitWindow is the quota state advertised by the X-RateLimit-* headers
type RateLimitWindow struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Exhausted reports whether no requests remain in the window
func (w RateLimitWindow) Exhausted() bool {
	return w.Remaining == 0
}

// WaitDuration returns how long until the window resets, never negative.
// Sub-second remainders are dropped, matching the header's precision.
func (w RateLimitWindow) WaitDuration(now time.Time) time.Duration {
	d := w.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return d.Truncate(time.Second)
}
