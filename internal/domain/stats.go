package domain

// Statistics summarises the current follow graph
type Statistics struct {
	Followers        int
	Following        int
	Mutual           int
	NotFollowingBack int // we follow them, they do not follow us
	NotFollowedBack  int // they follow us, we do not follow them
	BannedFollowers  int
	BannedFollowing  int

	DiscoveryEnabled bool
	ProtectedActive  int
	ProtectedExpired int

	RateLimit *RateLimitWindow
}

// ComputeStatistics derives the counts from a fetched state.
func ComputeStatistics(s *SubscriptionState) *Statistics {
	return &Statistics{
		Followers:        s.Followers.Len(),
		Following:        s.Following.Len(),
		Mutual:           s.Followers.Intersect(s.Following).Len(),
		NotFollowingBack: s.Following.Minus(s.Followers).Len(),
		NotFollowedBack:  s.Followers.Minus(s.Following).Len(),
		BannedFollowers:  s.ExcludeFromFollow.Len(),
		BannedFollowing:  s.ExcludeFromUnfollow.Len(),
	}
}
