package domain

// SubscriptionState is the working view of one reconciliation run.
type SubscriptionState struct {
	Followers           UserSet // accounts following us
	Following           UserSet // accounts we follow
	ExcludeFromFollow   UserSet // never follow (never_follow + ignore_completely)
	ExcludeFromUnfollow UserSet // never unfollow (never_unfollow)
	Protected           UserSet // active protected accounts
}

// NewSubscriptionState returns a state with every set allocated.
func NewSubscriptionState() *SubscriptionState {
	return &SubscriptionState{
		Followers:           make(UserSet),
		Following:           make(UserSet),
		ExcludeFromFollow:   make(UserSet),
		ExcludeFromUnfollow: make(UserSet),
		Protected:           make(UserSet),
	}
}

// UsersToFollow returns followers we do not follow yet, minus exclusions.
func (s *SubscriptionState) UsersToFollow() UserSet {
	return s.Followers.Minus(s.Following, s.ExcludeFromFollow)
}

// UsersToUnfollow returns accounts we follow that neither follow back nor
// are protected, minus exclusions.
func (s *SubscriptionState) UsersToUnfollow() UserSet {
	return s.Following.Minus(s.Followers, s.Protected).Minus(s.ExcludeFromUnfollow)
}

// Plan holds the sorted mutations for one run
type Plan struct {
	Follow   []Username
	Unfollow []Username
}

// Plan computes both mutation lists in lexicographic order.
func (s *SubscriptionState) Plan() Plan {
	return Plan{
		Follow:   s.UsersToFollow().Sorted(),
		Unfollow: s.UsersToUnfollow().Sorted(),
	}
}
