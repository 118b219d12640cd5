package ports

import (
	"context"
	"time"

	"github.com/devbush/submanager/internal/domain"
)

// Resource selects which relationship list to page through.
type Resource string

const (
	ResourceFollowers Resource = "followers"
	ResourceFollowing Resource = "following"
)

// Verb is a relationship mutation.
type Verb string

const (
	VerbFollow   Verb = "follow"
	VerbUnfollow Verb = "unfollow"
)

// PageRequest asks for specific follower pages of one user.
type PageRequest struct {
	User  domain.Username
	Pages []int // 1-based, fetched in increasing order
}

// FetchResult is the outcome of one subject in a fetch batch.
type FetchResult struct {
	Users []domain.Username
	Err   error
}

// GraphClient talks to the remote follow graph.
type GraphClient interface {
	// Paginated reads

	// ListPaged fetches every page of a user's followers or following list.
	// maxPages <= 0 means no limit.
	ListPaged(ctx context.Context, resource Resource, user domain.Username, maxPages int) ([]domain.Username, error)

	// FollowerPages fetches only the given follower pages of a user.
	FollowerPages(ctx context.Context, user domain.Username, pages []int) ([]domain.Username, error)

	// Mutations

	// Mutate follows or unfollows a single user. Failures are logged and reported as false.
	Mutate(ctx context.Context, verb Verb, user domain.Username) bool

	// IsFollowing reports whether the authenticated account follows user.
	IsFollowing(ctx context.Context, user domain.Username) (bool, error)

	// Batches

	// MutateBatch mutates every user, launching one call per stagger interval.
	MutateBatch(ctx context.Context, verb Verb, users []domain.Username, stagger time.Duration) map[domain.Username]bool

	// FetchBatch runs FollowerPages for each request, launching one call per stagger interval.
	FetchBatch(ctx context.Context, requests []PageRequest, stagger time.Duration) map[domain.Username]FetchResult

	// Health

	// CheckConnectivity verifies the API is reachable and the credentials are accepted.
	CheckConnectivity(ctx context.Context) error

	// RateLimit returns the most recently observed rate-limit window.
	RateLimit() (domain.RateLimitWindow, bool)
}
