package github

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

// MutateBatch mutates every user concurrently. Calls are launched in input
// order, one per stagger interval, and awaited together.
func (c *Client) MutateBatch(ctx context.Context, verb ports.Verb, users []domain.Username, stagger time.Duration) map[domain.Username]bool {
	outcomes := launchStaggered(ctx, len(users), stagger, func(ctx context.Context, i int) bool {
		return c.Mutate(ctx, verb, users[i])
	})

	results := make(map[domain.Username]bool, len(users))
	for i, u := range users {
		results[u] = outcomes[i]
	}
	return results
}

// FetchBatch samples follower pages for every request concurrently. A
// failure is recorded for that user only.
func (c *Client) FetchBatch(ctx context.Context, requests []ports.PageRequest, stagger time.Duration) map[domain.Username]ports.FetchResult {
	outcomes := launchStaggered(ctx, len(requests), stagger, func(ctx context.Context, i int) ports.FetchResult {
		users, err := c.FollowerPages(ctx, requests[i].User, requests[i].Pages)
		if err != nil {
			c.log.Warn("follower fetch failed",
				slog.String("user", string(requests[i].User)),
				slog.Any("error", err))
		}
		return ports.FetchResult{Users: users, Err: err}
	})

	results := make(map[domain.Username]ports.FetchResult, len(requests))
	for i, r := range requests {
		results[r.User] = outcomes[i]
	}
	return results
}

// launchStaggered runs call for 0..n-1, starting one goroutine per stagger
// tick. Results are indexed by input position, not completion order.
func launchStaggered[T any](ctx context.Context, n int, stagger time.Duration, call func(ctx context.Context, i int) T) []T {
	results := make([]T, n)

	var limiter *rate.Limiter
	if stagger > 0 {
		limiter = rate.NewLimiter(rate.Every(stagger), 1)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if limiter != nil && ctx.Err() == nil {
			// A cancelled wait still launches the call, which then fails fast.
			_ = limiter.Wait(ctx)
		}
		wg.Go(func() {
			results[i] = call(ctx, i)
		})
	}
	wg.Wait()

	return results
}
