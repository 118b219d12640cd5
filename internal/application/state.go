package application

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

// Exclusions are the user-supplied lists, read-only for a run
type Exclusions struct {
	Follow   domain.UserSet // never follow
	Unfollow domain.UserSet // never unfollow
}

// fetchState loads followers and following concurrently and strips the
// exclusion lists from each.
func fetchState(ctx context.Context, client ports.GraphClient, self domain.Username, excl Exclusions) (*domain.SubscriptionState, error) {
	var followers, following []domain.Username

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		followers, err = client.ListPaged(gctx, ports.ResourceFollowers, self, 0)
		return err
	})
	g.Go(func() error {
		var err error
		following, err = client.ListPaged(gctx, ports.ResourceFollowing, self, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	state := domain.NewSubscriptionState()
	if excl.Follow != nil {
		state.ExcludeFromFollow = excl.Follow.Clone()
	}
	if excl.Unfollow != nil {
		state.ExcludeFromUnfollow = excl.Unfollow.Clone()
	}

	state.Followers = domain.NewUserSet(followers...).Minus(state.ExcludeFromFollow)
	state.Following = domain.NewUserSet(following...).Minus(state.ExcludeFromUnfollow)
	state.Followers.Remove(self)
	state.Following.Remove(self)

	return state, nil
}

// sweepProtected loads the stored protected accounts, splits them by
// retention and, when persist is set, writes back the active ones. A failed
// load is treated as an empty store and nothing is written, so the file is
// never truncated because of a read error.
func sweepProtected(ctx context.Context, store ports.ProtectedStore, now time.Time, retentionDays int, persist bool, log *slog.Logger) (active, expired []domain.ProtectedAccount) {
	stored, err := store.Load(ctx)
	if err != nil {
		log.Error("failed to load protected accounts", slog.Any("error", err))
		return nil, nil
	}

	active, expired = domain.PartitionProtected(stored, now, retentionDays)
	log.Info("protected accounts checked",
		slog.Int("active", len(active)),
		slog.Int("expired", len(expired)))

	if !persist {
		return active, expired
	}
	if err := store.Save(ctx, active); err != nil {
		log.Error("failed to save protected accounts", slog.Any("error", err))
	}
	return active, expired
}
