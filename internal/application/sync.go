package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

// SyncOptions configures a reconciliation run
type SyncOptions struct {
	Self       domain.Username
	Exclusions Exclusions

	Discovery       bool // grow following through discovery
	RetentionDays   int  // days a discovered account stays protected
	TargetProtected int  // protected accounts to keep active

	BatchSize  int           // mutations per sub-batch
	BatchDelay time.Duration // pause between sub-batches
	Stagger    time.Duration // pause between launches inside a sub-batch

	DryRun bool // compute the plan without mutating
}

// DefaultSyncOptions returns the standard batching parameters
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		RetentionDays:   3,
		TargetProtected: 500,
		BatchSize:       5,
		BatchDelay:      1500 * time.Millisecond,
		Stagger:         500 * time.Millisecond,
	}
}

// MutationTally aggregates the outcome of one mutation stream
type MutationTally struct {
	Attempted int
	Succeeded int
	Failed    []domain.Username
}

// RunReport describes what a run did
type RunReport struct {
	Plan     domain.Plan
	Follow   MutationTally
	Unfollow MutationTally

	ProtectedActive  int
	ProtectedExpired int
	Discovered       []domain.Username

	DryRun bool
}

// ProgressFunc is called after every sub-batch with that batch's results.
// The follow and unfollow streams call it concurrently.
type ProgressFunc func(verb ports.Verb, results map[domain.Username]bool)

// SyncService reconciles the following list against followers
type SyncService struct {
	client    ports.GraphClient
	store     ports.ProtectedStore
	discovery *DiscoveryService
	opts      SyncOptions
	log       *slog.Logger

	now      func() time.Time
	progress ProgressFunc
	planned  func(domain.Plan)
}

// NewSyncService creates a sync service. store and discovery may be nil
// when discovery is disabled.
func NewSyncService(client ports.GraphClient, store ports.ProtectedStore, discovery *DiscoveryService, opts SyncOptions, logger *slog.Logger) *SyncService {
	def := DefaultSyncOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		client:    client,
		store:     store,
		discovery: discovery,
		opts:      opts,
		log:       logger.With("subsystem", "sync"),
		now:       time.Now,
	}
}

// OnProgress registers a callback for sub-batch completion.
func (s *SyncService) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

// OnPlan registers a callback invoked once the plan is known, before any
// mutation is issued.
func (s *SyncService) OnPlan(fn func(domain.Plan)) {
	s.planned = fn
}

// Run performs one full reconciliation pass.
func (s *SyncService) Run(ctx context.Context) (*RunReport, error) {
	if err := s.client.CheckConnectivity(ctx); err != nil {
		return nil, err
	}

	s.log.Info("loaded exclusion lists",
		slog.Int("never_follow", s.opts.Exclusions.Follow.Len()),
		slog.Int("never_unfollow", s.opts.Exclusions.Unfollow.Len()))

	state, err := fetchState(ctx, s.client, s.opts.Self, s.opts.Exclusions)
	if err != nil {
		s.log.Error("failed to fetch subscription state", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch current state: %w", err)
	}
	s.log.Info("fetched subscription state",
		slog.Int("followers", state.Followers.Len()),
		slog.Int("following", state.Following.Len()))

	report := &RunReport{DryRun: s.opts.DryRun}

	if s.opts.Discovery && s.store != nil {
		if err := s.protect(ctx, state, report); err != nil {
			return nil, err
		}
	}

	report.Plan = state.Plan()
	s.log.Info("computed plan",
		slog.Int("follow", len(report.Plan.Follow)),
		slog.Int("unfollow", len(report.Plan.Unfollow)))

	if s.opts.DryRun {
		return report, nil
	}
	if s.planned != nil {
		s.planned(report.Plan)
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		report.Follow = s.apply(ctx, ports.VerbFollow, report.Plan.Follow)
	})
	wg.Go(func() {
		report.Unfollow = s.apply(ctx, ports.VerbUnfollow, report.Plan.Unfollow)
	})
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.log.Info("sync completed",
		slog.Int("followed", report.Follow.Succeeded),
		slog.Int("unfollowed", report.Unfollow.Succeeded),
		slog.Int("failed", len(report.Follow.Failed)+len(report.Unfollow.Failed)))
	return report, nil
}

// protect folds protected accounts into the working state and tops them up
// through discovery. Expired accounts are removed from Following, which
// keeps them out of this run's unfollow list.
// TODO: decide whether expired accounts should be unfollowed by the run that
// expires them rather than on the next run.
// A dry run computes the same state but writes nothing to the store.
func (s *SyncService) protect(ctx context.Context, state *domain.SubscriptionState, report *RunReport) error {
	now := s.now()
	persist := !s.opts.DryRun
	active, expired := sweepProtected(ctx, s.store, now, s.opts.RetentionDays, persist, s.log)
	report.ProtectedActive = len(active)
	report.ProtectedExpired = len(expired)

	state.Following.Remove(domain.ProtectedNames(expired).Sorted()...)

	// Discovery seeds from real followers only.
	seeds := state.Followers.Clone()

	activeNames := domain.ProtectedNames(active)
	state.Followers = state.Followers.Union(activeNames)
	state.Protected = state.Protected.Union(activeNames)

	needed := s.opts.TargetProtected - len(active)
	if needed <= 0 || s.discovery == nil {
		s.log.Info("no new protected accounts needed", slog.Int("active", len(active)))
		return nil
	}

	s.log.Info("searching for new accounts", slog.Int("needed", needed))
	found, err := s.discovery.FindCandidates(ctx, seeds, state.ExcludeFromFollow, needed)
	if err != nil {
		return fmt.Errorf("discovery interrupted: %w", err)
	}
	if len(found) == 0 {
		return nil
	}

	updated := active
	for _, u := range found {
		if !activeNames.Has(u) {
			updated = append(updated, domain.ProtectedAccount{Username: u, AcquiredAt: now})
		}
	}
	if persist {
		if err := s.store.Save(ctx, updated); err != nil {
			s.log.Error("failed to save protected accounts", slog.Any("error", err))
		}
	}

	state.Followers.Add(found...)
	state.Protected.Add(found...)
	report.Discovered = found
	report.ProtectedActive = len(updated)

	s.log.Info("added protected accounts", slog.Int("count", len(found)))
	return nil
}

// apply runs one mutation stream in fixed-size sub-batches.
func (s *SyncService) apply(ctx context.Context, verb ports.Verb, users []domain.Username) MutationTally {
	tally := MutationTally{}
	if len(users) == 0 {
		return tally
	}

	s.log.Info("processing stream", slog.String("verb", string(verb)), slog.Int("users", len(users)))

	results := make(map[domain.Username]bool, len(users))
	for i := 0; i < len(users); i += s.opts.BatchSize {
		end := min(i+s.opts.BatchSize, len(users))

		batch := s.client.MutateBatch(ctx, verb, users[i:end], s.opts.Stagger)
		for u, ok := range batch {
			results[u] = ok
		}
		if s.progress != nil {
			s.progress(verb, batch)
		}
		s.log.Info("progress",
			slog.String("verb", string(verb)),
			slog.Int("done", end),
			slog.Int("total", len(users)))

		if end < len(users) {
			if err := wait(ctx, s.opts.BatchDelay); err != nil {
				break
			}
		}
	}

	for _, u := range users {
		ok, attempted := results[u]
		if attempted {
			tally.Attempted++
		}
		if ok {
			tally.Succeeded++
		} else {
			tally.Failed = append(tally.Failed, u)
		}
	}

	s.log.Info("stream finished",
		slog.String("verb", string(verb)),
		slog.Int("succeeded", tally.Succeeded),
		slog.Int("total", len(users)))
	return tally
}
