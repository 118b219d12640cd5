package application

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

// DiscoveryOptions tunes the follower-graph sampling
type DiscoveryOptions struct {
	SeedsCount    int           // random followers used as starting points
	PagesPerSeed  int           // follower pages sampled per visited user
	MaxRandomPage int           // highest page number that may be sampled
	MaxDepth      int           // levels to walk; 1 means seeds only
	BatchSize     int           // users fetched concurrently
	BatchDelay    time.Duration // pause between sub-batches
	MaxQueueSize  int           // cap on the next level's frontier
}

// DefaultDiscoveryOptions returns the standard sampling parameters
func DefaultDiscoveryOptions() DiscoveryOptions {
	return DiscoveryOptions{
		SeedsCount:    5,
		PagesPerSeed:  2,
		MaxRandomPage: 5,
		MaxDepth:      1,
		BatchSize:     3,
		BatchDelay:    1 * time.Second,
		MaxQueueSize:  50,
	}
}

// DiscoveryService finds new accounts to follow by sampling the followers
// of a few random followers, breadth first.
type DiscoveryService struct {
	client ports.GraphClient
	self   domain.Username
	opts   DiscoveryOptions
	rng    *rand.Rand
	log    *slog.Logger
}

// NewDiscoveryService creates a discovery service. A nil rng uses a randomly
// seeded source.
func NewDiscoveryService(client ports.GraphClient, self domain.Username, opts DiscoveryOptions, rng *rand.Rand, logger *slog.Logger) *DiscoveryService {
	def := DefaultDiscoveryOptions()
	if opts.SeedsCount <= 0 {
		opts.SeedsCount = def.SeedsCount
	}
	if opts.PagesPerSeed <= 0 {
		opts.PagesPerSeed = def.PagesPerSeed
	}
	if opts.MaxRandomPage <= 0 {
		opts.MaxRandomPage = def.MaxRandomPage
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = def.MaxQueueSize
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DiscoveryService{
		client: client,
		self:   self,
		opts:   opts,
		rng:    rng,
		log:    logger.With("subsystem", "discovery"),
	}
}

// FindCandidates returns up to count accounts that are not followers, not
// banned and not ourselves, in discovery order. Fetch failures for a single
// user are logged and skipped; only cancellation is returned as an error.
func (s *DiscoveryService) FindCandidates(ctx context.Context, followers, banned domain.UserSet, count int) ([]domain.Username, error) {
	if count <= 0 {
		return nil, nil
	}
	if followers.Len() == 0 {
		s.log.Info("no followers available to seed discovery")
		return nil, nil
	}

	s.log.Info("starting discovery", slog.Int("wanted", count))

	excluded := banned.Union(followers)
	excluded.Add(s.self)

	// Sort first so a seeded rng yields the same seeds every time.
	seeds := followers.Sorted()
	s.rng.Shuffle(len(seeds), func(i, j int) { seeds[i], seeds[j] = seeds[j], seeds[i] })
	queue := seeds[:min(s.opts.SeedsCount, len(seeds))]

	visited := make(domain.UserSet)
	collected := make(domain.UserSet)
	var candidates []domain.Username
	fetched := false

	for depth := 0; len(queue) > 0 && len(candidates) < count && depth < s.opts.MaxDepth; depth++ {
		var next []domain.Username
		descend := depth+1 < s.opts.MaxDepth

		for i := 0; i < len(queue) && len(candidates) < count; i += s.opts.BatchSize {
			var batch []domain.Username
			for _, u := range queue[i:min(i+s.opts.BatchSize, len(queue))] {
				if !visited.Has(u) {
					batch = append(batch, u)
					visited.Add(u)
				}
			}
			if len(batch) == 0 {
				continue
			}

			if fetched {
				if err := wait(ctx, s.opts.BatchDelay); err != nil {
					return candidates, err
				}
			}
			fetched = true

			requests := make([]ports.PageRequest, len(batch))
			for j, u := range batch {
				requests[j] = ports.PageRequest{User: u, Pages: s.samplePages()}
			}
			results := s.client.FetchBatch(ctx, requests, 0)

			for _, u := range batch {
				res := results[u]
				if res.Err != nil {
					s.log.Warn("skipping seed after fetch failure",
						slog.String("user", string(u)),
						slog.Any("error", res.Err))
					continue
				}

				for _, f := range res.Users {
					if !excluded.Has(f) && !collected.Has(f) {
						collected.Add(f)
						candidates = append(candidates, f)
						if len(candidates) >= count {
							break
						}
					}
					if descend {
						next = append(next, f)
					}
				}
				if len(candidates) >= count {
					break
				}
			}

			if err := ctx.Err(); err != nil {
				return candidates, err
			}
		}

		if len(next) > s.opts.MaxQueueSize {
			next = next[:s.opts.MaxQueueSize]
		}
		queue = next
	}

	s.log.Info("discovery finished", slog.Int("found", len(candidates)), slog.Int("visited", visited.Len()))
	return candidates, nil
}

// samplePages picks distinct page numbers in [1, MaxRandomPage], ascending.
func (s *DiscoveryService) samplePages() []int {
	k := min(s.opts.PagesPerSeed, s.opts.MaxRandomPage)
	perm := s.rng.Perm(s.opts.MaxRandomPage)[:k]

	pages := make([]int, k)
	for i, p := range perm {
		pages[i] = p + 1
	}
	slices.Sort(pages)
	return pages
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
