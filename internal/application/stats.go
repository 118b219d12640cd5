package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

// StatsService reports counts about the follow graph
type StatsService struct {
	client        ports.GraphClient
	store         ports.ProtectedStore
	self          domain.Username
	exclusions    Exclusions
	discovery     bool
	retentionDays int
	log           *slog.Logger
	now           func() time.Time
}

// NewStatsService creates a stats service. store is only consulted when
// discovery is enabled.
func NewStatsService(client ports.GraphClient, store ports.ProtectedStore, opts SyncOptions, logger *slog.Logger) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{
		client:        client,
		store:         store,
		self:          opts.Self,
		exclusions:    opts.Exclusions,
		discovery:     opts.Discovery,
		retentionDays: opts.RetentionDays,
		log:           logger.With("subsystem", "stats"),
		now:           time.Now,
	}
}

// Collect re-fetches the current state and summarises it. Protected
// accounts are not folded into the follower count.
func (s *StatsService) Collect(ctx context.Context) (*domain.Statistics, error) {
	state, err := fetchState(ctx, s.client, s.self, s.exclusions)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current state: %w", err)
	}

	stats := domain.ComputeStatistics(state)

	if s.discovery && s.store != nil {
		active, expired := sweepProtected(ctx, s.store, s.now(), s.retentionDays, false, s.log)
		stats.DiscoveryEnabled = true
		stats.ProtectedActive = len(active)
		stats.ProtectedExpired = len(expired)
	}

	if w, ok := s.client.RateLimit(); ok {
		stats.RateLimit = &w
	}

	return stats, nil
}
