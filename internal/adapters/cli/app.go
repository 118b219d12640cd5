package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/devbush/submanager/internal/adapters/github"
	"github.com/devbush/submanager/internal/adapters/store"
	"github.com/devbush/submanager/internal/application"
	"github.com/devbush/submanager/internal/config"
	"github.com/devbush/submanager/internal/domain"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	Log    *slog.Logger

	Client    *github.Client
	Protected *store.ProtectedFile

	SyncSvc  *application.SyncService
	StatsSvc *application.StatsService

	logFile io.Closer
}

// AppOptions carries command-line overrides
type AppOptions struct {
	ConfigPath string
	Quiet      bool
	Verbose    bool
	DryRun     bool
}

// NewApp loads configuration and wires up all dependencies
func NewApp(opts AppOptions) (*App, error) {
	if err := config.EnsureDirs(); err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	warnings, err := cfg.Validate()
	if err != nil {
		path := opts.ConfigPath
		if path == "" {
			path = config.ConfigPath()
		}
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	logger, logFile, err := configLogger(cfg.Logging, opts)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	self := domain.Username(cfg.GitHub.Username)

	clientOpts := []github.Option{
		github.WithMaxConcurrent(cfg.Settings.MaxConcurrentRequests),
		github.WithLogger(logger),
	}
	if !cfg.Settings.RetryOnError {
		clientOpts = append(clientOpts, github.WithRetryMax(0))
	}
	client, err := github.New(self, cfg.GitHub.Token, clientOpts...)
	if err != nil {
		closeQuietly(logFile)
		return nil, err
	}

	protected := store.NewProtectedFile(afero.NewOsFs(), config.ProtectedPath(), logger)

	syncOpts := application.SyncOptions{
		Self: self,
		Exclusions: application.Exclusions{
			Follow:   cfg.ExcludeFromFollow(),
			Unfollow: cfg.ExcludeFromUnfollow(),
		},
		Discovery:       cfg.Discovery.Enabled,
		RetentionDays:   cfg.Discovery.DaysPeriod,
		TargetProtected: cfg.Discovery.CountUsers,
		BatchSize:       cfg.Settings.BatchSize,
		BatchDelay:      cfg.BatchDelay(),
		Stagger:         cfg.RequestDelay(),
		DryRun:          opts.DryRun,
	}

	var discovery *application.DiscoveryService
	if cfg.Discovery.Enabled {
		discovery = application.NewDiscoveryService(client, self, application.DiscoveryOptions{
			SeedsCount:    cfg.Discovery.SeedsCount,
			PagesPerSeed:  cfg.Discovery.PagesPerSeed,
			MaxRandomPage: cfg.Discovery.MaxRandomPage,
			MaxDepth:      cfg.Discovery.MaxDepth,
			BatchSize:     cfg.Settings.DiscoveryBatchSize,
			BatchDelay:    cfg.DiscoveryDelay(),
			MaxQueueSize:  cfg.Settings.MaxQueueSize,
		}, nil, logger)
	}

	return &App{
		Config:    cfg,
		Log:       logger,
		Client:    client,
		Protected: protected,
		SyncSvc:   application.NewSyncService(client, protected, discovery, syncOpts, logger),
		StatsSvc:  application.NewStatsService(client, protected, syncOpts, logger),
		logFile:   logFile,
	}, nil
}

// Account returns the managed account
func (a *App) Account() *domain.Account {
	return &domain.Account{Username: domain.Username(a.Config.GitHub.Username)}
}

// Close releases the HTTP session and the log file
func (a *App) Close() error {
	err := a.Client.Close()
	closeQuietly(a.logFile)
	return err
}

// configLogger builds the process logger. Without a log file only warnings
// reach stderr so they do not break the progress display, unless verbose
// output was requested.
func configLogger(lc config.LoggingConfig, opts AppOptions) (*slog.Logger, io.Closer, error) {
	level := parseLevel(lc.Level)

	var (
		writer io.Writer = os.Stderr
		closer io.Closer
	)
	switch {
	case opts.Verbose:
		level = slog.LevelDebug
	case lc.File != "":
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer, closer = f, f
	case opts.Quiet:
		level = slog.LevelError
	default:
		level = max(level, slog.LevelWarn)
	}

	logger := slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closer, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

// loadConfig reads path, or the default location when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}
