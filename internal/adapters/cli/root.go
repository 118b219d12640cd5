package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/devbush/submanager/internal/adapters/cli/tui"
	"github.com/devbush/submanager/internal/config"
	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

var (
	// Global flags
	configFlag  string
	quietFlag   bool
	verboseFlag bool

	dryRunFlag bool
	forceFlag  bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "submanager",
		Short: "Keep your GitHub following list in sync with your followers",
		Long: `submanager follows back everyone who follows you and unfollows
accounts that do not follow you back. Ban lists and an optional discovery
mode for growing your network are read from the config file.

Run without arguments for an interactive menu.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file path (default ~/.submanager/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log every request to stderr")
	rootCmd.MarkFlagsMutuallyExclusive("quiet", "verbose")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewStatsCmd())
	rootCmd.AddCommand(NewConfigCmd())

	return rootCmd
}

// NewRunCmd creates the run subcommand
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Follow back followers and unfollow non-followers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), dryRunFlag)
		},
	}
	cmd.Flags().BoolVarP(&dryRunFlag, "dry-run", "n", false, "Show what would change without following or unfollowing")
	return cmd
}

// NewStatsCmd creates the stats subcommand
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show follower statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context())
		},
	}
}

// NewConfigCmd creates the config subcommand
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "Overwrite an existing config file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), configPath())
		},
	}

	cmd.AddCommand(initCmd, pathCmd)
	return cmd
}

func configPath() string {
	if configFlag != "" {
		return configFlag
	}
	return config.ConfigPath()
}

func appOptions(dryRun bool) AppOptions {
	return AppOptions{
		ConfigPath: configFlag,
		Quiet:      quietFlag,
		Verbose:    verboseFlag,
		DryRun:     dryRun,
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	options := []tui.MenuOption{
		{Label: "Sync following list", Value: "run", Hint: "Follow back followers and unfollow everyone else"},
		{Label: "Preview changes (dry run)", Value: "dry-run", Hint: "List pending follows and unfollows without applying them"},
		{Label: "Show statistics", Value: "stats", Hint: "Follower counts, protected accounts and API quota"},
	}

	selected, err := tui.RunMenu(menuHeader(configFlag), options)
	if err != nil {
		return err
	}

	switch selected {
	case "run":
		return runSync(cmd.Context(), false)
	case "dry-run":
		return runSync(cmd.Context(), true)
	case "stats":
		return runStats(cmd.Context())
	default:
		fmt.Println("Cancelled")
	}
	return nil
}

// menuHeader describes the configured account. A missing or broken config
// leaves the header empty; the chosen command reports the error.
func menuHeader(path string) tui.MenuHeader {
	cfg, err := loadConfig(path)
	if err != nil {
		return tui.MenuHeader{}
	}
	return tui.MenuHeader{
		Account:   &domain.Account{Username: domain.Username(cfg.GitHub.Username)},
		Discovery: cfg.Discovery.Enabled,
		Retention: cfg.Discovery.DaysPeriod,
	}
}

func runSync(ctx context.Context, dryRun bool) error {
	app, err := NewApp(appOptions(dryRun))
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	progress := tui.NewBatchProgress(os.Stdout, quietFlag)
	app.SyncSvc.OnPlan(func(plan domain.Plan) {
		progress.AddStream("Follow", len(plan.Follow))
		progress.AddStream("Unfollow", len(plan.Unfollow))
	})
	app.SyncSvc.OnProgress(func(verb ports.Verb, results map[domain.Username]bool) {
		batch := make(map[string]bool, len(results))
		for u, ok := range results {
			batch[string(u)] = ok
		}
		label := "Follow"
		if verb == ports.VerbUnfollow {
			label = "Unfollow"
		}
		progress.AddResults(label, batch)
	})

	if !quietFlag {
		fmt.Println(tui.FormatBanner(app.Account(), dryRun))
	}

	report, err := app.SyncSvc.Run(ctx)
	if err != nil {
		return err
	}

	if report.DryRun {
		fmt.Print(tui.FormatPlan(report.Plan))
		return nil
	}

	progress.Complete()
	if !quietFlag {
		if len(report.Discovered) > 0 {
			fmt.Printf("Discovered %d new accounts to follow\n", len(report.Discovered))
		}
		fmt.Println(tui.FormatSummary(
			report.Follow.Succeeded, len(report.Plan.Follow),
			report.Unfollow.Succeeded, len(report.Plan.Unfollow)))
	}
	return nil
}

func runStats(ctx context.Context) error {
	app, err := NewApp(appOptions(false))
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	stats, err := app.StatsSvc.Collect(ctx)
	if err != nil {
		return err
	}

	fmt.Println(tui.FormatStatistics(app.Account(), stats, time.Now()))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()

	if _, err := os.Stat(path); err == nil && !forceFlag {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	save := cfg.SaveDefault
	if configFlag != "" {
		save = func() error { return cfg.Save(configFlag) }
	}
	if err := save(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Set github.username and github.token before running a sync.")
	return nil
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Interrupted")
	} else {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	stop()
	os.Exit(1)
}
