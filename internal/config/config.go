package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devbush/submanager/internal/domain"
)

// Config represents the application configuration
type Config struct {
	GitHub    GitHubConfig    `yaml:"github"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Settings  SettingsConfig  `yaml:"settings"`
	BanLists  BanListsConfig  `yaml:"ban_lists"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GitHubConfig holds the account credentials
type GitHubConfig struct {
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// DiscoveryConfig controls protected-account discovery
type DiscoveryConfig struct {
	Enabled       bool `yaml:"enabled"`
	DaysPeriod    int  `yaml:"days_period"`
	CountUsers    int  `yaml:"count_users"`
	SeedsCount    int  `yaml:"seeds_count"`
	PagesPerSeed  int  `yaml:"pages_per_seed"`
	MaxRandomPage int  `yaml:"max_random_page"`
	MaxDepth      int  `yaml:"max_depth"`
}

// SettingsConfig holds request pacing values. Delays use ParseDuration syntax.
type SettingsConfig struct {
	RetryOnError          bool   `yaml:"retry_on_error"`
	MaxConcurrentRequests int    `yaml:"max_concurrent_requests"`
	BatchSize             int    `yaml:"batch_size"`
	BatchDelay            string `yaml:"batch_delay"`
	RequestDelay          string `yaml:"request_delay"`
	DiscoveryBatchSize    int    `yaml:"discovery_batch_size"`
	DiscoveryDelay        string `yaml:"discovery_delay"`
	MaxQueueSize          int    `yaml:"max_queue_size"`
}

// BanListsConfig holds the user-maintained exclusion lists
type BanListsConfig struct {
	NeverFollow      []string `yaml:"never_follow"`
	NeverUnfollow    []string `yaml:"never_unfollow"`
	IgnoreCompletely []string `yaml:"ignore_completely"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Enabled:       false,
			DaysPeriod:    3,
			CountUsers:    500,
			SeedsCount:    5,
			PagesPerSeed:  2,
			MaxRandomPage: 5,
			MaxDepth:      1,
		},
		Settings: SettingsConfig{
			RetryOnError:          true,
			MaxConcurrentRequests: 10,
			BatchSize:             5,
			BatchDelay:            "1500ms",
			RequestDelay:          "500ms",
			DiscoveryBatchSize:    3,
			DiscoveryDelay:        "1s",
			MaxQueueSize:          50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// AppDir returns the application directory (~/.submanager)
func AppDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".submanager"
	}
	return filepath.Join(home, ".submanager")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(AppDir(), "config.yaml")
}

// ProtectedPath returns the protected accounts file path
func ProtectedPath() string {
	return filepath.Join(AppDir(), "protected_users.txt")
}

// EnsureDirs creates all required directories
func EnsureDirs() error {
	if err := os.MkdirAll(AppDir(), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", AppDir(), err)
	}
	return nil
}

// Load reads config from file, returns default if not exists. Environment
// overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads config from default path
func LoadDefault() (*Config, error) {
	return Load(ConfigPath())
}

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none)
// into the process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

type envOverrides struct {
	Username  string `env:"SUBMANAGER_USERNAME"`
	Token     string `env:"SUBMANAGER_TOKEN"`
	Discovery *bool  `env:"SUBMANAGER_DISCOVERY"`
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.Username != "" {
		c.GitHub.Username = o.Username
	}
	if o.Token != "" {
		c.GitHub.Token = o.Token
	}
	if o.Discovery != nil {
		c.Discovery.Enabled = *o.Discovery
	}
	return nil
}

// Save writes config to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds a token.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveDefault saves config to default path
func (c *Config) SaveDefault() error {
	return c.Save(ConfigPath())
}

// Validate checks required fields and ranges, and normalises the username.
// Non-fatal problems are returned as warnings.
func (c *Config) Validate() (warnings []string, err error) {
	if c.GitHub.Username == "" || c.GitHub.Token == "" {
		return nil, fmt.Errorf("%w: github.username and github.token are required", domain.ErrMissingCredentials)
	}

	var errs []error

	acc, perr := domain.ParseAccountInput(c.GitHub.Username)
	if perr != nil {
		errs = append(errs, fmt.Errorf("github.username: %w", perr))
	} else {
		c.GitHub.Username = string(acc.Username)
	}

	if strings.HasPrefix(c.GitHub.Token, "ghp_") && len(c.GitHub.Token) != 40 {
		warnings = append(warnings, "github token appears to have an invalid format")
	}

	if c.Discovery.DaysPeriod < 1 {
		errs = append(errs, errors.New("discovery.days_period must be at least 1"))
	}
	if c.Discovery.CountUsers < 0 {
		errs = append(errs, errors.New("discovery.count_users cannot be negative"))
	}
	if c.Settings.MaxConcurrentRequests < 1 {
		errs = append(errs, errors.New("settings.max_concurrent_requests must be at least 1"))
	}
	if c.Settings.BatchSize < 1 {
		errs = append(errs, errors.New("settings.batch_size must be at least 1"))
	}

	for name, v := range map[string]string{
		"settings.batch_delay":     c.Settings.BatchDelay,
		"settings.request_delay":   c.Settings.RequestDelay,
		"settings.discovery_delay": c.Settings.DiscoveryDelay,
	} {
		if _, derr := ParseDuration(v); derr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, derr))
		}
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(errs...))
	}
	return warnings, nil
}

// ExcludeFromFollow returns never_follow combined with ignore_completely
func (c *Config) ExcludeFromFollow() domain.UserSet {
	return domain.UserSetOf(append(append([]string(nil), c.BanLists.NeverFollow...), c.BanLists.IgnoreCompletely...)...)
}

// ExcludeFromUnfollow returns never_unfollow. ignore_completely is not
// included, so an ignored account we follow can still be unfollowed.
func (c *Config) ExcludeFromUnfollow() domain.UserSet {
	return domain.UserSetOf(c.BanLists.NeverUnfollow...)
}

// BatchDelay returns settings.batch_delay as a duration
func (c *Config) BatchDelay() time.Duration {
	d, _ := ParseDuration(c.Settings.BatchDelay)
	return d
}

// RequestDelay returns settings.request_delay as a duration
func (c *Config) RequestDelay() time.Duration {
	d, _ := ParseDuration(c.Settings.RequestDelay)
	return d
}

// DiscoveryDelay returns settings.discovery_delay as a duration
func (c *Config) DiscoveryDelay() time.Duration {
	d, _ := ParseDuration(c.Settings.DiscoveryDelay)
	return d
}

var dayPattern = regexp.MustCompile(`^(\d+)d$`)

// ParseDuration parses duration strings like "500ms", "1.5s", "24h" and
// "7d". An empty string is zero.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if m := dayPattern.FindStringSubmatch(s); m != nil {
		value, _ := strconv.Atoi(m[1])
		return time.Duration(value) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration format: %s (use format like 500ms, 1.5s, 7d)", s)
	}
	return d, nil
}
