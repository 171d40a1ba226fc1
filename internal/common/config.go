package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/adsum/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string                 `toml:"environment"` // "development" or "production"
	Settings    SettingsConfig         `toml:"settings"`
	Accounts    []models.AccountConfig `toml:"accounts"`
	Storage     StorageConfig          `toml:"storage"`
	Logging     LoggingConfig          `toml:"logging"`
	Reports     ReportsConfig          `toml:"reports"`
	Scheduler   SchedulerConfig        `toml:"scheduler"`
	Browser     BrowserConfig          `toml:"browser"`
}

// SettingsConfig holds the run-wide batch settings and the default site
// profile that account-level overrides merge onto.
type SettingsConfig struct {
	MinDelay time.Duration      `toml:"min_delay"` // Minimum delay between accounts
	MaxDelay time.Duration      `toml:"max_delay"` // Maximum delay between accounts
	Headless bool               `toml:"headless"`  // Run without a visible browser window
	Proxy    string             `toml:"proxy"`     // Default proxy, account-level overrides win
	Site     models.SiteProfile `toml:"site"`      // Default site profile
}

type StorageConfig struct {
	Badger   BadgerConfig `toml:"badger"`
	Sessions string       `toml:"sessions"` // Directory for delegated-auth session blobs
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ReportsConfig controls where report artifacts and diagnostic screenshots go.
type ReportsConfig struct {
	Dir           string `toml:"dir"`
	ScreenshotDir string `toml:"screenshot_dir"`
}

// SchedulerConfig enables periodic batch runs in daemon mode.
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
}

// BrowserConfig holds engine tuning shared by all accounts.
type BrowserConfig struct {
	NavigationTimeout time.Duration `toml:"navigation_timeout"` // Page/API readiness budget
	APIRateLimit      time.Duration `toml:"api_rate_limit"`     // Minimum spacing between in-page API calls
	PollInterval      time.Duration `toml:"poll_interval"`      // Liveness poll interval during manual auth
	RotateUserAgent   bool          `toml:"rotate_user_agent"`  // Pick a fresh user agent per account
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings should be exposed in adsum.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Settings: SettingsConfig{
			MinDelay: 60 * time.Second,
			MaxDelay: 180 * time.Second,
			Headless: true,
			Site:     models.DefaultSiteProfile(),
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Sessions: "./data/sessions",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Reports: ReportsConfig{
			Dir:           "./reports",
			ScreenshotDir: "./screenshots",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "0 9 * * *", // Daily at 09:00
		},
		Browser: BrowserConfig{
			NavigationTimeout: 30 * time.Second,
			APIRateLimit:      2 * time.Second,
			PollInterval:      3 * time.Second,
			RotateUserAgent:   true,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations that cannot produce a coherent run.
func (c *Config) Validate() error {
	if c.Settings.MinDelay < 0 || c.Settings.MaxDelay < 0 {
		return fmt.Errorf("invalid settings: delays must be non-negative")
	}
	if c.Settings.MinDelay > c.Settings.MaxDelay {
		return fmt.Errorf("invalid settings: min_delay %s exceeds max_delay %s",
			c.Settings.MinDelay, c.Settings.MaxDelay)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ADSUM_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("ADSUM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if minDelay := os.Getenv("ADSUM_MIN_DELAY"); minDelay != "" {
		if d, err := time.ParseDuration(minDelay); err == nil {
			config.Settings.MinDelay = d
		}
	}
	if maxDelay := os.Getenv("ADSUM_MAX_DELAY"); maxDelay != "" {
		if d, err := time.ParseDuration(maxDelay); err == nil {
			config.Settings.MaxDelay = d
		}
	}
	if headless := os.Getenv("ADSUM_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Settings.Headless = h
		}
	}
	if proxy := os.Getenv("ADSUM_PROXY"); proxy != "" {
		config.Settings.Proxy = proxy
	}

	if badgerPath := os.Getenv("ADSUM_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if sessions := os.Getenv("ADSUM_SESSIONS_DIR"); sessions != "" {
		config.Storage.Sessions = sessions
	}

	if reportsDir := os.Getenv("ADSUM_REPORTS_DIR"); reportsDir != "" {
		config.Reports.Dir = reportsDir
	}

	if schedule := os.Getenv("ADSUM_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
		config.Scheduler.Enabled = true
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
