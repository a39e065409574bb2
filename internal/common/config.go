package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Provider    ProviderConfig `toml:"provider"`
	Tracker     TrackerConfig  `toml:"tracker"`
	Insight     InsightConfig  `toml:"insight"`
	Refresh     RefreshConfig  `toml:"refresh"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
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

// ProviderConfig contains the external search provider configuration.
// APIKey is required before any job can be submitted; a missing key is
// a configuration error surfaced at submit time, not mid-poll.
type ProviderConfig struct {
	APIKey            string        `toml:"api_key"`
	BaseURL           string        `toml:"base_url"`            // Override for tests; default provider endpoint when empty
	RequestsPerMinute int           `toml:"requests_per_minute"` // Account-wide outbound budget (token bucket capacity)
	SearchDepth       int           `toml:"search_depth"`        // Organic results requested per search
	RequestTimeout    time.Duration `toml:"request_timeout"`     // HTTP request timeout
}

// TrackerConfig controls the job workflow: batching, polling cadence,
// retry budget and the wall-clock ceiling that guarantees every job
// reaches a terminal status.
type TrackerConfig struct {
	MaxKeywords     int    `toml:"max_keywords"`     // Keyword cap per job (default 5)
	BatchSize       int    `toml:"batch_size"`       // Keywords dispatched per batch
	PollInterval    string `toml:"poll_interval"`    // e.g. "3s" - sleep between poll rounds
	PollCeiling     string `toml:"poll_ceiling"`     // e.g. "5m" - wall-clock ceiling per job
	CheckRetries    int    `toml:"check_retries"`    // Transient check() retries before a ticket fails
	CompetitorCount int    `toml:"competitor_count"` // Top entries recorded per result
}

// PollIntervalDuration parses the poll interval, falling back to the
// default when unset or malformed.
func (c *TrackerConfig) PollIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.PollInterval); err == nil && d > 0 {
		return d
	}
	return 3 * time.Second
}

// PollCeilingDuration parses the wall-clock ceiling, falling back to
// the default when unset or malformed.
func (c *TrackerConfig) PollCeilingDuration() time.Duration {
	if d, err := time.ParseDuration(c.PollCeiling); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}

// InsightConfig contains Anthropic Claude API configuration for the
// per-result strategy suggestions.
type InsightConfig struct {
	Enabled   bool   `toml:"enabled"`
	APIKey    string `toml:"api_key"` // Falls back to ANTHROPIC_API_KEY
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Timeout   string `toml:"timeout"` // Duration string (default "30s")
}

// TimeoutDuration parses the insight call timeout.
func (c *InsightConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// RefreshConfig controls scheduled re-tracking of known target sites.
type RefreshConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings should be exposed in gradus.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Provider: ProviderConfig{
			APIKey:            "", // User must provide API key in config file
			BaseURL:           "",
			RequestsPerMinute: 60,
			SearchDepth:       100,
			RequestTimeout:    30 * time.Second,
		},
		Tracker: TrackerConfig{
			MaxKeywords:     5, // Driven by the serverless-duration constraint, not a provider limit
			BatchSize:       3,
			PollInterval:    "3s",
			PollCeiling:     "5m",
			CheckRetries:    3,
			CompetitorCount: 5,
		},
		Insight: InsightConfig{
			Enabled:   true,
			APIKey:    "",
			Model:     "claude-3-5-haiku-20241022",
			MaxTokens: 256,
			Timeout:   "30s",
		},
		Refresh: RefreshConfig{
			Enabled:  false,           // User must explicitly opt-in
			Schedule: "0 0 6 * * *",   // Daily at 06:00 (cron format with seconds)
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override
// earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("GRADUS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("GRADUS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("GRADUS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("GRADUS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("GRADUS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if apiKey := os.Getenv("GRADUS_PROVIDER_API_KEY"); apiKey != "" {
		config.Provider.APIKey = apiKey
	}
	if baseURL := os.Getenv("GRADUS_PROVIDER_BASE_URL"); baseURL != "" {
		config.Provider.BaseURL = baseURL
	}
	if rpm := os.Getenv("GRADUS_PROVIDER_REQUESTS_PER_MINUTE"); rpm != "" {
		if n, err := strconv.Atoi(rpm); err == nil && n > 0 {
			config.Provider.RequestsPerMinute = n
		}
	}

	if maxKeywords := os.Getenv("GRADUS_TRACKER_MAX_KEYWORDS"); maxKeywords != "" {
		if n, err := strconv.Atoi(maxKeywords); err == nil && n > 0 {
			config.Tracker.MaxKeywords = n
		}
	}
	if ceiling := os.Getenv("GRADUS_TRACKER_POLL_CEILING"); ceiling != "" {
		config.Tracker.PollCeiling = ceiling
	}

	if insightKey := os.Getenv("ANTHROPIC_API_KEY"); insightKey != "" && config.Insight.APIKey == "" {
		config.Insight.APIKey = insightKey
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
