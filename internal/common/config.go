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
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Queue       QueueConfig       `toml:"queue"`
	Storage     StorageConfig     `toml:"storage"`
	Extractor   ExtractorConfig   `toml:"extractor"`
	Credits     CreditsConfig     `toml:"credits"`
	SMTP        SMTPConfig        `toml:"smtp"`
	Logging     LoggingConfig     `toml:"logging"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	AppBaseURL  string            `toml:"app_base_url"` // Base URL used in notification links
}

type ServerConfig struct {
	Port         int    `toml:"port"`
	Host         string `toml:"host"`
	SharedSecret string `toml:"shared_secret"` // X-Worker-Secret value; empty disables the check
}

type QueueConfig struct {
	PollInterval      time.Duration `toml:"poll_interval"`      // How often workers poll for messages
	Concurrency       int           `toml:"concurrency"`        // Number of concurrent job workers
	VisibilityTimeout time.Duration `toml:"visibility_timeout"` // Message redelivery timeout
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Blobs  BlobConfig   `toml:"blobs"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// BlobConfig configures the filesystem blob store for rendered artifacts
type BlobConfig struct {
	Path string `toml:"path"`
}

// ExtractorConfig bounds the per-link extraction work
type ExtractorConfig struct {
	Concurrency      int           `toml:"concurrency"`       // Bounded worker pool size (default 4)
	UserAgent        string        `toml:"user_agent"`        // Outbound user agent
	ArticleTimeout   time.Duration `toml:"article_timeout"`   // Per-article fetch timeout
	ShortPostTimeout time.Duration `toml:"shortpost_timeout"` // Browser path timeout for short posts
	FallbackTimeout  time.Duration `toml:"fallback_timeout"`  // Per-fallback timeout for short posts
	RequestsPerHost  float64       `toml:"requests_per_host"` // Sustained outbound requests/sec per host
	MaxLinks         int           `toml:"max_links"`         // Hard cap on links per issue
	Headless         bool          `toml:"headless"`          // Run the shared browser headless
	NoSandbox        bool          `toml:"no_sandbox"`
}

type CreditsConfig struct {
	DailyQuota int `toml:"daily_quota"` // Credits granted at each UTC-midnight reset
}

// SMTPConfig holds outbound mail settings; Host empty disables email
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
	UseTLS   bool   `toml:"use_tls"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type MaintenanceConfig struct {
	Schedule           string `toml:"schedule"`             // Cron schedule for the nightly sweep
	EventRetentionDays int    `toml:"event_retention_days"` // Audit events older than this are purged
}

// DefaultConfig returns the built-in defaults applied before any file or
// environment override.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 4000,
			Host: "0.0.0.0",
		},
		Queue: QueueConfig{
			PollInterval:      time.Second,
			Concurrency:       2,
			VisibilityTimeout: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{Path: "./data/folio"},
			Blobs:  BlobConfig{Path: "./data/blobs"},
		},
		Extractor: ExtractorConfig{
			Concurrency:      4,
			UserAgent:        "FolioBot/1.0",
			ArticleTimeout:   12 * time.Second,
			ShortPostTimeout: 12 * time.Second,
			FallbackTimeout:  4 * time.Second,
			RequestsPerHost:  2,
			MaxLinks:         10,
			Headless:         true,
			NoSandbox:        true,
		},
		Credits: CreditsConfig{DailyQuota: 20},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "Folio",
			UseTLS:   true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Maintenance: MaintenanceConfig{
			Schedule:           "0 3 * * *",
			EventRetentionDays: 30,
		},
	}
}

// LoadFromFiles loads configuration from defaults, then each file in order
// (later files override earlier ones), then environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Extractor.Concurrency < 1 {
		config.Extractor.Concurrency = 1
	}
	if config.Queue.Concurrency < 1 {
		config.Queue.Concurrency = 1
	}

	return config, nil
}

// applyEnvOverrides applies FOLIO_* environment variables over the loaded
// configuration. Secrets are the usual reason to prefer env over file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("FOLIO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("FOLIO_SHARED_SECRET"); v != "" {
		config.Server.SharedSecret = v
	}
	if v := os.Getenv("FOLIO_SMTP_PASSWORD"); v != "" {
		config.SMTP.Password = v
	}
	if v := os.Getenv("FOLIO_APP_BASE_URL"); v != "" {
		config.AppBaseURL = v
	}
	if v := os.Getenv("FOLIO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
