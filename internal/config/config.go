// Package config defines the top-level configuration for the flowsim service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FLOWSIM_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Batch    BatchConfig    `toml:"batch"`
	File     FileConfig     `toml:"file"`
	Feed     FeedConfig     `toml:"feed"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled        bool     `toml:"enabled"`
	Addr           string   `toml:"addr"`
	Password       string   `toml:"password"`
	DB             int      `toml:"db"`
	PoolSize       int      `toml:"pool_size"`
	MaxRetries     int      `toml:"max_retries"`
	TLSEnabled     bool     `toml:"tls_enabled"`
	ObservationTTL duration `toml:"observation_ttl"`
}

// S3Config holds S3-compatible object storage parameters for run exports.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// BatchConfig holds batch simulation parameters.
type BatchConfig struct {
	Workers      int  `toml:"workers"`
	HorizonYears int  `toml:"horizon_years"`
	UseLock      bool `toml:"use_lock"`
}

// FileConfig holds paths for file mode, which simulates a portfolio from
// local JSON inputs without any backing services.
type FileConfig struct {
	TermsPath   string `toml:"terms_path"`
	FixingsPath string `toml:"fixings_path"`
	OutputPath  string `toml:"output_path"`
}

// FeedConfig holds the market-data fixings stream parameters.
type FeedConfig struct {
	Enabled       bool     `toml:"enabled"`
	WsURL         string   `toml:"ws_url"`
	MarketObjects []string `toml:"market_objects"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "flowsim",
			User:          "flowsim",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:        true,
			Addr:           "localhost:6379",
			DB:             0,
			PoolSize:       20,
			MaxRetries:     3,
			TLSEnabled:     false,
			ObservationTTL: duration{24 * time.Hour},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "flowsim-runs",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Batch: BatchConfig{
			Workers:      8,
			HorizonYears: 100,
			UseLock:      true,
		},
		File: FileConfig{
			TermsPath:  "portfolio.json",
			OutputPath: "cashflows.json",
		},
		Feed: FeedConfig{
			Enabled: false,
		},
		Notify: NotifyConfig{
			Events: []string{"run_completed", "contract_failed"},
		},
		Mode:     "batch",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"batch": true,
	"file":  true,
	"feed":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: batch, file, feed)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Only batch mode persists runs; file and feed modes run without the
	// database.
	if c.Mode == "batch" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	if c.Batch.Workers < 1 {
		errs = append(errs, "batch: workers must be >= 1")
	}
	if c.Batch.HorizonYears < 1 {
		errs = append(errs, "batch: horizon_years must be >= 1")
	}
	if c.Mode == "batch" && c.Batch.UseLock && !c.Redis.Enabled {
		errs = append(errs, "batch: use_lock requires redis to be enabled")
	}

	if c.Mode == "file" {
		if c.File.TermsPath == "" {
			errs = append(errs, "file: terms_path must not be empty in file mode")
		}
		if c.File.OutputPath == "" {
			errs = append(errs, "file: output_path must not be empty in file mode")
		}
	}

	if c.Mode == "feed" || c.Feed.Enabled {
		if c.Feed.WsURL == "" {
			errs = append(errs, "feed: ws_url must not be empty")
		}
		if len(c.Feed.MarketObjects) == 0 {
			errs = append(errs, "feed: market_objects must not be empty")
		}
	}
	if c.Mode == "feed" && !c.Redis.Enabled {
		errs = append(errs, "feed: mode requires redis to be enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
