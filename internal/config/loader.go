package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FLOWSIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FLOWSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FLOWSIM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FLOWSIM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FLOWSIM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FLOWSIM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FLOWSIM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FLOWSIM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FLOWSIM_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FLOWSIM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FLOWSIM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FLOWSIM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FLOWSIM_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FLOWSIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLOWSIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FLOWSIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FLOWSIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FLOWSIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FLOWSIM_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.ObservationTTL, "FLOWSIM_REDIS_OBSERVATION_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "FLOWSIM_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "FLOWSIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FLOWSIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "FLOWSIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FLOWSIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FLOWSIM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FLOWSIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FLOWSIM_S3_FORCE_PATH_STYLE")

	// ── Batch ──
	setInt(&cfg.Batch.Workers, "FLOWSIM_BATCH_WORKERS")
	setInt(&cfg.Batch.HorizonYears, "FLOWSIM_BATCH_HORIZON_YEARS")
	setBool(&cfg.Batch.UseLock, "FLOWSIM_BATCH_USE_LOCK")

	// ── File ──
	setStr(&cfg.File.TermsPath, "FLOWSIM_FILE_TERMS_PATH")
	setStr(&cfg.File.FixingsPath, "FLOWSIM_FILE_FIXINGS_PATH")
	setStr(&cfg.File.OutputPath, "FLOWSIM_FILE_OUTPUT_PATH")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "FLOWSIM_FEED_ENABLED")
	setStr(&cfg.Feed.WsURL, "FLOWSIM_FEED_WS_URL")
	setStringSlice(&cfg.Feed.MarketObjects, "FLOWSIM_FEED_MARKET_OBJECTS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FLOWSIM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FLOWSIM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FLOWSIM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FLOWSIM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FLOWSIM_MODE")
	setStr(&cfg.LogLevel, "FLOWSIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
