package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges an optional TOML file at path on top of the built-in defaults,
// then applies NFTSALES_* environment variable overrides. An empty path skips
// the file. The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from NFTSALES_* variables that
// are set and non-empty.
func applyEnvOverrides(cfg *Config) {
	// ── Alchemy ──
	setStr(&cfg.Alchemy.BaseURL, "NFTSALES_ALCHEMY_BASE_URL")
	setStr(&cfg.Alchemy.APIKey, "ALCHEMY_API_KEY") // compatibility alias
	setStr(&cfg.Alchemy.APIKey, "NFTSALES_ALCHEMY_API_KEY")
	setDuration(&cfg.Alchemy.Timeout, "NFTSALES_ALCHEMY_TIMEOUT")
	setInt(&cfg.Alchemy.MaxAttempts, "NFTSALES_ALCHEMY_MAX_ATTEMPTS")
	setDuration(&cfg.Alchemy.RetryDelay, "NFTSALES_ALCHEMY_RETRY_DELAY")
	setInt(&cfg.Alchemy.RateLimitPerSecond, "NFTSALES_ALCHEMY_RATE_LIMIT_PER_SECOND")

	// ── Job ──
	setStr(&cfg.Job.ContractAddress, "NFTSALES_JOB_CONTRACT_ADDRESS")
	setUint64(&cfg.Job.StartBlock, "NFTSALES_JOB_START_BLOCK")
	setUint64(&cfg.Job.EndBlock, "NFTSALES_JOB_END_BLOCK")

	// ── Output ──
	setStr(&cfg.Output.Path, "NFTSALES_OUTPUT_PATH")
	setStr(&cfg.Output.S3Key, "NFTSALES_OUTPUT_S3_KEY")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "NFTSALES_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "NFTSALES_S3_REGION")
	setStr(&cfg.S3.Bucket, "NFTSALES_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "NFTSALES_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "NFTSALES_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "NFTSALES_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "NFTSALES_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "NFTSALES_S3_PREFIX")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "NFTSALES_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.DSN, "NFTSALES_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "NFTSALES_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "NFTSALES_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "NFTSALES_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "NFTSALES_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "NFTSALES_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "NFTSALES_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "NFTSALES_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "NFTSALES_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "NFTSALES_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "NFTSALES_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "NFTSALES_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NFTSALES_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NFTSALES_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NFTSALES_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NFTSALES_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NFTSALES_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "NFTSALES_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.LockTTL, "NFTSALES_REDIS_LOCK_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NFTSALES_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NFTSALES_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NFTSALES_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NFTSALES_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "NFTSALES_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and parses.
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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
