// Package config defines the configuration for the NFT sales exporter and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from
// Defaults, an optional TOML file, NFTSALES_* environment variables and
// finally command-line flags.
type Config struct {
	Alchemy  AlchemyConfig  `toml:"alchemy"`
	Job      JobConfig      `toml:"job"`
	Output   OutputConfig   `toml:"output"`
	S3       S3Config       `toml:"s3"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// AlchemyConfig holds the upstream NFT API endpoint and fetch policy.
type AlchemyConfig struct {
	BaseURL     string   `toml:"base_url"`
	APIKey      string   `toml:"api_key"`
	Timeout     duration `toml:"timeout"`
	MaxAttempts int      `toml:"max_attempts"`
	RetryDelay  duration `toml:"retry_delay"`
	// RateLimitPerSecond paces upstream requests through Redis. 0 disables it.
	RateLimitPerSecond int `toml:"rate_limit_per_second"`
}

// JobConfig selects the contract and inclusive block range to export.
type JobConfig struct {
	ContractAddress string `toml:"contract_address"`
	StartBlock      uint64 `toml:"start_block"`
	EndBlock        uint64 `toml:"end_block"`
}

// OutputConfig holds export destinations. S3Key enables the S3 upload and
// may contain {contract}, {from}, {to} and {run} placeholders.
type OutputConfig struct {
	Path  string `toml:"path"`
	S3Key string `toml:"s3_key"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// RedisConfig holds Redis connection parameters and the run lock TTL.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	LockTTL    duration `toml:"lock_ttl"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5s", "30m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values used when nothing else
// is set.
func Defaults() Config {
	return Config{
		Alchemy: AlchemyConfig{
			BaseURL:     "https://eth-mainnet.g.alchemy.com/nft/v2",
			Timeout:     duration{30 * time.Second},
			MaxAttempts: 3,
			RetryDelay:  duration{5 * time.Second},
		},
		Output: OutputConfig{
			Path: "nft_sales.csv",
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  0,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   4,
			MaxRetries: 3,
			LockTTL:    duration{time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"export_complete", "export_failed"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Alchemy
	if c.Alchemy.BaseURL == "" {
		errs = append(errs, "alchemy: base_url must not be empty")
	}
	if c.Alchemy.APIKey == "" {
		errs = append(errs, "alchemy: api_key is required")
	}
	if c.Alchemy.MaxAttempts < 1 {
		errs = append(errs, "alchemy: max_attempts must be >= 1")
	}
	if c.Alchemy.RetryDelay.Duration < 0 {
		errs = append(errs, "alchemy: retry_delay must not be negative")
	}
	if c.Alchemy.RateLimitPerSecond < 0 {
		errs = append(errs, "alchemy: rate_limit_per_second must be >= 0")
	}
	if c.Alchemy.RateLimitPerSecond > 0 && !c.Redis.Enabled {
		errs = append(errs, "alchemy: rate_limit_per_second requires redis.enabled")
	}

	// Job
	if !common.IsHexAddress(c.Job.ContractAddress) {
		errs = append(errs, fmt.Sprintf("job: contract_address %q is not a hex address", c.Job.ContractAddress))
	}

	// Output
	if strings.TrimSpace(c.Output.Path) == "" {
		errs = append(errs, "output: path must not be empty")
	}
	if c.Output.S3Key != "" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket is required when output.s3_key is set")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region is required when output.s3_key is set")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
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
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
