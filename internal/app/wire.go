package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/nftsales/internal/blob/s3"
	"github.com/alanyoungcy/nftsales/internal/cache/redis"
	"github.com/alanyoungcy/nftsales/internal/config"
	"github.com/alanyoungcy/nftsales/internal/domain"
	"github.com/alanyoungcy/nftsales/internal/notify"
	"github.com/alanyoungcy/nftsales/internal/pipeline"
	"github.com/alanyoungcy/nftsales/internal/platform/alchemy"
	"github.com/alanyoungcy/nftsales/internal/store/postgres"
)

// pacerKey names the shared upstream request budget in Redis.
const pacerKey = "alchemy:getNFTSales"

// healthCheck is one backend probe run by check mode.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Fetcher  *pipeline.SalesFetcher
	Exporter *pipeline.Exporter

	// Optional backends; nil when disabled.
	RunStore    domain.RunStore
	LockManager domain.LockManager
	Notifier    *notify.Notifier

	checks []healthCheck
}

// Wire constructs the concrete implementations selected by cfg and returns
// them with a cleanup function that releases every opened connection.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	sinks := []pipeline.Sink{pipeline.NewFileSink(cfg.Output.Path)}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.RunStore = postgres.NewRunStore(pool)
		sinks = append(sinks, pipeline.NewStoreSink(postgres.NewSaleStore(pool)))
		deps.checks = append(deps.checks, healthCheck{name: "postgres", check: pgClient.Ping})
	}

	// --- Redis ---
	var pacer pipeline.Pacer
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		if n := cfg.Alchemy.RateLimitPerSecond; n > 0 {
			pacer = redis.NewPacer(redis.NewRateLimiter(redisClient), pacerKey, n, time.Second)
		}
		deps.checks = append(deps.checks, healthCheck{name: "redis", check: redisClient.Ping})
	}

	// --- S3 ---
	if cfg.Output.S3Key != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		sinks = append(sinks, pipeline.NewBlobSink(s3blob.NewWriter(s3Client), cfg.Output.S3Key))
		deps.checks = append(deps.checks, healthCheck{name: "s3", check: s3Client.Health})
	}

	// --- Fetch pipeline ---
	source := alchemy.NewClient(cfg.Alchemy.BaseURL, cfg.Alchemy.APIKey, cfg.Alchemy.Timeout.Duration)
	fetchOpts := []pipeline.FetcherOption{
		pipeline.WithMaxAttempts(cfg.Alchemy.MaxAttempts),
		pipeline.WithRetryDelay(cfg.Alchemy.RetryDelay.Duration),
	}
	if pacer != nil {
		fetchOpts = append(fetchOpts, pipeline.WithPacer(pacer))
	}
	deps.Fetcher = pipeline.NewSalesFetcher(source, logger, fetchOpts...)
	deps.Exporter = pipeline.NewExporter(sinks, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
