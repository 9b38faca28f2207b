package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/marketlab/bookkeeper/internal/blob/s3"
	"github.com/marketlab/bookkeeper/internal/cache/redis"
	"github.com/marketlab/bookkeeper/internal/config"
	"github.com/marketlab/bookkeeper/internal/domain"
	"github.com/marketlab/bookkeeper/internal/store/postgres"
)

// Dependencies bundles the backend implementations the application modes
// need. Every field may be nil when its backend is disabled; the consumers
// degrade to in-memory-only operation.
type Dependencies struct {
	// Postgres
	SampleStore domain.SampleStore
	TradeStore  domain.TradeStore

	// Redis
	QuoteMirror domain.QuoteMirror
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// S3
	BlobWriter domain.BlobWriter
}

// Wire constructs the enabled backends from the configuration and returns
// them with a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

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

		deps.SampleStore = postgres.NewSampleStore(pgClient)
		deps.TradeStore = postgres.NewTradeStore(pgClient)
		logger.Info("postgres wired")
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteMirror = redis.NewBBOMirror(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		logger.Info("redis wired")
	}

	// --- S3 frame archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		logger.Info("s3 archive wired")
	}

	return deps, cleanup, nil
}
