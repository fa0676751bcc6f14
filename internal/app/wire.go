package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/Theseuschain/the-prediction-market/internal/blob/s3"
	"github.com/Theseuschain/the-prediction-market/internal/cache/redis"
	"github.com/Theseuschain/the-prediction-market/internal/chain"
	"github.com/Theseuschain/the-prediction-market/internal/config"
	"github.com/Theseuschain/the-prediction-market/internal/domain"
	"github.com/Theseuschain/the-prediction-market/internal/identity"
	"github.com/Theseuschain/the-prediction-market/internal/oracle"
	"github.com/Theseuschain/the-prediction-market/internal/store/memory"
	"github.com/Theseuschain/the-prediction-market/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	Admin domain.AccountID
	Clock *chain.Clock
	Store domain.Store

	// Optional: nil when Redis is disabled.
	MarketCache domain.MarketCache
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Optional: nil when no oracle endpoint is configured.
	Dispatcher domain.ResolverDispatcher

	// Optional: nil when archival is disabled.
	BlobWriter *s3blob.Writer
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	return strings.ToLower(mode) == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Admin identity ---
	admin, err := domain.ParseAccountID(cfg.Admin.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: admin address: %w", err)
	}
	deps.Admin = admin

	// --- Block clock ---
	genesis, err := time.Parse(time.RFC3339, cfg.Chain.Genesis)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: chain genesis: %w", err)
	}
	deps.Clock = chain.NewClock(genesis, cfg.Chain.BlockInterval.Duration)

	// --- Store ---
	if needsPostgres(cfg.Mode) {
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
		deps.Store = postgres.NewStore(pgClient.Pool())
	} else {
		logger.Info("running with in-memory store, state will not survive restarts")
		deps.Store = memory.New()
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

		deps.MarketCache = redis.NewMarketCacheWithTTL(redisClient, cfg.Redis.CacheTTL.Duration)
		deps.SignalBus = redis.NewSignalBusWithMaxLen(redisClient, int64(cfg.Redis.StreamMaxLen))
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- Resolver oracle webhook ---
	if cfg.Oracle.Endpoint != "" {
		secret, err := identity.LoadSecret(identity.SecretConfig{
			RawSecret:           cfg.Oracle.Secret,
			EncryptedSecretPath: cfg.Oracle.EncryptedSecretPath,
			SecretPassword:      cfg.Oracle.SecretPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: oracle secret: %w", err)
		}
		auth := &identity.WebhookAuth{Secret: secret}
		deps.Dispatcher = oracle.NewDispatcher(cfg.Oracle.Endpoint, auth, logger)
	}

	// --- S3 archive storage ---
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
	}

	return deps, cleanup, nil
}
