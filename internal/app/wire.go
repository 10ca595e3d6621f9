package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Rickkless-King/Fingent/internal/arb"
	s3blob "github.com/Rickkless-King/Fingent/internal/blob/s3"
	"github.com/Rickkless-King/Fingent/internal/cache/redis"
	"github.com/Rickkless-King/Fingent/internal/config"
	"github.com/Rickkless-King/Fingent/internal/crypto"
	"github.com/Rickkless-King/Fingent/internal/domain"
	"github.com/Rickkless-King/Fingent/internal/notify"
	"github.com/Rickkless-King/Fingent/internal/pipeline"
	"github.com/Rickkless-King/Fingent/internal/platform/finnhub"
	"github.com/Rickkless-King/Fingent/internal/platform/polymarket"
	"github.com/Rickkless-King/Fingent/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It is
// constructed by Wire and torn down by the returned cleanup function. Optional
// dependencies (stores, cache, bus, archiver) are nil when their backing
// service is not wired for the current mode.
type Dependencies struct {
	// Persistence
	Opportunities domain.OpportunityStore
	Runs          domain.RunStore

	// Redis-backed infrastructure
	SnapshotCache domain.SnapshotCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	// Object storage
	Archiver *s3blob.RunArchiver

	// Notifications
	Notifier *notify.Notifier

	// Detection
	Provider domain.MarketDataProvider
	News     domain.NewsProvider
	Engine   *arb.Engine
	Runner   *pipeline.Runner
}

// needsRedis returns true for modes that run the scheduled loop and therefore
// benefit from distributed locks, snapshot persistence, and pub/sub fan-out.
// Scan mode is a one-shot and runs without external infrastructure.
func needsRedis(mode string) bool {
	switch strings.ToLower(mode) {
	case "daemon", "server":
		return true
	default:
		return false
	}
}

// needsPostgres returns true for modes that persist runs and opportunities.
func needsPostgres(cfg *config.Config) bool {
	return needsRedis(cfg.Mode) && cfg.Pipeline.PersistRuns
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that persist results) ---
	if needsPostgres(cfg) {
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
		deps.Opportunities = postgres.NewOpportunityStore(pool)
		deps.Runs = postgres.NewRunStore(pool)
	}

	// --- Redis ---
	if needsRedis(cfg.Mode) {
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

		snapshotTTL := time.Duration(cfg.Pipeline.SnapshotMaxAgeHours*2) * time.Hour
		deps.SnapshotCache = redis.NewSnapshotCache(redisClient, snapshotTTL)
		deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.Polymarket.RateLimitPerS, time.Second)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 run archive ---
	if cfg.S3.Enabled && cfg.Pipeline.ArchiveRuns {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewRunArchiver(s3blob.NewWriter(s3Client), logger)
	}

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

	// --- Market data and news providers ---
	deps.Provider = polymarket.NewProvider(cfg.Polymarket, deps.RateLimiter, logger)

	news, err := wireNews(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.News = news

	// --- Detection engine and pipeline runner ---
	deps.Engine = arb.NewEngine(cfg.Arb, deps.Provider, deps.News, logger)
	deps.Runner = pipeline.NewRunner(
		pipeline.Config{
			ScanInterval:        cfg.Pipeline.ScanInterval.Duration,
			UseNewsTrigger:      cfg.Pipeline.UseNewsTrigger,
			NewsCategory:        cfg.Finnhub.Category,
			SnapshotMaxAgeHours: cfg.Pipeline.SnapshotMaxAgeHours,
		},
		deps.Engine,
		deps.Opportunities,
		deps.Runs,
		deps.SnapshotCache,
		deps.SignalBus,
		deps.LockManager,
		archiverOrNil(deps.Archiver),
		deps.Notifier,
		logger,
	)

	return deps, cleanup, nil
}

// wireNews builds the Finnhub client when a key source is configured. The news
// trigger degrades to a plain scheduled scan when no key is available.
func wireNews(cfg *config.Config, logger *slog.Logger) (domain.NewsProvider, error) {
	if cfg.Finnhub.APIKey == "" && cfg.Finnhub.EncryptedKeyPath == "" {
		return nil, nil
	}

	apiKey, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:     cfg.Finnhub.APIKey,
		EncryptedPath: cfg.Finnhub.EncryptedKeyPath,
		Password:      cfg.Finnhub.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: finnhub key: %w", err)
	}

	return finnhub.NewClient(cfg.Finnhub, apiKey, logger), nil
}

// archiverOrNil keeps a typed-nil *RunArchiver from becoming a non-nil
// interface value inside the runner.
func archiverOrNil(a *s3blob.RunArchiver) pipeline.RunArchiver {
	if a == nil {
		return nil
	}
	return a
}
