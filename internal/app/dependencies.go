// Package app builds the infrastructure shared by the API and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-promo/internal/config"
	"github.com/noah-isme/toko-promo/internal/lock"
	"github.com/noah-isme/toko-promo/internal/obs"
	"github.com/noah-isme/toko-promo/internal/promotion/catalog"
	"github.com/noah-isme/toko-promo/internal/ratelimit"
	"github.com/noah-isme/toko-promo/internal/repo"
	"github.com/noah-isme/toko-promo/internal/resilience"
)

// Dependencies enumerates the connections shared across modules.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Tasks  *asynq.Client
}

// Open connects Postgres and Redis. name is reported as the Postgres
// application_name and the component field of the logger.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, name string) (*Dependencies, error) {
	pool, err := OpenPostgres(ctx, cfg, name)
	if err != nil {
		return nil, err
	}
	rdb, err := OpenRedis(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Dependencies{
		Config: cfg,
		Logger: logger,
		DB:     pool,
		Redis:  rdb,
		Tasks:  asynq.NewClientFromRedisClient(rdb),
	}, nil
}

// Close releases connections in reverse order of creation.
func (d *Dependencies) Close() {
	if d.Tasks != nil {
		if err := d.Tasks.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close task client")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// OpenPostgres builds a traced pgx pool and checks it answers.
func OpenPostgres(ctx context.Context, cfg *config.Config, name string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = name
	if cfg.DBMaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.DBMaxConns)
	}
	if cfg.DBMinConns > 0 {
		poolConfig.MinConns = int32(cfg.DBMinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis builds an instrumented Redis client and checks it answers.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// CatalogStore builds the breaker-guarded Postgres source of promotions.
func CatalogStore(cfg *config.Config, db repo.Querier, logger zerolog.Logger) repo.PromotionsTenantRepo {
	breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
		WithTarget("promotion-catalog").
		WithLogger(logger)
	return repo.PromotionsTenantRepo{
		DB:      db,
		Breaker: breaker,
		Policy: resilience.Policy{
			MaxAttempts: cfg.StoreMaxAttempts,
			BaseBackoff: cfg.StoreBaseBackoff,
			Jitter:      0.2,
		},
	}
}

// NewCatalogService wires the cached catalog over source. A nil task client
// disables warm-up scheduling.
func NewCatalogService(cfg *config.Config, source catalog.Source, rdb *redis.Client, tasks catalog.TaskEnqueuer, logger zerolog.Logger) (*catalog.Service, error) {
	var warmer catalog.Warmer
	if tasks != nil {
		warmer = catalog.NewTaskWarmer(tasks, cfg.CatalogBucket, cfg.CatalogWarmQueue)
	}
	return catalog.NewService(catalog.ServiceConfig{
		Source: source,
		Cache:  catalog.NewCache(rdb, cfg.CatalogCacheTTL),
		Bucket: cfg.CatalogBucket,
		Warmer: warmer,
		Locker: lock.Locker{R: rdb},
		Logger: logger.With().Str("component", "promotion-catalog").Logger(),
	})
}

// NewRateLimiter returns the limiter selected by RATE_LIMIT_BACKEND, or nil
// when limiting is off.
func NewRateLimiter(cfg *config.Config, rdb redis.UniversalClient) (ratelimit.Limiter, error) {
	switch cfg.RateLimitBackend {
	case "off":
		return nil, nil
	case "ulule":
		fixed, err := ratelimit.NewFixed(rdb, "toko_promo_limiter", cfg.RateLimitPricing)
		if err != nil {
			return nil, err
		}
		return fixed, nil
	default:
		return ratelimit.SlidingWindow{
			Client: rdb,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		}, nil
	}
}
