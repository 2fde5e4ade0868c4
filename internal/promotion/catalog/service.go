// Package catalog loads the tenant's promotion catalog through a
// time-bucketed Redis read-through cache.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-promo/internal/cache"
	"github.com/noah-isme/toko-promo/internal/obs"
	"github.com/noah-isme/toko-promo/internal/promotion"
	"github.com/noah-isme/toko-promo/internal/tenant"
)

// ErrTenantRequired is returned when the context carries no tenant.
var ErrTenantRequired = errors.New("catalog: tenant is required")

// DefaultBucket is the snapshot width used when none is configured.
const DefaultBucket = time.Minute

// Source loads the promotions of the context tenant that are active at any
// point in [from, to).
type Source interface {
	ActivePromotions(ctx context.Context, from, to time.Time) ([]promotion.Promotion, error)
}

// Warmer schedules a snapshot load for a future bucket.
type Warmer interface {
	EnqueueWarm(ctx context.Context, tenantID string, bucket time.Time) error
}

// Locker guards a snapshot rebuild so concurrent workers do not load the
// same bucket twice. Satisfied by lock.Locker.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) (bool, error)
}

// Service resolves catalog snapshots for the engine.
type Service struct {
	source Source
	cache  *Cache
	bucket time.Duration
	warmer Warmer
	locker Locker
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source Source
	Cache  *Cache
	Bucket time.Duration
	Warmer Warmer
	Locker Locker
	Logger zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("catalog: promotion source is required")
	}
	bucket := cfg.Bucket
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	return &Service{
		source: cfg.Source,
		cache:  cfg.Cache,
		bucket: bucket,
		warmer: cfg.Warmer,
		locker: cfg.Locker,
		logger: cfg.Logger,
	}, nil
}

// Bucket returns the start of the snapshot bucket containing at.
func (s *Service) Bucket(at time.Time) time.Time {
	return at.UTC().Truncate(s.bucket)
}

// Promotions returns the candidate promotions for an evaluation at the given
// instant. The snapshot covers the whole bucket; the engine still checks each
// promotion's window against the exact instant. Redis failures fall back to
// the source.
func (s *Service) Promotions(ctx context.Context, at time.Time) ([]promotion.Promotion, error) {
	tenantID, ok := tenant.From(ctx)
	if !ok {
		return nil, ErrTenantRequired
	}
	bucket := s.Bucket(at)
	key := cache.KeyPromotionCatalog(ctx, bucket)

	if s.cache != nil {
		promos, found, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			obs.ObserveCatalogCache(obs.CacheError)
			s.logger.Warn().Err(err).Str("tenant_id", tenantID).Str("key", key).Msg("promotion catalog cache read failed")
		case found:
			obs.ObserveCatalogCache(obs.CacheHit)
			return promos, nil
		default:
			obs.ObserveCatalogCache(obs.CacheMiss)
		}
	}

	promos, err := s.load(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, promos); err != nil {
			s.logger.Warn().Err(err).Str("tenant_id", tenantID).Str("key", key).Msg("promotion catalog cache write failed")
		}
		s.scheduleNext(ctx, tenantID, bucket)
	}
	return promos, nil
}

// Warm loads and stores the snapshot for the bucket containing at. A bucket
// already cached, or being rebuilt by another holder of the warm lock, is left
// alone.
func (s *Service) Warm(ctx context.Context, at time.Time) error {
	tenantID, ok := tenant.From(ctx)
	if !ok {
		return ErrTenantRequired
	}
	if s.cache == nil {
		return errors.New("catalog: cache is not configured")
	}
	bucket := s.Bucket(at)
	if s.locker == nil {
		return s.warm(ctx, bucket)
	}
	acquired, err := s.locker.TryWithLock(ctx, cache.KeyCatalogWarmLock(ctx, bucket), s.bucket, func(ctx context.Context) error {
		return s.warm(ctx, bucket)
	})
	if err != nil {
		return err
	}
	if !acquired {
		s.logger.Debug().Str("tenant_id", tenantID).Time("bucket", bucket).Msg("promotion catalog warm already in progress")
	}
	return nil
}

func (s *Service) warm(ctx context.Context, bucket time.Time) error {
	key := cache.KeyPromotionCatalog(ctx, bucket)
	if _, found, err := s.cache.Get(ctx, key); err == nil && found {
		return nil
	}
	promos, err := s.load(ctx, bucket)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, promos)
}

func (s *Service) load(ctx context.Context, bucket time.Time) ([]promotion.Promotion, error) {
	promos, err := s.source.ActivePromotions(ctx, bucket, bucket.Add(s.bucket))
	if err != nil {
		return nil, fmt.Errorf("load promotion catalog: %w", err)
	}
	return promos, nil
}

func (s *Service) scheduleNext(ctx context.Context, tenantID string, bucket time.Time) {
	if s.warmer == nil {
		return
	}
	next := bucket.Add(s.bucket)
	if err := s.warmer.EnqueueWarm(ctx, tenantID, next); err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", tenantID).Time("bucket", next).Msg("enqueue catalog warm-up failed")
	}
}
