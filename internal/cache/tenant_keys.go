package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/noah-isme/toko-promo/internal/tenant"
)

// KeyPromotionCatalog returns the per-tenant key for the catalog snapshot of a time bucket.
func KeyPromotionCatalog(ctx context.Context, bucket time.Time) string {
	base := "promotions:catalog:" + strconv.FormatInt(bucket.Unix(), 10)
	id, ok := tenant.From(ctx)
	if !ok {
		return base
	}
	return tenant.PrefixKey(id, base)
}

// KeyRateLimit returns the per-tenant rate limit key for a client on a route.
func KeyRateLimit(ctx context.Context, route, client string) string {
	base := "ratelimit:" + route + ":" + client
	id, ok := tenant.From(ctx)
	if !ok {
		return base
	}
	return tenant.PrefixKey(id, base)
}

// KeyCatalogWarmLock returns the per-tenant lock key guarding a snapshot rebuild.
func KeyCatalogWarmLock(ctx context.Context, bucket time.Time) string {
	return KeyPromotionCatalog(ctx, bucket) + ":warm"
}
