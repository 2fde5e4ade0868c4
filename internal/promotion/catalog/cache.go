package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-promo/internal/promotion"
)

// Cache stores catalog snapshots in Redis as JSON with a fixed TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get reports whether a snapshot exists under key and decodes it.
func (c *Cache) Get(ctx context.Context, key string) ([]promotion.Promotion, bool, error) {
	if c == nil || c.client == nil || key == "" {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var promos []promotion.Promotion
	if err := json.Unmarshal(data, &promos); err != nil {
		return nil, false, err
	}
	return promos, true, nil
}

// Set stores the snapshot. Concurrent writers for the same key compute the
// same snapshot, so the last write wins.
func (c *Cache) Set(ctx context.Context, key string, promos []promotion.Promotion) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	if promos == nil {
		promos = []promotion.Promotion{}
	}
	data, err := json.Marshal(promos)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
