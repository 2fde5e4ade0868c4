package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Fixed is a fixed window limiter driven by ulule/limiter.
type Fixed struct {
	limiter *limiter.Limiter
}

// NewFixed builds a fixed window limiter from a formatted rate such as
// "120-M". A nil client keeps counters in process memory.
func NewFixed(client redis.UniversalClient, prefix, formatted string) (*Fixed, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	opts := limiter.StoreOptions{Prefix: prefix}
	var store limiter.Store
	if client == nil {
		store = memory.NewStoreWithOptions(opts)
	} else {
		store, err = sredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, fmt.Errorf("limiter store: %w", err)
		}
	}
	return &Fixed{limiter: limiter.New(store, rate)}, nil
}

// Take increments the counter for key.
func (f *Fixed) Take(ctx context.Context, key string) (Decision, error) {
	lc, err := f.limiter.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("fixed window %s: %w", key, err)
	}
	return Decision{
		Allowed:   !lc.Reached,
		Limit:     int(lc.Limit),
		Remaining: int(lc.Remaining),
		Reset:     time.Unix(lc.Reset, 0),
	}, nil
}
