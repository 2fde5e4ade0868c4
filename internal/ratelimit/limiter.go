package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of taking one token for a key.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter admits or rejects one event for a key.
type Limiter interface {
	Take(ctx context.Context, key string) (Decision, error)
}
