package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy controls retries around a guarded call.
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	// Retryable decides whether an error is worth another attempt. Nil
	// retries every error except context cancellation.
	Retryable func(error) bool
}

// Call runs fn behind the breaker, retrying with exponential backoff. Errors
// that are not retryable are returned at once and do not count against the
// breaker.
func Call[T any](ctx context.Context, b *Breaker, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if b != nil && !b.Allow(ctx) {
			if lastErr != nil {
				return zero, errors.Join(ErrOpenCircuit, lastErr)
			}
			return zero, ErrOpenCircuit
		}
		out, err := fn(ctx)
		if err == nil {
			if b != nil {
				b.Report(ctx, true)
			}
			return out, nil
		}
		if !p.retryable(err) {
			if b != nil {
				b.Report(ctx, true)
			}
			return zero, err
		}
		if b != nil {
			b.Report(ctx, false)
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(Backoff(p.BaseBackoff, attempt, p.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Backoff returns base * 2^(attempt-1), spread by +/- jitterPct.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitterPct
	return d + time.Duration(delta)
}
