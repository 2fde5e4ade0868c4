package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-promo/internal/common"
)

const defaultProbeTimeout = 500 * time.Millisecond

var draining atomic.Bool

// SetReady toggles readiness. Binaries flip it off when shutdown begins so
// load balancers stop routing before connections close.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// Check is a named probe with its own deadline.
type Check struct {
	Name    string
	Timeout time.Duration
	Probe   Probe
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProbe probes a Postgres pool.
func PingProbe(p Pinger) Probe {
	return func(ctx context.Context) error { return p.Ping(ctx) }
}

// RedisProbe probes a Redis client.
func RedisProbe(c redis.UniversalClient) Probe {
	return func(ctx context.Context) error { return c.Ping(ctx).Err() }
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks []Check
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every check concurrently and answers 503 when any fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	if len(h.Checks) == 0 {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no dependencies configured"})
		return
	}

	results := make([]string, len(h.Checks))
	var wg sync.WaitGroup
	for i, check := range h.Checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run(r.Context(), check)
		}()
	}
	wg.Wait()

	status := http.StatusOK
	body := make(map[string]string, len(h.Checks))
	for i, check := range h.Checks {
		body[check.Name] = results[i]
		if results[i] != "ok" {
			status = http.StatusServiceUnavailable
		}
	}
	common.JSON(w, status, body)
}

func run(ctx context.Context, check Check) string {
	if check.Probe == nil {
		return "not configured"
	}
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := check.Probe(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}
