// Package ratelimit gates outbound request dispatch so that all concurrent
// callers together stay under the OpenAlex requests-per-second budget.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "openalex_rate_limit_wait_seconds",
	Help:    "Time spent waiting for a rate limit slot before dispatch",
	Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
})

// Limiter grants permission to dispatch one request. Implementations must be
// safe for concurrent use; a single instance is shared by all fetchers in a
// process because the rate limit is a property of the remote service.
type Limiter interface {
	// Acquire blocks until the caller may dispatch, or until ctx is done.
	Acquire(ctx context.Context) error
}

// IntervalLimiter enforces a minimum interval between consecutive dispatches
// across all callers. With requests-per-second R and safety buffer B < 1 the
// interval is 1/(R*B), keeping actual throughput under the server's hard
// limit.
type IntervalLimiter struct {
	limiter *rate.Limiter
}

// New creates a shared interval limiter. requestsPerSecond must be positive;
// buffer is clamped to (0, 1].
func New(requestsPerSecond, buffer float64) *IntervalLimiter {
	if buffer <= 0 || buffer > 1 {
		buffer = 1
	}
	// Burst 1 means tokens can never accumulate, so consecutive dispatches
	// are always spaced by at least the minimum interval.
	return &IntervalLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond*buffer), 1),
	}
}

// Acquire blocks until at least the minimum interval has elapsed since the
// previous dispatch by any caller, then records the new dispatch.
func (l *IntervalLimiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// MinInterval returns the enforced interval between dispatches.
func (l *IntervalLimiter) MinInterval() time.Duration {
	return time.Duration(float64(time.Second) / float64(l.limiter.Limit()))
}

// Nop is a limiter that never blocks. Tests substitute it to avoid real
// waiting.
type Nop struct{}

// Acquire implements Limiter.
func (Nop) Acquire(ctx context.Context) error {
	return ctx.Err()
}
