package bilibili

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/shirayuki/bilisync/internal/observability/metrics"
)

// RateLimitConfig describes a refillable leaky bucket: Limit tokens are
// available per Interval, with the bucket starting full (spec §4.1).
type RateLimitConfig struct {
	// Limit is the number of tokens the bucket holds/refills per Interval.
	// Zero disables limiting entirely.
	Limit int
	// IntervalMS is the refill period in milliseconds.
	IntervalMS int
}

// RateLimiter wraps golang.org/x/time/rate.Limiter to provide the
// {limit N, interval T} leaky bucket semantics the remote client needs: one
// token is consumed before every outgoing request (spec §4.1). A zero-value
// RateLimitConfig yields an unlimited limiter.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a RateLimiter from cfg. The bucket starts full.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Limit <= 0 || cfg.IntervalMS <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	perSecond := float64(cfg.Limit) / (float64(cfg.IntervalMS) / 1000.0)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), cfg.Limit)}
}

// Wait blocks until a token is available or ctx is cancelled. Rate-limited
// acquisitions are not cancellable mid-wait except via ctx (spec §5): the
// limiter's internal cadence governs when the wait resolves.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.limiter == nil {
		return nil
	}
	start := time.Now()
	defer func() { metrics.ObserveRateLimiterWait(time.Since(start)) }()
	return r.limiter.Wait(ctx)
}
