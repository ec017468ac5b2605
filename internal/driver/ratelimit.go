package driver

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles the Stream Driver's line-read loop: a single
// driver-level limiter, since there is one line stream, not per-stage
// message streams.
type RateLimiter struct {
	lim *rate.Limiter
}

// NewRateLimiter returns a limiter admitting linesPerSecond lines/s, or nil
// (meaning "unlimited") if linesPerSecond <= 0.
func NewRateLimiter(linesPerSecond float64) *RateLimiter {
	if linesPerSecond <= 0 {
		return nil
	}
	return &RateLimiter{lim: rate.NewLimiter(rate.Limit(linesPerSecond), 1)}
}

// Wait blocks until the limiter admits the next line, or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.lim.Wait(ctx)
}
