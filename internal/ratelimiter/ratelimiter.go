package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles repair attempts issued by background verification
// runs, using a token bucket: each repair consumes one token, tokens refill
// at repairsPerSecond and at most burst repairs may run back to back.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter.
//
// A zero repairsPerSecond disables throttling. A zero burst is raised to 1,
// otherwise Wait could never succeed.
func New(repairsPerSecond, burst uint) *RateLimiter {
	if repairsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst == 0 {
		burst = 1
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(repairsPerSecond), int(burst)),
	}
}

// Allow consumes a token if one is available, without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Unlimited reports whether throttling is disabled.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Tokens returns the currently available tokens, for diagnostics.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
