package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the limiter to a full bucket
	Reset()
}

// TokenBucket spreads requests evenly over a minute while allowing bursts
type TokenBucket struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewTokenBucket creates a limiter admitting requestsPerMinute on average
// with bursts of up to burst requests. A non-positive burst is treated as 1.
func NewTokenBucket(requestsPerMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Every(time.Minute / time.Duration(max(requestsPerMinute, 1)))
	return &TokenBucket{
		limit:   limit,
		burst:   burst,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (tb *TokenBucket) current() *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limiter
}

// Allow takes a token if one is available
func (tb *TokenBucket) Allow() bool {
	return tb.current().Allow()
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.current().Wait(ctx)
}

// Reset refills the bucket to its burst capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.limiter = rate.NewLimiter(tb.limit, tb.burst)
}

// Unlimited admits every request
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

func (Unlimited) Reset() {}

// New returns a token bucket, or Unlimited when requestsPerMinute is not positive
func New(requestsPerMinute, burst int) Limiter {
	if requestsPerMinute <= 0 {
		return Unlimited{}
	}
	return NewTokenBucket(requestsPerMinute, burst)
}
