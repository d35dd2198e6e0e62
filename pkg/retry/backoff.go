package retry

import (
	"context"
	"math"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay to wait after the failed attempt with the
	// given zero-based index
	NextDelay(attempt int) time.Duration
}

// LinearBackoff grows the delay by BaseDelay after every failed attempt:
// BaseDelay, 2*BaseDelay, 3*BaseDelay, ...
type LinearBackoff struct {
	// BaseDelay anchors the schedule
	BaseDelay time.Duration
	// MaxDelay caps the delay; zero means uncapped
	MaxDelay time.Duration
}

// DefaultLinearBackoff returns the 1s-anchored linear schedule
func DefaultLinearBackoff() *LinearBackoff {
	return &LinearBackoff{
		BaseDelay: 1 * time.Second,
	}
}

// NextDelay returns BaseDelay * (attempt + 1)
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 || lb.BaseDelay <= 0 {
		return 0
	}

	delay := lb.BaseDelay * time.Duration(attempt+1)

	// Overflow or cap
	if delay < 0 || (lb.MaxDelay > 0 && delay > lb.MaxDelay) {
		if lb.MaxDelay > 0 {
			return lb.MaxDelay
		}
		return time.Duration(math.MaxInt64)
	}

	return delay
}

// ExponentialBackoff doubles the delay after every failed attempt.
// It is opt-in; the client uses LinearBackoff unless configured otherwise.
type ExponentialBackoff struct {
	// BaseDelay is the initial delay duration
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  1 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.0,
	}
}

// NextDelay calculates BaseDelay * Multiplier^attempt, capped at MaxDelay
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))

	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		return eb.MaxDelay
	}
	if delay < 0 {
		return 0
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit a Duration
	if delay >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(delay)
}

// NewBackoff returns the strategy registered under name, falling back to linear
func NewBackoff(name string, base, max time.Duration) BackoffStrategy {
	switch name {
	case "exponential":
		return &ExponentialBackoff{BaseDelay: base, MaxDelay: max, Multiplier: 2.0}
	default:
		return &LinearBackoff{BaseDelay: base, MaxDelay: max}
	}
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
