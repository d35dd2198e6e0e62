package retry

import (
	"context"
	"errors"
	"time"

	errs "apiclient/pkg/errors"
	"apiclient/pkg/logger"
)

// DefaultRetries is the number of additional attempts allowed after the first
const DefaultRetries = 3

// Operation performs one attempt; attempt is the zero-based attempt index
type Operation func(ctx context.Context, attempt int) error

// OperationWithResult is an Operation that also returns a value
type OperationWithResult[T any] func(ctx context.Context, attempt int) (T, error)

// Config holds retry configuration
type Config struct {
	// Retries is the retry budget: attempts beyond the first
	Retries int
	// Backoff strategy to use between attempts
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before the backoff wait of each retry. It cannot
	// change the outcome of the loop.
	OnRetry func(ctx context.Context, attempt int, err error, delay time.Duration)
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Retries: DefaultRetries,
		Backoff: DefaultLinearBackoff(),
		RetryIf: errs.IsRetryable,
		Logger:  logger.NewNopLogger(),
	}
}

// Do executes op up to cfg.Retries+1 times.
//
// A non-retryable error is returned unchanged after a single attempt. When a
// retryable error remains after the last attempt, an *errors.ExhaustedError
// wrapping it is returned. Cancellation of ctx ends the loop with ctx.Err().
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = errs.IsRetryable
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = DefaultLinearBackoff()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			if attempt > 0 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt + 1,
				})
			}
			return nil
		}
		lastErr = err

		// The caller gave up; nothing left to retry for
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if !retryIf(err) {
			log.DebugWithFields("error is not retryable", map[string]interface{}{
				"attempt": attempt + 1,
				"error":   err.Error(),
			})
			return err
		}

		if attempt == retries {
			break
		}

		delay := backoff.NextDelay(attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(ctx, attempt, err, delay)
		}

		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt + 1,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": retries + 1,
		})

		if err := Wait(ctx, delay); err != nil {
			log.WarnWithFields("retry cancelled", map[string]interface{}{
				"attempt": attempt + 1,
				"reason":  err.Error(),
			})
			return err
		}
	}

	log.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
		"attempts":   retries + 1,
		"last_error": lastErr.Error(),
	})
	return &errs.ExhaustedError{Attempts: retries + 1, Last: lastErr}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, cfg *Config, op OperationWithResult[T]) (T, error) {
	var result T

	err := Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		var opErr error
		result, opErr = op(ctx, attempt)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}

// IsExhausted reports whether err is the result of a consumed retry budget
func IsExhausted(err error) bool {
	var exhausted *errs.ExhaustedError
	return errors.As(err, &exhausted)
}
