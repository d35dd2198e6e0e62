// Package retry provides the bounded attempt loop and backoff schedules used
// for calls to the remote service.
//
// Features:
//   - A fixed retry budget: at most Retries+1 attempts per call
//   - Linear backoff (BaseDelay * (attempt+1)), exponential as an option
//   - Context support for cancellation
//   - Configurable retry predicate, defaulting to the status classifier
//   - A hook that runs before each backoff wait
//
// Basic usage:
//
//	err := retry.Do(ctx, &retry.Config{
//		Retries: 3,
//		Backoff: &retry.LinearBackoff{BaseDelay: time.Second},
//		RetryIf: errors.IsRetryable,
//		Logger:  log,
//	}, func(ctx context.Context, attempt int) error {
//		return send(ctx)
//	})
//
// The schedule has been described as "exponential backoff" in older
// documentation; the delays are linear and stay linear.
package retry
