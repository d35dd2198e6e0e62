// Package ratelimit paces the batch runner so a long list of requests does
// not flood the remote service.
//
// The client itself never rate limits; every call made through it runs its
// own retry loop. Limiting happens before a call is started.
//
// Usage:
//
//	// 60 requests per minute, bursts of 10
//	limiter := ratelimit.New(60, 10)
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// Proceed with request
package ratelimit
