// Package health checks the liveness endpoint of the remote service.
//
// A check is a single GET with a hard deadline. Any 2xx reply is healthy;
// everything else, including a timeout, is unhealthy. Check never returns an
// error, so callers can probe without affecting the call they are retrying.
//
// Usage:
//
//	probe := health.NewProbe(endpoint.URL(health.DefaultPath), health.DefaultTimeout, nil)
//
//	if !probe.Check(ctx) {
//	    log.Warn("service reported unhealthy")
//	}
package health
