// Package metrics exposes client activity to Prometheus through an
// api.Observer: attempts by status code, retries and their backoff, health
// probe results, failures by kind and whole-call durations.
package metrics
