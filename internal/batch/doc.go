// Package batch replays a YAML list of requests through the API client.
//
// Jobs run on a bounded number of goroutines and are paced by a rate
// limiter. Every job is an independent call with its own retry loop; a
// failed job is reported in the summary and the others carry on. Successful
// responses are stored as <name>.json and skipped on the next run.
package batch
