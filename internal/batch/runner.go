package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"apiclient/pkg/api"
	errs "apiclient/pkg/errors"
	"apiclient/pkg/logger"
	"apiclient/pkg/ratelimit"

	"golang.org/x/sync/errgroup"
)

// Doer executes one logical call, retries included
type Doer interface {
	Do(ctx context.Context, req *api.Request) (*api.Response, error)
}

// ResponseStore persists response bodies by name
type ResponseStore interface {
	IsSaved(name string) bool
	SaveResponse(name string, r io.Reader) error
}

// Result is the outcome of one job
type Result struct {
	Job      Job
	Skipped  bool
	Attempts int
	Status   int
	Error    error
	Duration time.Duration
}

// Summary aggregates the results of a run, in job order
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Runner replays jobs through the client with bounded concurrency
type Runner struct {
	concurrency int
	client      Doer
	store       ResponseStore
	limiter     ratelimit.Limiter
	logger      logger.Logger
	onResult    func(Result)
}

// Option configures a Runner
type Option func(*Runner)

// WithLimiter paces job starts
func WithLimiter(l ratelimit.Limiter) Option {
	return func(r *Runner) {
		if l != nil {
			r.limiter = l
		}
	}
}

// WithLogger sets the runner's logger
func WithLogger(log logger.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithResultHandler is called once per finished job, from the worker
// goroutine. Calls are serialized.
func WithResultHandler(fn func(Result)) Option {
	return func(r *Runner) { r.onResult = fn }
}

// NewRunner creates a runner. A non-positive concurrency runs jobs one at a time.
func NewRunner(concurrency int, client Doer, store ResponseStore, opts ...Option) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	r := &Runner{
		concurrency: concurrency,
		client:      client,
		store:       store,
		limiter:     ratelimit.Unlimited{},
		logger:      logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every job. A failed job is recorded in the summary and does
// not stop the others; only cancellation of ctx aborts the run, in which
// case the partial summary is returned along with the context error.
func (r *Runner) Run(ctx context.Context, jobs []Job) (*Summary, error) {
	start := time.Now()
	results := make([]Result, len(jobs))

	r.logger.InfoWithFields("Starting batch", map[string]interface{}{
		"jobs":        len(jobs),
		"concurrency": r.concurrency,
	})

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := r.process(gctx, job)
			results[i] = result
			if err != nil {
				return err
			}
			if r.onResult != nil {
				mu.Lock()
				r.onResult(result)
				mu.Unlock()
			}
			return nil
		})
	}

	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	summary := &Summary{Results: results, Duration: time.Since(start)}
	for _, res := range results {
		switch {
		case res.Skipped:
			summary.Skipped++
		case res.Error != nil:
			summary.Failed++
		case res.Job.Name != "":
			summary.Succeeded++
		}
	}

	r.logger.InfoWithFields("Batch finished", map[string]interface{}{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"duration":  summary.Duration.String(),
	})

	return summary, runErr
}

// process runs a single job. The returned error is non-nil only when the
// run as a whole has to stop.
func (r *Runner) process(ctx context.Context, job Job) (Result, error) {
	start := time.Now()
	result := Result{Job: job}
	log := r.logger.WithField("name", job.Name)

	if r.store.IsSaved(job.Name) {
		log.Debug("Response already saved, skipping")
		result.Skipped = true
		return result, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		result.Error = err
		return result, err
	}

	req, err := job.Request()
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result, nil
	}

	resp, err := r.client.Do(ctx, req)
	result.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			result.Error = ctx.Err()
			return result, ctx.Err()
		}
		result.Error = err
		result.Status = errs.StatusOf(err)
		var exhausted *errs.ExhaustedError
		if errors.As(err, &exhausted) {
			result.Attempts = exhausted.Attempts
		}
		log.ErrorWithFields("Request failed", map[string]interface{}{
			"kind":     string(errs.KindOf(err)),
			"attempts": result.Attempts,
			"error":    err.Error(),
		})
		return result, nil
	}

	result.Attempts = resp.Attempts
	result.Status = resp.StatusCode

	if err := r.store.SaveResponse(job.Name, bytes.NewReader(formatBody(resp.Value))); err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		log.ErrorWithFields("Failed to save response", map[string]interface{}{
			"error": err.Error(),
		})
		return result, nil
	}

	log.DebugWithFields("Request completed", map[string]interface{}{
		"status":   resp.StatusCode,
		"attempts": resp.Attempts,
		"duration": result.Duration.String(),
	})
	return result, nil
}

func formatBody(value any) []byte {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return []byte("{}\n")
	}
	return append(data, '\n')
}
