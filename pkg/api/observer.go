package api

import (
	"time"

	"apiclient/pkg/health"
)

// AttemptEvent describes one finished attempt
type AttemptEvent struct {
	Method     string
	URL        string
	Attempt    int
	StatusCode int
	Err        error
	Duration   time.Duration
}

// RetryEvent is emitted before the backoff wait that precedes a retry
type RetryEvent struct {
	Method  string
	URL     string
	Attempt int
	Delay   time.Duration
	Cause   error
}

// CompletionEvent is emitted once per call, after the last attempt
type CompletionEvent struct {
	Method   string
	URL      string
	Attempts int
	Err      error
	Duration time.Duration
}

// Observer receives notifications from the executor. Implementations must
// be safe for concurrent use and must not block.
type Observer interface {
	AttemptFinished(AttemptEvent)
	RetryScheduled(RetryEvent)
	HealthChecked(health.Status)
	RequestFinished(CompletionEvent)
}

// NopObserver ignores every notification
type NopObserver struct{}

func (NopObserver) AttemptFinished(AttemptEvent)    {}
func (NopObserver) RetryScheduled(RetryEvent)       {}
func (NopObserver) HealthChecked(health.Status)     {}
func (NopObserver) RequestFinished(CompletionEvent) {}

// MultiObserver fans notifications out to several observers
type MultiObserver []Observer

func (m MultiObserver) AttemptFinished(e AttemptEvent) {
	for _, o := range m {
		o.AttemptFinished(e)
	}
}

func (m MultiObserver) RetryScheduled(e RetryEvent) {
	for _, o := range m {
		o.RetryScheduled(e)
	}
}

func (m MultiObserver) HealthChecked(s health.Status) {
	for _, o := range m {
		o.HealthChecked(s)
	}
}

func (m MultiObserver) RequestFinished(e CompletionEvent) {
	for _, o := range m {
		o.RequestFinished(e)
	}
}
