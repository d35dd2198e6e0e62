package metrics

import (
	"errors"
	"strconv"

	"apiclient/pkg/api"
	errs "apiclient/pkg/errors"
	"apiclient/pkg/health"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Observer records client activity as Prometheus metrics
type Observer struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	failures *prometheus.CounterVec
	health   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	backoff  prometheus.Histogram
}

var _ api.Observer = (*Observer)(nil)

// NewObserver registers the client metrics on reg under namespace
func NewObserver(reg prometheus.Registerer, namespace string) *Observer {
	factory := promauto.With(reg)

	return &Observer{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total number of HTTP attempts, by method and status code",
			},
			[]string{"method", "code"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of scheduled retries",
			},
			[]string{"method"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Total number of failed calls, by error kind",
			},
			[]string{"method", "kind"},
		),
		health: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "health_checks_total",
				Help:      "Total number of health probes run before a retry",
			},
			[]string{"result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of whole calls including retries and backoff",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "outcome"},
		),
		backoff: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backoff_seconds",
				Help:      "Backoff delay scheduled before a retry",
				Buckets:   []float64{0.1, 0.5, 1, 2, 3, 5, 10, 30},
			},
		),
	}
}

// AttemptFinished counts the attempt under its status code, or "none"
// when no response was received
func (o *Observer) AttemptFinished(e api.AttemptEvent) {
	code := "none"
	if e.StatusCode > 0 {
		code = strconv.Itoa(e.StatusCode)
	}
	o.attempts.WithLabelValues(e.Method, code).Inc()
}

func (o *Observer) RetryScheduled(e api.RetryEvent) {
	o.retries.WithLabelValues(e.Method).Inc()
	o.backoff.Observe(e.Delay.Seconds())
}

func (o *Observer) HealthChecked(s health.Status) {
	result := "unhealthy"
	if s.Healthy {
		result = "healthy"
	}
	o.health.WithLabelValues(result).Inc()
}

func (o *Observer) RequestFinished(e api.CompletionEvent) {
	outcome := "success"
	if e.Err != nil {
		outcome = "failure"
		o.failures.WithLabelValues(e.Method, failureKind(e.Err)).Inc()
	}
	o.duration.WithLabelValues(e.Method, outcome).Observe(e.Duration.Seconds())
}

func failureKind(err error) string {
	var decErr *api.DecodeError
	if errors.As(err, &decErr) {
		return "decode"
	}
	return string(errs.KindOf(err))
}
