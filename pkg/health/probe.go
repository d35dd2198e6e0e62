package health

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultPath is the liveness endpoint relative to the base endpoint
	DefaultPath = "/api/health"

	// DefaultTimeout is the hard deadline for a single check
	DefaultTimeout = 5 * time.Second
)

// Status is the outcome of a single check. It is never cached.
type Status struct {
	Healthy    bool
	StatusCode int
	Latency    time.Duration
	CheckedAt  time.Time
	Err        error
}

// Probe checks the liveness endpoint of the remote service
type Probe struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

// NewProbe creates a probe for url. A zero timeout uses DefaultTimeout and a
// nil client uses http.DefaultClient.
func NewProbe(url string, timeout time.Duration, httpClient *http.Client) *Probe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Probe{
		url:        url,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

// URL returns the probed URL
func (p *Probe) URL() string { return p.url }

// Check reports whether the service answered with a 2xx before the deadline
func (p *Probe) Check(ctx context.Context) bool {
	return p.Status(ctx).Healthy
}

// Status performs one check and returns its details. Timeouts, cancellation
// and transport failures all produce an unhealthy status; the body is ignored.
func (p *Probe) Status(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	status := Status{CheckedAt: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		status.Err = err
		return status
	}

	resp, err := p.httpClient.Do(req)
	status.Latency = time.Since(start)
	if err != nil {
		status.Err = err
		return status
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	status.StatusCode = resp.StatusCode
	status.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 300
	return status
}
