package api

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"time"

	"apiclient/pkg/config"
	"apiclient/pkg/health"
	"apiclient/pkg/logger"
	"apiclient/pkg/retry"

	"golang.org/x/net/publicsuffix"
)

// DefaultBaseDelay anchors the linear backoff schedule
const DefaultBaseDelay = 1 * time.Second

// Client is the single entry point for calls to the remote service. It holds
// no per-call state and is safe for concurrent use.
type Client struct {
	endpoint       config.Endpoint
	httpClient     *http.Client
	headers        map[string]string
	retries        int
	backoff        retry.BackoffStrategy
	requestTimeout time.Duration
	probe          *health.Probe
	probeDisabled  bool
	observer       Observer
	logger         logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The cookie jar is only
// installed on the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithRetryBudget sets the default number of retries per call
func WithRetryBudget(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the delay schedule between attempts
func WithBackoff(b retry.BackoffStrategy) Option {
	return func(c *Client) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithBaseDelay uses the linear schedule anchored at d
func WithBaseDelay(d time.Duration) Option {
	return WithBackoff(&retry.LinearBackoff{BaseDelay: d})
}

// WithRequestTimeout bounds each attempt. Zero, the default, leaves attempts unbounded.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// WithHealthProbe sets the probe consulted before each retry
func WithHealthProbe(p *health.Probe) Option {
	return func(c *Client) {
		c.probe = p
		c.probeDisabled = p == nil
	}
}

// WithObserver sets the observability hook
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithDefaultHeader adds a header sent with every request
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// NewClient creates a client for the given endpoint. Unless replaced, the
// client carries a cookie jar so session cookies travel with every call, and
// probes {base}/api/health before retries.
func NewClient(endpoint config.Endpoint, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		headers: map[string]string{
			"Content-Type": contentTypeJSON,
			"Accept":       contentTypeJSON,
		},
		retries:  retry.DefaultRetries,
		backoff:  &retry.LinearBackoff{BaseDelay: DefaultBaseDelay},
		observer: NopObserver{},
		logger:   logger.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err == nil {
			c.httpClient.Jar = jar
		}
	}

	if c.probe == nil && !c.probeDisabled {
		c.probe = health.NewProbe(endpoint.URL(health.DefaultPath), health.DefaultTimeout, c.httpClient)
	}

	return c
}

// NewClientFromConfig builds a client from loaded configuration
func NewClientFromConfig(cfg *config.Config, opts ...Option) *Client {
	endpoint := config.ResolveEndpoint(cfg.API)
	hc := &http.Client{}
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		hc.Jar = jar
	}

	var probe *health.Probe
	if cfg.Health.Enabled {
		probe = health.NewProbe(endpoint.URL(cfg.Health.Path), cfg.Health.Timeout, hc)
	}

	base := []Option{
		WithHTTPClient(hc),
		WithRetryBudget(cfg.Retry.MaxRetries),
		WithBackoff(retry.NewBackoff(cfg.Retry.Strategy, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay)),
		WithRequestTimeout(cfg.Retry.RequestTimeout),
		WithHealthProbe(probe),
	}
	return NewClient(endpoint, append(base, opts...)...)
}

// Endpoint returns the base endpoint the client resolves paths against
func (c *Client) Endpoint() config.Endpoint {
	return c.endpoint
}

// Health runs the liveness probe once. A client without a probe reports
// an unhealthy status with no error.
func (c *Client) Health(ctx context.Context) health.Status {
	if c.probe == nil {
		return health.Status{CheckedAt: time.Now()}
	}
	return c.probe.Status(ctx)
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, http.MethodGet, path, nil, opts)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, http.MethodDelete, path, nil, opts)
}

// Post performs a POST request; a non-nil body is sent as JSON
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, http.MethodPost, path, body, opts)
}

// Put performs a PUT request; a non-nil body is sent as JSON
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, http.MethodPut, path, body, opts)
}

// Patch performs a PATCH request; a non-nil body is sent as JSON
func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, http.MethodPatch, path, body, opts)
}

func (c *Client) send(ctx context.Context, method, path string, body any, opts []RequestOption) (*Response, error) {
	data, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	req := &Request{Method: method, Path: path, Body: data}
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(ctx, req)
}
