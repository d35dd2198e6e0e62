package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"apiclient/internal/apitest"
	"apiclient/pkg/config"
	errs "apiclient/pkg/errors"
	"apiclient/pkg/health"
	"apiclient/pkg/logger"
	"apiclient/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseDelay = 5 * time.Millisecond

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newMockHTTPClient(handler func(req *http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{Transport: &mockRoundTripper{handler: handler}}
}

func newResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

// recordingObserver keeps every event it receives
type recordingObserver struct {
	mu        sync.Mutex
	attempts  []AttemptEvent
	retries   []RetryEvent
	health    []health.Status
	completed []CompletionEvent
}

func (o *recordingObserver) AttemptFinished(e AttemptEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, e)
}

func (o *recordingObserver) RetryScheduled(e RetryEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries = append(o.retries, e)
}

func (o *recordingObserver) HealthChecked(s health.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.health = append(o.health, s)
}

func (o *recordingObserver) RequestFinished(e CompletionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, e)
}

// scriptedServer answers the health endpoint with 200 and every other path
// with the next entry of the script, repeating the last entry once exhausted.
type scriptedServer struct {
	*httptest.Server
	calls atomic.Int32
	times []time.Time
	mu    sync.Mutex
}

type scripted struct {
	status int
	body   string
}

func newScriptedServer(t *testing.T, script ...scripted) *scriptedServer {
	t.Helper()
	s := &scriptedServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == health.DefaultPath {
			w.WriteHeader(http.StatusOK)
			return
		}
		n := int(s.calls.Add(1)) - 1
		s.mu.Lock()
		s.times = append(s.times, time.Now())
		s.mu.Unlock()
		if n >= len(script) {
			n = len(script) - 1
		}
		w.WriteHeader(script[n].status)
		_, _ = w.Write([]byte(script[n].body))
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestClient(base string, opts ...Option) *Client {
	all := append([]Option{WithBaseDelay(testBaseDelay)}, opts...)
	return NewClient(config.NewEndpoint(base), all...)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(config.NewEndpoint("http://api.example.com"))

	assert.Equal(t, retry.DefaultRetries, c.retries)
	assert.Equal(t, &retry.LinearBackoff{BaseDelay: DefaultBaseDelay}, c.backoff)
	assert.Zero(t, c.requestTimeout)
	require.NotNil(t, c.httpClient)
	assert.NotNil(t, c.httpClient.Jar)
	require.NotNil(t, c.probe)
	assert.Equal(t, "http://api.example.com/api/health", c.probe.URL())
	assert.IsType(t, NopObserver{}, c.observer)
	assert.Equal(t, "http://api.example.com", c.Endpoint().Base())
}

func TestNewClientWithoutProbe(t *testing.T) {
	c := NewClient(config.NewEndpoint("http://api.example.com"), WithHealthProbe(nil))
	assert.Nil(t, c.probe)

	status := c.Health(context.Background())
	assert.False(t, status.Healthy)
	assert.NoError(t, status.Err)
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "https://api.example.com"
	cfg.Retry.MaxRetries = 5
	cfg.Retry.RequestTimeout = 2 * time.Second
	cfg.Health.Path = "/status"

	c := NewClientFromConfig(cfg)

	assert.Equal(t, 5, c.retries)
	assert.Equal(t, 2*time.Second, c.requestTimeout)
	require.NotNil(t, c.probe)
	assert.Equal(t, "https://api.example.com/status", c.probe.URL())
	assert.NotNil(t, c.httpClient.Jar)

	cfg.Health.Enabled = false
	c = NewClientFromConfig(cfg)
	assert.Nil(t, c.probe)
}

func TestExhaustsRetriesOnServerErrors(t *testing.T) {
	server := newScriptedServer(t, scripted{http.StatusServiceUnavailable, `{"message":"down"}`})
	obs := &recordingObserver{}
	c := newTestClient(server.URL, WithObserver(obs))

	resp, err := c.Get(context.Background(), "/api/items")

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int32(4), server.calls.Load())

	var exhausted *errs.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.Contains(t, err.Error(), "4 attempts")
	assert.Equal(t, errs.KindExhausted, errs.KindOf(err))
	assert.Equal(t, http.StatusServiceUnavailable, errs.StatusOf(err))

	var apiErr *errs.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "down", apiErr.Message)

	assert.Len(t, obs.attempts, 4)
	assert.Len(t, obs.retries, 3)
	assert.Len(t, obs.health, 3)
	require.Len(t, obs.completed, 1)
	assert.Equal(t, 4, obs.completed[0].Attempts)
}

func TestClientErrorIsNotRetried(t *testing.T) {
	server := newScriptedServer(t, scripted{http.StatusNotFound, `{"error":"no such item"}`})
	obs := &recordingObserver{}
	c := newTestClient(server.URL, WithObserver(obs))

	_, err := c.Get(context.Background(), "/api/items/42")

	require.Error(t, err)
	assert.Equal(t, int32(1), server.calls.Load())
	assert.False(t, retry.IsExhausted(err))

	var apiErr *errs.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.KindClient, apiErr.Kind)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "no such item", apiErr.Message)
	assert.Equal(t, "no such item", apiErr.Data["error"])

	assert.Empty(t, obs.retries)
	assert.Empty(t, obs.health)
}

func TestTransportFailureThenSuccess(t *testing.T) {
	var calls atomic.Int32
	var times []time.Time
	hc := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == health.DefaultPath {
			return newResponse(http.StatusOK, ""), nil
		}
		times = append(times, time.Now())
		if calls.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return newResponse(http.StatusOK, `{"ok":true}`), nil
	})
	c := newTestClient("http://api.test", WithHTTPClient(hc))

	resp, err := c.Get(context.Background(), "/api/items")

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, map[string]any{"ok": true}, resp.Value)
	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), testBaseDelay)
}

func TestEmptySuccessBody(t *testing.T) {
	server := newScriptedServer(t, scripted{http.StatusNoContent, ""})
	c := newTestClient(server.URL)

	resp, err := c.Delete(context.Background(), "/api/items/1")

	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, resp.Value)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, resp.Attempts)
}

func TestHungHealthProbeDoesNotChangeSchedule(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == health.DefaultPath {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer server.Close()
	defer close(release)

	obs := &recordingObserver{}
	probe := health.NewProbe(server.URL+health.DefaultPath, 20*time.Millisecond, server.Client())
	c := newTestClient(server.URL, WithHealthProbe(probe), WithObserver(obs))

	resp, err := c.Get(context.Background(), "/api/items/7")

	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, map[string]any{"id": float64(7)}, resp.Value)
	require.Len(t, obs.health, 2)
	for _, s := range obs.health {
		assert.False(t, s.Healthy)
		assert.Error(t, s.Err)
	}
}

func TestProbeOutcomeDoesNotAffectResult(t *testing.T) {
	for _, healthStatus := range []int{http.StatusOK, http.StatusServiceUnavailable} {
		var calls atomic.Int32
		hc := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path == health.DefaultPath {
				return newResponse(healthStatus, ""), nil
			}
			calls.Add(1)
			return newResponse(http.StatusInternalServerError, "oops"), nil
		})
		c := newTestClient("http://api.test", WithHTTPClient(hc), WithRetryBudget(2))

		_, err := c.Get(context.Background(), "/api/items")

		var exhausted *errs.ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 3, exhausted.Attempts)
		assert.Equal(t, int32(3), calls.Load())

		var apiErr *errs.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.Empty(t, apiErr.Data)
	}
}

func TestPerRequestRetryBudget(t *testing.T) {
	server := newScriptedServer(t, scripted{http.StatusInternalServerError, ""})
	c := newTestClient(server.URL)

	_, err := c.Get(context.Background(), "/api/items", WithRetries(0))

	var exhausted *errs.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Equal(t, int32(1), server.calls.Load())
}

func TestNegativeRetryBudgetRejected(t *testing.T) {
	c := newTestClient("http://api.test")

	_, err := c.Get(context.Background(), "/api/items", WithRetries(-1))
	assert.Error(t, err)

	_, err = c.Do(context.Background(), &Request{Method: "TRACE", Path: "/"})
	assert.ErrorContains(t, err, "unsupported method")

	_, err = c.Do(context.Background(), nil)
	assert.Error(t, err)
}

func TestRequestHeadersAndBody(t *testing.T) {
	var got *http.Request
	var gotBody []byte
	hc := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		got = req
		if req.Body != nil {
			gotBody, _ = io.ReadAll(req.Body)
		}
		return newResponse(http.StatusCreated, `{"id":1}`), nil
	})
	c := newTestClient("http://api.test",
		WithHTTPClient(hc),
		WithDefaultHeader("X-Client", "apiclient"),
	)

	resp, err := c.Post(context.Background(), "/api/items",
		map[string]any{"name": "widget"},
		WithHeader("Accept", "application/vnd.items+json"),
		WithHeader(HeaderRequestID, "req-123"),
	)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "http://api.test/api/items", got.URL.String())
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "application/vnd.items+json", got.Header.Get("Accept"))
	assert.Equal(t, "apiclient", got.Header.Get("X-Client"))
	assert.Equal(t, "req-123", got.Header.Get(HeaderRequestID))
	assert.JSONEq(t, `{"name":"widget"}`, string(gotBody))
	assert.Equal(t, "req-123", resp.RequestID)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRawBodySentVerbatim(t *testing.T) {
	var gotBody []byte
	hc := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		gotBody, _ = io.ReadAll(req.Body)
		return newResponse(http.StatusOK, `{}`), nil
	})
	c := newTestClient("http://api.test", WithHTTPClient(hc))

	_, err := c.Put(context.Background(), "/api/items/1", []byte(`{"raw":true}`))
	require.NoError(t, err)
	assert.Equal(t, `{"raw":true}`, string(gotBody))

	_, err = c.Patch(context.Background(), "/api/items/1", json.RawMessage(`[1,2]`))
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(gotBody))
}

func TestUnencodableBody(t *testing.T) {
	c := newTestClient("http://api.test")

	_, err := c.Post(context.Background(), "/api/items", map[string]any{"fn": func() {}})
	assert.ErrorContains(t, err, "failed to encode request body")
}

func TestRequestIDSharedAcrossAttempts(t *testing.T) {
	var ids []string
	hc := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == health.DefaultPath {
			return newResponse(http.StatusOK, ""), nil
		}
		ids = append(ids, req.Header.Get(HeaderRequestID))
		if len(ids) < 3 {
			return newResponse(http.StatusBadGateway, ""), nil
		}
		return newResponse(http.StatusOK, `[]`), nil
	})
	c := newTestClient("http://api.test", WithHTTPClient(hc))

	resp, err := c.Get(context.Background(), "/api/items")

	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
	assert.Equal(t, ids[0], resp.RequestID)
	assert.Equal(t, []any{}, resp.Value)
}

func TestCookiesIncluded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			_, _ = w.Write([]byte(`{}`))
		case "/api/me":
			cookie, err := r.Cookie("session")
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"session":"` + cookie.Value + `"}`))
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Post(context.Background(), "/api/login", nil)
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), "/api/me")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"session": "abc"}, resp.Value)
}

func TestMalformedSuccessBodyIsRetried(t *testing.T) {
	server := newScriptedServer(t, scripted{http.StatusOK, "<html>not json</html>"})
	c := newTestClient(server.URL)

	_, err := c.Get(context.Background(), "/api/items")

	var exhausted *errs.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.Equal(t, int32(4), server.calls.Load())

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, http.StatusOK, decErr.StatusCode)
	assert.Equal(t, "<html>not json</html>", decErr.Preview)
}

func TestMalformedSuccessBodyRecovers(t *testing.T) {
	server := newScriptedServer(t,
		scripted{http.StatusOK, "<html>proxy splash</html>"},
		scripted{http.StatusOK, `{"ok":true}`},
	)
	c := newTestClient(server.URL)

	resp, err := c.Get(context.Background(), "/api/items")

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, resp.Value)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, int32(2), server.calls.Load())
}

func TestMalformedErrorBodyDegrades(t *testing.T) {
	server := newScriptedServer(t, scripted{http.StatusBadRequest, "<html>bad</html>"})
	c := newTestClient(server.URL)

	_, err := c.Get(context.Background(), "/api/items")

	var apiErr *errs.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, map[string]any{}, apiErr.Data)
	assert.Equal(t, "request failed with status 400", apiErr.Message)
}

func TestPerAttemptTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == health.DefaultPath {
			return
		}
		if calls.Add(1) == 1 {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()
	defer close(release)

	c := newTestClient(server.URL, WithRequestTimeout(50*time.Millisecond))

	resp, err := c.Get(context.Background(), "/api/slow")

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
}

func TestCallerCancellationStopsRetries(t *testing.T) {
	server := newScriptedServer(t, scripted{http.StatusServiceUnavailable, ""})
	c := newTestClient(server.URL, WithBaseDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Get(ctx, "/api/items")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), server.calls.Load())
}

func TestRequestNotMutatedByCaller(t *testing.T) {
	var got []string
	hc := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		got = append(got, req.Header.Get("X-Trace"))
		return newResponse(http.StatusOK, `{}`), nil
	})
	c := newTestClient("http://api.test", WithHTTPClient(hc))

	req := &Request{Method: http.MethodGet, Path: "/api/items", Headers: map[string]string{"X-Trace": "one"}}
	_, err := c.Do(context.Background(), req)
	require.NoError(t, err)

	req.Headers["X-Trace"] = "two"
	_, err = c.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two"}, got)
}

func TestRetryLogging(t *testing.T) {
	server := newScriptedServer(t,
		scripted{http.StatusInternalServerError, ""},
		scripted{http.StatusOK, `{}`},
	)
	log := logger.NewTestLogger()
	c := newTestClient(server.URL, WithLogger(log))

	_, err := c.Get(context.Background(), "/api/items")
	require.NoError(t, err)

	assert.True(t, log.HasMessage("HTTP request server error"))
	assert.True(t, log.HasMessage("retrying operation"))
	assert.True(t, log.HasMessage("health check passed before retry"))
	assert.True(t, log.HasMessage("operation succeeded after retry"))
	assert.Len(t, log.GetMessagesByLevel("WARN"), 2)
}

func TestDecodeHelpers(t *testing.T) {
	resp := &Response{StatusCode: http.StatusOK, Raw: []byte(`{"id":3,"name":"bolt"}`)}

	type item struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	got, err := DecodeAs[item](resp)
	require.NoError(t, err)
	assert.Equal(t, item{ID: 3, Name: "bolt"}, got)

	empty := &Response{Raw: []byte("  ")}
	target := item{ID: 9}
	require.NoError(t, empty.Decode(&target))
	assert.Equal(t, 9, target.ID)

	bad := &Response{StatusCode: http.StatusOK, Raw: []byte("nope")}
	_, err = DecodeAs[item](bad)
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestDecodeErrorBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]any
	}{
		{"empty", "", map[string]any{}},
		{"object", `{"message":"x"}`, map[string]any{"message": "x"}},
		{"array", `[1]`, map[string]any{"data": []any{float64(1)}}},
		{"string", `"boom"`, map[string]any{"data": "boom"}},
		{"malformed", `{"message":`, map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeErrorBody([]byte(tt.body)))
		})
	}
}

func TestRecoversAgainstFakeAPI(t *testing.T) {
	server := apitest.NewServer()
	defer server.Close()
	server.Handle("/api/orders", http.StatusOK, `{"orders":[]}`)
	server.FailNext("/api/orders", http.StatusServiceUnavailable, http.StatusInternalServerError)
	server.SetHealthStatus(http.StatusServiceUnavailable)

	c := newTestClient(server.URL())

	resp, err := c.Get(context.Background(), "/api/orders")

	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, map[string]any{"orders": []any{}}, resp.Value)
	assert.Equal(t, 3, server.Count("/api/orders"))
	assert.Equal(t, 2, server.HealthChecks())
}
