package apitest

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, s *Server, path string) (int, string) {
	t.Helper()
	resp, err := s.Client().Get(s.URL() + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServerRoutesAndFailures(t *testing.T) {
	s := NewServer()
	defer s.Close()

	s.Handle("/api/items", http.StatusOK, `[]`)
	s.FailNext("/api/items", http.StatusServiceUnavailable, http.StatusBadGateway)

	status, _ := get(t, s, "/api/items")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, _ = get(t, s, "/api/items")
	assert.Equal(t, http.StatusBadGateway, status)
	status, body := get(t, s, "/api/items")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `[]`, body)

	status, body = get(t, s, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "Not Found")

	assert.Equal(t, 3, s.Count("/api/items"))
	assert.Equal(t, 4, s.RequestCount())

	s.ResetCounters()
	assert.Zero(t, s.RequestCount())
	assert.Zero(t, s.Count("/api/items"))
}

func TestServerEchoesWrites(t *testing.T) {
	s := NewServer()
	defer s.Close()

	req, err := http.NewRequest(http.MethodPut, s.URL()+"/api/items/1", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	req.Header.Set("X-Trace", "t1")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"a":1}`, string(body))
	assert.Equal(t, `{"a":1}`, string(s.LastBody("/api/items/1")))
	assert.Equal(t, "t1", s.LastHeader("/api/items/1").Get("X-Trace"))
}

func TestServerHealthAndDelay(t *testing.T) {
	s := NewServer()
	defer s.Close()

	status, _ := get(t, s, HealthPath)
	assert.Equal(t, http.StatusOK, status)

	s.SetHealthStatus(http.StatusServiceUnavailable)
	status, _ = get(t, s, HealthPath)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, 2, s.HealthChecks())
	assert.Zero(t, s.RequestCount())

	s.Handle("/api/slow", http.StatusOK, `{}`)
	s.SetDelay("/api/slow", 30*time.Millisecond)
	start := time.Now()
	get(t, s, "/api/slow")
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
