// Package apitest provides an in-process stand-in for the back end API.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// HealthPath is where the fake API answers liveness probes
const HealthPath = "/api/health"

// Route is a canned reply for one path
type Route struct {
	Status int
	Body   string
}

// Server simulates the back end: canned routes, injected failures, delays
// and a health endpoint, with per-path request counters
type Server struct {
	server *httptest.Server

	mu           sync.RWMutex
	routes       map[string]Route
	failures     map[string][]int
	delays       map[string]time.Duration
	healthStatus int
	counts       map[string]int
	lastBodies   map[string][]byte
	lastHeaders  map[string]http.Header

	requestCount int32
	healthChecks int32
}

// NewServer starts a fake API. Unknown paths answer 404 with a JSON message;
// POST, PUT and PATCH to unknown paths echo the request body.
func NewServer() *Server {
	s := &Server{
		routes:       make(map[string]Route),
		failures:     make(map[string][]int),
		delays:       make(map[string]time.Duration),
		healthStatus: http.StatusOK,
		counts:       make(map[string]int),
		lastBodies:   make(map[string][]byte),
		lastHeaders:  make(map[string]http.Header),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == HealthPath {
		atomic.AddInt32(&s.healthChecks, 1)
		s.mu.RLock()
		status := s.healthStatus
		s.mu.RUnlock()
		w.WriteHeader(status)
		return
	}

	atomic.AddInt32(&s.requestCount, 1)
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.counts[path]++
	s.lastBodies[path] = body
	s.lastHeaders[path] = r.Header.Clone()
	delay := s.delays[path]
	var failure int
	if queue := s.failures[path]; len(queue) > 0 {
		failure, s.failures[path] = queue[0], queue[1:]
	}
	route, ok := s.routes[path]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if failure > 0 {
		s.sendError(w, failure)
		return
	}

	switch {
	case ok:
		w.WriteHeader(route.Status)
		_, _ = io.WriteString(w, route.Body)
	case r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch:
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	default:
		s.sendError(w, http.StatusNotFound)
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"message": http.StatusText(code),
		"status":  code,
	})
}

// Handle sets the reply for path
func (s *Server) Handle(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = Route{Status: status, Body: body}
}

// FailNext makes the next requests to path fail with the given statuses, in order
func (s *Server) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// SetDelay delays every reply on path
func (s *Server) SetDelay(path string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = delay
}

// SetHealthStatus sets the status of the health endpoint
func (s *Server) SetHealthStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthStatus = status
}

// URL returns the base URL of the server
func (s *Server) URL() string {
	return s.server.URL
}

// Client returns an HTTP client wired to the server
func (s *Server) Client() *http.Client {
	return s.server.Client()
}

// Count returns the number of requests received on path
func (s *Server) Count(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[path]
}

// LastBody returns the body of the latest request on path
func (s *Server) LastBody(path string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBodies[path]
}

// LastHeader returns the headers of the latest request on path
func (s *Server) LastHeader(path string) http.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHeaders[path]
}

// RequestCount returns the number of API requests, health checks excluded
func (s *Server) RequestCount() int {
	return int(atomic.LoadInt32(&s.requestCount))
}

// HealthChecks returns the number of health probes received
func (s *Server) HealthChecks() int {
	return int(atomic.LoadInt32(&s.healthChecks))
}

// ResetCounters clears all counters
func (s *Server) ResetCounters() {
	atomic.StoreInt32(&s.requestCount, 0)
	atomic.StoreInt32(&s.healthChecks, 0)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]int)
}

// Close shuts down the server
func (s *Server) Close() {
	s.server.Close()
}
