package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	// HeaderRequestID carries the identifier shared by every attempt of one call
	HeaderRequestID = "X-Request-ID"

	contentTypeJSON = "application/json"
)

// Request describes one logical call. Do copies it before the first attempt,
// so later changes by the caller do not affect a call in progress.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
	// Retries overrides the client's retry budget when non-nil
	Retries *int
}

// RequestOption adjusts a Request built by the verb helpers
type RequestOption func(*Request)

// WithHeaders merges headers into the request, overriding the defaults
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			r.Headers[k] = v
		}
	}
}

// WithHeader sets a single request header
func WithHeader(key, value string) RequestOption {
	return WithHeaders(map[string]string{key: value})
}

// WithRetries sets the retry budget for this request only
func WithRetries(n int) RequestOption {
	return func(r *Request) {
		r.Retries = &n
	}
}

func (r *Request) clone() *Request {
	c := &Request{
		Method: r.Method,
		Path:   r.Path,
	}
	if r.Headers != nil {
		c.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			c.Headers[k] = v
		}
	}
	if r.Body != nil {
		c.Body = bytes.Clone(r.Body)
	}
	if r.Retries != nil {
		n := *r.Retries
		c.Retries = &n
	}
	return c
}

func (r *Request) validate() error {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("unsupported method %q", r.Method)
	}
	if r.Retries != nil && *r.Retries < 0 {
		return fmt.Errorf("retry budget cannot be negative: %d", *r.Retries)
	}
	return nil
}

// encodeBody serializes a verb helper body. Byte slices are sent verbatim;
// anything else is marshalled to JSON.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, nil
	}
}
