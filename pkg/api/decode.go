package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const bodyPreviewLimit = 200

// DecodeError is returned when a successful response carries a body that is not JSON
type DecodeError struct {
	StatusCode int
	Preview    string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to parse JSON response (status %d): %v", e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Retryable reports true: the status was a success, so another attempt may
// get a readable body
func (e *DecodeError) Retryable() bool {
	return true
}

// Response is a successful reply from the remote service
type Response struct {
	StatusCode int
	Header     http.Header
	// Raw is the undecoded body
	Raw []byte
	// Value is the decoded body: an empty map for an empty body, otherwise
	// whatever encoding/json produces for the document
	Value any
	// Attempts is the number of attempts the call took
	Attempts  int
	RequestID string
	Duration  time.Duration
}

// Decode unmarshals the body into target. An empty body leaves target untouched.
func (r *Response) Decode(target any) error {
	trimmed := bytes.TrimSpace(r.Raw)
	if len(trimmed) == 0 {
		return nil
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return &DecodeError{StatusCode: r.StatusCode, Preview: preview(trimmed), Err: err}
	}
	return nil
}

// DecodeAs unmarshals the response body into a new T
func DecodeAs[T any](resp *Response) (T, error) {
	var out T
	err := resp.Decode(&out)
	return out, err
}

// Decode turns a raw body into a value: an empty map when the body is empty
// or whitespace, otherwise the parsed JSON document.
func Decode(body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}

	var value any
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, &DecodeError{Preview: preview(trimmed), Err: err}
	}
	return value, nil
}

// decodeErrorBody decodes the body of a failed response. It never fails:
// malformed bodies become an empty map and non-object documents are kept
// under the "data" key.
func decodeErrorBody(body []byte) map[string]any {
	value, err := Decode(body)
	if err != nil {
		return map[string]any{}
	}
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{"data": value}
}

func preview(body []byte) string {
	if len(body) > bodyPreviewLimit {
		return string(body[:bodyPreviewLimit]) + "..."
	}
	return string(body)
}
