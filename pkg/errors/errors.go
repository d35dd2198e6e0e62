package errors

import (
	"errors"
	"fmt"
)

// Kind represents the class of failure surfaced to a caller
type Kind string

const (
	KindClient    Kind = "client"
	KindServer    Kind = "server"
	KindTransport Kind = "transport"
	KindExhausted Kind = "exhausted"
	KindUnknown   Kind = "unknown"
)

// APIError is the error returned for a failed call to the remote service.
// Status is zero when no response was obtained.
type APIError struct {
	Kind    Kind
	Status  int
	Message string
	// Data holds the decoded error payload; never nil.
	Data map[string]any
	// Err is the underlying transport failure, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned once the retry budget is consumed on a retryable outcome
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// NewStatusError builds the error for a response outside the 2xx range.
// The message is taken from the payload's "message" or "error" field when
// one of them is a non-empty string.
func NewStatusError(status int, data map[string]any) *APIError {
	if data == nil {
		data = map[string]any{}
	}

	kind := KindServer
	if IsTerminalStatus(status) {
		kind = KindClient
	}

	return &APIError{
		Kind:    kind,
		Status:  status,
		Message: messageFromPayload(status, data),
		Data:    data,
	}
}

// NewTransportError wraps a failure where no response was obtained
func NewTransportError(err error) *APIError {
	msg := "no response received"
	if err != nil {
		msg = err.Error()
	}
	return &APIError{
		Kind:    KindTransport,
		Message: msg,
		Data:    map[string]any{},
		Err:     err,
	}
}

func messageFromPayload(status int, data map[string]any) string {
	for _, key := range []string{"message", "error"} {
		if s, ok := data[key].(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}

// IsTerminalStatus reports whether a status code must be surfaced without retrying
func IsTerminalStatus(status int) bool {
	return status >= 400 && status < 500
}

// Retryable is implemented by failures outside this package that describe
// an attempt outcome rather than a mistake in the request
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether another attempt may be made after err.
// Only a status in [400, 500) is terminal; every other APIError, with or
// without a status, is retryable, as is any error implementing Retryable
// that says so. Other errors are not retried.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !IsTerminalStatus(apiErr.Status)
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// KindOf returns the failure class of err, looking through wrapped errors
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return KindExhausted
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// StatusOf returns the HTTP status carried by err, or zero
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
