package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "apiclient/pkg/errors"
	"apiclient/pkg/logger"
	"apiclient/pkg/retry"

	"github.com/google/uuid"
)

// Do executes req against the client's endpoint.
//
// A 2xx reply yields a Response with the decoded body. A 4xx reply is
// returned at once as an *errors.APIError. A 5xx reply, a transport failure
// or a 2xx body that is not JSON is retried with linearly growing delays
// until the budget is spent, after which an *errors.ExhaustedError wrapping
// the last failure is returned. Before every retry the health endpoint is probed; the result is
// only reported to the observer and the logger.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	req = req.clone()

	retries := c.retries
	if req.Retries != nil {
		retries = *req.Retries
	}

	requestID := req.Headers[HeaderRequestID]
	if requestID == "" {
		requestID = uuid.NewString()
	}

	url := c.endpoint.URL(req.Path)
	log := c.logger.WithFields(map[string]interface{}{
		"method":     req.Method,
		"url":        url,
		"request_id": requestID,
	})

	start := time.Now()
	attempts := 0

	cfg := &retry.Config{
		Retries: retries,
		Backoff: c.backoff,
		RetryIf: errs.IsRetryable,
		Logger:  log,
		OnRetry: func(ctx context.Context, attempt int, cause error, delay time.Duration) {
			c.observer.RetryScheduled(RetryEvent{
				Method:  req.Method,
				URL:     url,
				Attempt: attempt,
				Delay:   delay,
				Cause:   cause,
			})
			c.checkHealth(ctx, log)
		},
	}

	resp, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context, attempt int) (*Response, error) {
		attempts = attempt + 1
		return c.attempt(ctx, req, url, requestID, attempt, log)
	})

	duration := time.Since(start)
	c.observer.RequestFinished(CompletionEvent{
		Method:   req.Method,
		URL:      url,
		Attempts: attempts,
		Err:      err,
		Duration: duration,
	})

	if err != nil {
		return nil, err
	}

	resp.Attempts = attempts
	resp.RequestID = requestID
	resp.Duration = duration
	return resp, nil
}

// attempt performs one HTTP exchange and classifies its outcome
func (c *Client) attempt(ctx context.Context, req *Request, url, requestID string, attempt int, log logger.Logger) (*Response, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set(HeaderRequestID, requestID)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		apiErr := errs.NewTransportError(err)
		c.observer.AttemptFinished(AttemptEvent{
			Method:   req.Method,
			URL:      url,
			Attempt:  attempt,
			Err:      apiErr,
			Duration: time.Since(start),
		})
		log.DebugWithFields("request failed without response", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
		return nil, apiErr
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	elapsed := time.Since(start)
	if err != nil {
		apiErr := errs.NewTransportError(fmt.Errorf("failed to read response body: %w", err))
		c.observer.AttemptFinished(AttemptEvent{
			Method:     req.Method,
			URL:        url,
			Attempt:    attempt,
			StatusCode: httpResp.StatusCode,
			Err:        apiErr,
			Duration:   elapsed,
		})
		return nil, apiErr
	}

	logger.LogResponse(log, req.Method, url, httpResp.StatusCode, elapsed)

	var (
		resp    *Response
		outcome error
	)
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		outcome = errs.NewStatusError(httpResp.StatusCode, decodeErrorBody(raw))
	} else {
		value, decErr := Decode(raw)
		if decErr != nil {
			var de *DecodeError
			if errors.As(decErr, &de) {
				de.StatusCode = httpResp.StatusCode
			}
			outcome = decErr
		} else {
			resp = &Response{
				StatusCode: httpResp.StatusCode,
				Header:     httpResp.Header.Clone(),
				Raw:        raw,
				Value:      value,
			}
		}
	}

	c.observer.AttemptFinished(AttemptEvent{
		Method:     req.Method,
		URL:        url,
		Attempt:    attempt,
		StatusCode: httpResp.StatusCode,
		Err:        outcome,
		Duration:   elapsed,
	})

	if outcome != nil {
		return nil, outcome
	}
	return resp, nil
}

// checkHealth probes the service before a retry. The outcome is advisory.
func (c *Client) checkHealth(ctx context.Context, log logger.Logger) {
	if c.probe == nil {
		return
	}

	status := c.probe.Status(ctx)
	c.observer.HealthChecked(status)

	if status.Healthy {
		log.Debug("health check passed before retry")
		return
	}
	fields := map[string]interface{}{
		"health_url":  c.probe.URL(),
		"status_code": status.StatusCode,
	}
	if status.Err != nil {
		fields["error"] = status.Err.Error()
	}
	log.WarnWithFields("health check failed before retry", fields)
}
