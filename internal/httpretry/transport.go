package httpretry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	// DefaultAttempts is the total number of attempts per request.
	DefaultAttempts = 3
	retryDelay      = 1 * time.Second
	retryMaxDelay   = 30 * time.Second
	// maxRequestSize is the default bound on the buffered request body
	// replayed on retry.
	maxRequestSize = 8 * 1024 * 1024
)

// Transport retries network errors, 429 and 5xx responses with exponential
// backoff and jitter. When attempts run out the last response is returned to
// the caller unchanged. Request bodies larger than MaxBodyBytes are rejected
// before anything is sent.
type Transport struct {
	Base         http.RoundTripper
	Attempts     uint
	Delay        time.Duration
	Logger       *slog.Logger
	MaxBodyBytes int64
}

// New wraps base with a retrying Transport.
func New(base http.RoundTripper, attempts int, logger *slog.Logger) *Transport {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Transport{Base: base, Attempts: uint(attempts), Logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := t.Attempts
	if attempts == 0 {
		attempts = 1
	}
	delay := t.Delay
	if delay <= 0 {
		delay = retryDelay
	}

	maxBody := t.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = maxRequestSize
	}

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(io.LimitReader(req.Body, maxBody+1))
		if closeErr := req.Body.Close(); closeErr != nil {
			logger.DebugContext(req.Context(), "failed to close request body", "error", closeErr)
		}
		if err != nil {
			return nil, err
		}
		if int64(len(bodyBytes)) > maxBody {
			return nil, fmt.Errorf("request body exceeds %d bytes", maxBody)
		}
	}

	var resp *http.Response
	err := retry.Do(
		func() error {
			if bodyBytes != nil {
				req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			}

			start := time.Now()
			var err error
			resp, err = base.RoundTrip(req) //nolint:bodyclose // returned to the caller
			if err != nil {
				logger.WarnContext(req.Context(), "request failed",
					"url", req.URL.String(), "error", err, "elapsed", time.Since(start))
				return err
			}
			logger.DebugContext(req.Context(), "response received",
				"status", resp.StatusCode, "elapsed", time.Since(start))

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				// Buffer the body so the final response can still be read by the caller.
				body, readErr := io.ReadAll(resp.Body)
				if readErr != nil {
					body = nil
				}
				if closeErr := resp.Body.Close(); closeErr != nil {
					logger.DebugContext(req.Context(), "failed to close response body", "error", closeErr)
				}
				resp.Body = io.NopCloser(bytes.NewReader(body))
				logger.InfoContext(req.Context(), "request will be retried", "status", resp.StatusCode)
				return &retryableError{StatusCode: resp.StatusCode}
			}
			return nil
		},
		retry.Context(req.Context()),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.MaxDelay(retryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxJitter(delay/2),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
	if err != nil {
		var re *retryableError
		if errors.As(err, &re) && resp != nil {
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}

type retryableError struct {
	StatusCode int
}

func (e *retryableError) Error() string {
	return http.StatusText(e.StatusCode)
}
