package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/prguard/internal/apperr"
	"github.com/dshills/prguard/internal/httpretry"
)

const (
	// VersionHeader carries the API version the client speaks.
	VersionHeader = "whitecircle-version"
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 120 * time.Second

	maxResponseSize = 4 * 1024 * 1024
)

// Options configures a Client.
type Options struct {
	Endpoint      string
	APIKey        string
	APIVersion    string
	Timeout       time.Duration
	RetryAttempts int
}

// Client sends batches to the safety service.
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	http       *http.Client
	logger     *slog.Logger
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client. The caller's transport is used
// as-is, without retry wrapping.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a Client. Endpoint and APIKey are required.
func New(opts Options, options ...Option) (*Client, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, apperr.Configf("safety", "endpoint is not set")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, apperr.Configf("safety", "API key is not set")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		endpoint:   opts.Endpoint,
		apiKey:     opts.APIKey,
		apiVersion: opts.APIVersion,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout:   timeout,
			Transport: httpretry.New(http.DefaultTransport, opts.RetryAttempts, c.logger),
		}
	}
	return c, nil
}

// Check sends one request and returns the service's verdict for it.
func (c *Client) Check(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, apperr.Transportf("safety", err, "creating request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.apiVersion != "" {
		httpReq.Header.Set(VersionHeader, c.apiVersion)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, apperr.Transportf("safety", err, "sending request")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return Response{}, apperr.Transportf("safety", err, "reading response")
	}

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return Response{}, apperr.Transportf("safety", nil, "authentication failed (status %d): %s",
			httpResp.StatusCode, snippet(body))
	case httpResp.StatusCode < 200 || httpResp.StatusCode >= 300:
		return Response{}, apperr.Transportf("safety", nil, "API error (status %d): %s",
			httpResp.StatusCode, snippet(body))
	}

	resp, err := ParseResponse(body)
	if err != nil {
		return Response{}, apperr.Transportf("safety", err, "malformed response")
	}
	return resp, nil
}

func snippet(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
