// Package transport implements the HTTP client the resource engine
// talks to the remote API through: JSON request/response handling, the
// {data: ...} response envelope, bearer token injection, and typed
// errors for non-2xx responses.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client issues JSON requests against a single API endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying http.Client. Timeouts, retries,
// and cancellation policy all live there.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets the bearer token source for the Authorization
// header.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the given API endpoint, e.g.
// "https://api.example.com/v1".
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the documented response shape for resource endpoints.
type envelope struct {
	Data any `json:"data"`
}

// Request performs an HTTP request and returns the decoded inner value
// of the {data: ...} response envelope. A 204 response returns nil.
// Any non-2xx response returns an *APIError carrying the status and the
// decoded error body.
func (c *Client) Request(ctx context.Context, method, path string, body any) (any, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
		}
		if len(raw) > 0 {
			var data any
			if err := json.Unmarshal(raw, &data); err == nil {
				apiErr.Data = data
			}
		}
		return nil, apiErr
	}

	if len(raw) == 0 {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return env.Data, nil
}

// resolve joins a request path onto the configured endpoint. Absolute
// URLs pass through untouched so callers can follow server-provided
// links.
func (c *Client) resolve(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.endpoint + path
	}
	return c.endpoint + "/" + path
}
