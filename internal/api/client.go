// Package api provides the HTTP client for the assistant platform: the
// conversation store, verse lookup and the streaming assistant endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	apierrors "github.com/nurlabs/nurchat/internal/errors"
	"github.com/nurlabs/nurchat/internal/models"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics
const maxErrorBody = 64 * 1024

// Client talks to the platform backend with a bearer token
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
	timeout    time.Duration
	logger     *zap.Logger
	mu         sync.RWMutex
	closed     bool
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithBaseURL sets the backend base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithToken sets the bearer token sent on every request
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each JSON request. The assistant stream is bounded only
// by its context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new Client
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		httpClient: &http.Client{},
		baseURL:    models.DefaultAPIURL,
		userAgent:  "nurchat",
		timeout:    30 * time.Second,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.token == "" {
		return nil, apierrors.ErrNoToken
	}

	u, err := url.Parse(client.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", client.baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", client.baseURL)
	}

	return client, nil
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close marks the client closed and drops idle connections
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// newRequest builds an authenticated request with a fresh request id
func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body any, headers map[string]string) (*http.Request, string, error) {
	if c.IsClosed() {
		return nil, "", fmt.Errorf("client is closed")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := models.JoinURL(c.baseURL, endpoint)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	requestID := uuid.NewString()
	req.Header.Set(models.HeaderRequestID, requestID)
	req.Header.Set(models.HeaderAuth, "Bearer "+c.token)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	return req, requestID, nil
}

// doJSON performs a JSON request and decodes a successful response into out
// (which may be nil).
func (c *Client) doJSON(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, requestID, err := c.newRequest(ctx, method, endpoint, query, body, models.DefaultHeaders())
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return transportError(ctx, method+" "+endpoint, endpoint, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp, endpoint)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierrors.NewAPIError(resp.StatusCode, endpoint, fmt.Sprintf("invalid response body: %v", err))
	}
	return nil
}

// transportError classifies a failed round trip. Context cancellation is
// returned as is so callers can tell it apart from an outage.
func transportError(ctx context.Context, op, endpoint string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return apierrors.NewNetworkErrorWithEndpoint(op, endpoint, err)
}

// responseError reads a non-success response into an APIError. The backend
// reports failures as {"detail": "..."}; validation failures carry a list.
func responseError(resp *http.Response, endpoint string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := string(raw)

	msg := http.StatusText(resp.StatusCode)
	if gjson.Valid(body) {
		detail := gjson.Get(body, "detail")
		switch {
		case detail.Type == gjson.String && detail.String() != "":
			msg = detail.String()
		case detail.IsArray():
			var parts []string
			for _, item := range detail.Array() {
				if m := item.Get("msg").String(); m != "" {
					parts = append(parts, m)
				}
			}
			if len(parts) > 0 {
				msg = strings.Join(parts, "; ")
			}
		}
	} else if trimmed := strings.TrimSpace(body); trimmed != "" && len(trimmed) < 200 {
		msg = trimmed
	}

	return apierrors.NewAPIErrorWithBody(resp.StatusCode, endpoint, msg, body)
}
