// Package directus is a thin HTTP client for the Directus REST API. It
// handles bearer authentication, the {"data": ...} envelope, structured
// error documents and retry with backoff on HTTP 429.
package directus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TokenSource returns the access token to attach to a request. An empty
// token sends the request anonymously.
type TokenSource func(ctx context.Context) (string, error)

// Request describes a single API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values

	// Body is marshaled as JSON when non-nil.
	Body any

	// Payload is sent verbatim with ContentType when Body is nil.
	Payload     []byte
	ContentType string

	// NoAuth skips the token source, e.g. for login and refresh calls.
	NoAuth bool
}

// Client talks to a single Directus instance.
type Client struct {
	baseURL    string
	assetsURL  string
	httpClient *http.Client
	maxRetries int
	log        *slog.Logger

	mu     sync.RWMutex
	tokens TokenSource
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAssetsURL overrides the base used by AssetURL. It defaults to
// <baseURL>/assets.
func WithAssetsURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.assetsURL = strings.TrimRight(u, "/")
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMaxRetries sets how often a rate-limited request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a client for the instance rooted at baseURL
// (e.g. https://directus.example.com). The client keeps a cookie jar so
// that cookie-based OAuth sessions survive between calls.
func NewClient(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(baseURL, "/")
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL:   base,
		assetsURL: base + "/assets",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		maxRetries: 3,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "directus")
	return c
}

// BaseURL returns the instance root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// SetTokenSource installs the function providing access tokens.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

// Get performs a GET request and decodes the JSON response into result.
func (c *Client) Get(ctx context.Context, path string, query url.Values, result any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, result)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, result)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, result)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

// Do executes req, retrying on HTTP 429, and decodes a successful JSON
// response into result. Non-2xx responses are returned as *APIError.
func (c *Client) Do(ctx context.Context, req Request, result any) error {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	payload := req.Payload
	contentType := req.ContentType
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
		contentType = "application/json"
	}

	token, err := c.token(ctx, req)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Accept", "application/json")
		if contentType != "" {
			httpReq.Header.Set("Content-Type", contentType)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", req.Method, req.Path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		c.log.Debug("request", "method", req.Method, "path", req.Path, "status", resp.StatusCode)

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = newAPIError(resp.StatusCode, req, respBody)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newAPIError(resp.StatusCode, req, respBody)
		}

		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", req.Method, req.Path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.Get(ctx, "/server/ping", nil, nil)
}

// Visit follows rawURL, including redirects, and discards the response.
// Cookies set along the way are kept for later calls, which is how an
// OAuth session established by the backend becomes usable.
func (c *Client) Visit(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("visiting %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return newAPIError(resp.StatusCode, Request{Method: http.MethodGet, Path: req.URL.Path}, body)
	}
	return nil
}

func (c *Client) token(ctx context.Context, req Request) (string, error) {
	if req.NoAuth {
		return "", nil
	}
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return "", nil
	}
	token, err := ts(ctx)
	if err != nil {
		return "", fmt.Errorf("obtaining access token: %w", err)
	}
	return token, nil
}

func newAPIError(status int, req Request, body []byte) *APIError {
	apiErr := &APIError{Status: status, Method: req.Method, Path: req.Path}
	var doc errorResponse
	if json.Unmarshal(body, &doc) == nil && len(doc.Errors) > 0 {
		apiErr.Errors = doc.Errors
	} else {
		apiErr.Body = strings.TrimSpace(string(body))
	}
	return apiErr
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
