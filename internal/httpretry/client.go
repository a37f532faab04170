// Package httpretry performs HTTP requests against the translation and speech
// services, retrying transient failures with exponential backoff.
package httpretry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Static errors for HTTP operations.
var (
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("http: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("http: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("http: request failed")
)

// defaultUserAgent is sent when none is configured; the public Google
// endpoints reject requests without a browser-like agent.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) dubbing-api"

// RequestFunc builds a fresh request for each attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Client wraps an http.Client with retry on transient failures.
// It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	maxRetries  uint64
	baseBackoff time.Duration
	maxBackoff  time.Duration
	userAgent   string
	maxBody     int64
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the per-attempt timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n uint64) Option {
	return func(cl *Client) {
		cl.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) Option {
	return func(cl *Client) {
		cl.baseBackoff = d
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// New creates a Client with three retries starting at 500ms.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  10 * time.Second,
		userAgent:   defaultUserAgent,
		maxBody:     64 << 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs the request built by build until it succeeds, fails permanently,
// runs out of retries, or ctx is done. It returns the response body of the
// first 2xx response.
func (c *Client) Do(ctx context.Context, build RequestFunc) ([]byte, error) {
	// backoff treats zero max retries as unlimited
	if c.maxRetries == 0 {
		return c.doOnce(ctx, build)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.baseBackoff
	bo.MaxInterval = c.maxBackoff
	bo.MaxElapsedTime = 0 // bounded by maxRetries and ctx instead

	var body []byte
	operation := func() error {
		b, err := c.doOnce(ctx, build)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// doOnce performs a single HTTP request.
func (c *Client) doOnce(ctx context.Context, build RequestFunc) ([]byte, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("http: create request: %w", err)
	}
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err: fmt.Errorf("http: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("http: read response: %w", err)}
	}

	// Handle non-2xx status codes
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		// 5xx errors are retryable
		if resp.StatusCode >= 500 {
			return nil, &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, snippet)}
		}
		// 429 (rate limit) is retryable
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, snippet)}
		}
		// Other errors are not retryable
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, snippet)
	}

	return respBody, nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
