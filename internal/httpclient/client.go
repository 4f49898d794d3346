// Package httpclient provides a reusable HTTP client with context management,
// timeouts, connection pooling, rate limiting and retry with backoff.
//
// It is the transport layer under the CDF API client; callers above it can
// assume transient errors (429, 5xx, network) have already been retried.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests if not specified.
	DefaultTimeout = 30 * time.Second

	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second

	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultDialTimeout           = 30 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	defaultUserAgent = "cdf-tk"

	// DefaultMaxRetries is the number of retry attempts for transient failures.
	DefaultMaxRetries = 5

	defaultBackoffBase = 250 * time.Millisecond
	defaultBackoffMax  = 30 * time.Second
)

// Client wraps the standard http.Client with timeout enforcement, User-Agent
// injection, client-side rate limiting and retry with exponential backoff.
//
// Thread-safe for concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string
	maxRetries     int
	backoffBase    time.Duration
	limiter        *rate.Limiter
}

// Config holds configuration for creating an HTTP client.
type Config struct {
	// DefaultTimeout is applied when the request context has no deadline.
	DefaultTimeout time.Duration

	// UserAgent is added to all requests.
	UserAgent string

	// MaxRetries is the number of retry attempts for 429/5xx and network errors.
	MaxRetries int

	// RequestsPerSecond limits outgoing requests. Zero disables limiting.
	RequestsPerSecond float64

	// BackoffBase is the first retry delay. Defaults to 250ms.
	BackoffBase time.Duration

	// MaxIdleConns controls connection pool size (default: 100).
	MaxIdleConns int

	// MaxIdleConnsPerHost controls per-host connection pool (default: 10).
	MaxIdleConnsPerHost int
}

// New creates a new HTTP client with the given configuration.
// Accepts nil cfg and does not mutate the caller's config.
func New(cfg *Config) *Client {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaultMaxIdleConns
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}

	var limiter *rate.Limiter
	if c.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          c.MaxIdleConns,
		MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			// No default timeout, handled per request with context.
		},
		defaultTimeout: c.DefaultTimeout,
		userAgent:      c.UserAgent,
		maxRetries:     c.MaxRetries,
		backoffBase:    c.BackoffBase,
		limiter:        limiter,
	}
}

// HTTPClient exposes the wrapped http.Client, used by tests to attach
// transport mocks.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Do executes a single HTTP request with timeout enforcement. No retries.
// The response body must be closed by the caller if err is nil.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
		defer cancel()
	}
	req = req.WithContext(ctx)

	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return c.client.Do(req)
}

// PostJSON performs a POST with a JSON body and retries transient failures
// with exponential backoff and jitter, honoring Retry-After on 429.
// Safe because CDF write endpoints are keyed upserts, so replays are idempotent.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}
	return c.doWithRetries(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

// Get performs a GET request with the same retry discipline as PostJSON.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.doWithRetries(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

// doWithRetries executes the request built by build, retrying on transient
// failures. build is called once per attempt so the body reader is fresh.
func (c *Client) doWithRetries(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoffDelay(attempt, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.Do(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// Drain so the connection can be reused.
		retryAfter := resp.Header.Get("Retry-After")
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		lastErr = &StatusError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// backoffDelay computes the wait before the given attempt, honoring a
// Retry-After carried by the previous status error.
func (c *Client) backoffDelay(attempt int, lastErr error) time.Duration {
	if se, ok := lastErr.(*StatusError); ok && se.RetryAfter != "" {
		if secs, err := strconv.Atoi(se.RetryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	backoff := c.backoffBase * (1 << (attempt - 1))
	if backoff > defaultBackoffMax {
		backoff = defaultBackoffMax
	}
	// Full jitter
	return time.Duration(rand.Int63n(int64(backoff) + 1))
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// StatusError reports a non-2xx response that exhausted retries.
type StatusError struct {
	StatusCode int
	RetryAfter string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Close closes idle connections in the connection pool.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
