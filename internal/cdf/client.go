// Package cdf is the typed client for the Cognite Data Fusion REST API.
//
// It covers the slice of the API the migration commands need: asset-centric
// resource retrieval, data-modeling view lookup, bulk instance upsert, the
// pending-instance-id linking endpoints, project statistics and token
// inspection. Retries and rate limiting live in the underlying httpclient.
package cdf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/cognitedata/cdf-tk/internal/errors"
	"github.com/cognitedata/cdf-tk/internal/httpclient"
	"github.com/cognitedata/cdf-tk/internal/logging"
)

const (
	lookupCacheTTL     = 10 * time.Minute
	lookupCacheCleanup = 30 * time.Minute
)

// TokenSource supplies the bearer token for each request.
type TokenSource func() (string, error)

// EnvTokenSource reads the token from the named environment variable.
func EnvTokenSource(envVar string) TokenSource {
	return func() (string, error) {
		token := os.Getenv(envVar)
		if token == "" {
			return "", errors.Newf("environment variable %s is not set", envVar).
				Component("cdf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return token, nil
	}
}

// StaticTokenSource returns a fixed token, used in tests.
func StaticTokenSource(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

// Client talks to one CDF project.
type Client struct {
	http        *httpclient.Client
	baseURL     string
	project     string
	tokenSource TokenSource
	logger      *slog.Logger

	// TTL caches for cheap repeated lookups (data sets, spaces).
	lookupCache *gocache.Cache
}

// ClientConfig configures a CDF client.
type ClientConfig struct {
	BaseURL           string
	Project           string
	TokenSource       TokenSource
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// NewClient creates a CDF client for one project.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.ForService("cdf")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http: httpclient.New(&httpclient.Config{
			RequestsPerSecond: cfg.RequestsPerSecond,
		}),
		baseURL:     cfg.BaseURL,
		project:     cfg.Project,
		tokenSource: cfg.TokenSource,
		logger:      logger,
		lookupCache: gocache.New(lookupCacheTTL, lookupCacheCleanup),
	}
}

// HTTP exposes the transport client, used by tests to attach mocks.
func (c *Client) HTTP() *httpclient.Client {
	return c.http
}

// Project returns the configured project name.
func (c *Client) Project() string {
	return c.project
}

// apiURL builds a project-scoped API URL, e.g. apiURL("/assets/byids").
func (c *Client) apiURL(path string) string {
	return fmt.Sprintf("%s/api/v1/projects/%s%s", c.baseURL, c.project, path)
}

func (c *Client) authHeaders() (map[string]string, error) {
	token, err := c.tokenSource()
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// apiError is the error envelope CDF returns on non-2xx responses.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// postJSON posts body to a project-scoped path and decodes a 2xx response into out.
// Non-2xx responses become CategoryHTTP errors carrying the server message.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	headers, err := c.authHeaders()
	if err != nil {
		return err
	}
	resp, err := c.http.PostJSON(ctx, c.apiURL(path), headers, body)
	if err != nil {
		return errors.New(err).
			Component("cdf").
			Category(errors.CategoryNetwork).
			Context("path", path).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp, path)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Newf("failed to decode response from %s: %w", path, err).
			Component("cdf").
			Category(errors.CategoryHTTP).
			Build()
	}
	return nil
}

// getJSON issues a GET to a project-scoped path and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	headers, err := c.authHeaders()
	if err != nil {
		return err
	}
	resp, err := c.http.Get(ctx, c.apiURL(path), headers)
	if err != nil {
		return errors.New(err).
			Component("cdf").
			Category(errors.CategoryNetwork).
			Context("path", path).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) statusError(resp *http.Response, path string) error {
	var apiErr apiError
	msg := ""
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
		msg = apiErr.Error.Message
	}
	builder := errors.Newf("CDF API returned %d for %s: %s", resp.StatusCode, path, msg).
		Component("cdf").
		Context("status_code", resp.StatusCode).
		Context("path", path)
	if resp.StatusCode == http.StatusNotFound {
		builder = builder.Category(errors.CategoryNotFound)
	} else {
		builder = builder.Category(errors.CategoryHTTP)
	}
	return builder.Build()
}
