// Package client implements the low-level AMS API transport: session login,
// request construction, response caching, and retry on transient failures.
// Higher-level packages build typed operations on top of Fetch.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

const (
	defaultAppName    = "teamworksams"
	defaultAPIVersion = "v2"
	requestTimeout    = 60 * time.Second
)

// Config configures a Client. URL, Username, and Password are required;
// everything else has a usable default.
type Config struct {
	// URL is the AMS instance base URL, e.g. "https://example.smartabase.com/site".
	URL      string
	Username string
	Password string

	// AppName identifies the integration in login properties.
	AppName string

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	Logger hclog.Logger

	// DisableCache turns off response memoization for GET-style lookups.
	DisableCache bool

	// MaxRetries bounds retry attempts on transient failures. Zero means
	// the default of 3.
	MaxRetries uint64
}

// Client is a session-authenticated AMS API client. It is safe for
// concurrent use once Login has succeeded.
type Client struct {
	url        string
	username   string
	password   string
	appName    string
	httpClient *http.Client
	logger     hclog.Logger
	useCache   bool
	maxRetries uint64

	mu            sync.RWMutex
	sessionHeader string
	loginInfo     *LoginInfo

	cacheMu sync.Mutex
	cache   map[string]any
}

// LoginInfo is the identity block the login endpoint returns. The user and
// application identifiers feed payloads that record who entered the data.
type LoginInfo struct {
	SessionHeader string
	UserID        int64
	ApplicationID int64
	FirstName     string
	LastName      string
}

// New validates cfg and returns an unauthenticated Client. Call Login before
// issuing requests.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, NewError("no URL provided")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, NewError("no username or password provided")
	}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		cfg.URL = "https://" + cfg.URL
	}
	if cfg.AppName == "" {
		cfg.AppName = defaultAppName
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		appName:    cfg.AppName,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger.Named("ams"),
		useCache:   !cfg.DisableCache,
		maxRetries: cfg.MaxRetries,
		cache:      make(map[string]any),
	}, nil
}

// URL returns the normalized instance base URL.
func (c *Client) URL() string { return c.url }

// Username returns the login username.
func (c *Client) Username() string { return c.username }

// LoginInfo returns the identity block from the last successful Login, or
// nil before login.
func (c *Client) LoginInfo() *LoginInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loginInfo
}

type requestOptions struct {
	version  string
	useCache bool
}

// RequestOption adjusts a single Fetch call.
type RequestOption func(*requestOptions)

// WithVersion selects the API version segment, e.g. "v3" for form summary
// listings. The default is "v2".
func WithVersion(v string) RequestOption {
	return func(o *requestOptions) { o.version = v }
}

// WithoutCache forces a fresh request even when the client caches responses.
func WithoutCache() RequestOption {
	return func(o *requestOptions) { o.useCache = false }
}

// Fetch sends one API request and returns the decoded JSON body, or nil when
// the response body is empty. Transient failures (network errors and 5xx
// responses) are retried with exponential backoff; any other non-200 status
// becomes an AMSError.
func (c *Client) Fetch(ctx context.Context, method, endpoint string, payload any, opts ...RequestOption) (any, error) {
	o := requestOptions{version: defaultAPIVersion, useCache: c.useCache}
	for _, opt := range opts {
		opt(&o)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", endpoint, err)
	}
	if payload == nil {
		body = nil
	}

	url := fmt.Sprintf("%s/api/%s/%s?informat=json&format=json", c.url, o.version, endpoint)

	var cacheKey string
	if o.useCache {
		sum := sha256.Sum256(append([]byte(url+endpoint), body...))
		cacheKey = hex.EncodeToString(sum[:])
		c.cacheMu.Lock()
		cached, ok := c.cache[cacheKey]
		c.cacheMu.Unlock()
		if ok {
			c.logger.Debug("serving cached response", "endpoint", endpoint)
			return cached, nil
		}
	}

	result, err := c.do(ctx, method, url, endpoint, body)
	if err != nil {
		return nil, err
	}
	if o.useCache {
		c.cacheMu.Lock()
		c.cache[cacheKey] = result
		c.cacheMu.Unlock()
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, url, endpoint string, body []byte) (any, error) {
	var result any
	operation := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building %s request: %w", endpoint, err))
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("request failed, retrying", "endpoint", endpoint, "error", err)
			return fmt.Errorf("calling %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading %s response: %w", endpoint, err)
		}
		c.logger.Debug("request complete",
			"endpoint", endpoint, "status", resp.StatusCode, "elapsed", time.Since(start))

		switch {
		case resp.StatusCode >= 500:
			c.logger.Warn("server error, retrying", "endpoint", endpoint, "status", resp.StatusCode)
			return NewError(fmt.Sprintf("server error (%d) from %s", resp.StatusCode, endpoint))
		case resp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(NewError("invalid URL, username, or password. Login failed"))
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(NewError(
				fmt.Sprintf("unexpected status (%d) from %s", resp.StatusCode, endpoint)))
		}

		if len(bytes.TrimSpace(raw)) == 0 {
			result = nil
			return nil
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return backoff.Permanent(WrapError(err, fmt.Sprintf("invalid JSON from %s", endpoint)))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

// Do sends a raw request with session credentials attached. File uploads
// and attachment downloads live outside the JSON API surface and use this
// instead of Fetch.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.authorize(req)
	return c.httpClient.Do(req)
}

// SessionToken returns the current session token, or the empty string
// before login.
func (c *Client) SessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionHeader
}

func (c *Client) authorize(req *http.Request) {
	c.mu.RLock()
	session := c.sessionHeader
	c.mu.RUnlock()
	if session != "" {
		req.Header.Set("session-header", session)
		req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: session})
	}
}
