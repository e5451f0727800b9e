// Package rest implements the rate-limited, retrying HTTP request layer shared
// by the exchange clients. Exchange-specific authentication plugs in through
// the Authorizer interface.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

const (
	defaultMaxRetries        = 3
	defaultBackoff           = 2 * time.Second
	defaultRetryAfter        = 60 * time.Second
	defaultTimeout           = 30 * time.Second
	maxResponseBytes         = 16 << 20
	maxErrorBodyBytes        = 4096
	defaultConcurrentRequest = 5
)

// Authorizer prepares an outbound request immediately before it is sent. An
// error aborts the call without a network attempt and without retry.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, req *http.Request) error

// Authorize calls f(ctx, req).
func (f AuthorizerFunc) Authorize(ctx context.Context, req *http.Request) error {
	return f(ctx, req)
}

// Config holds the request-layer parameters for one exchange.
type Config struct {
	Platform              domain.Platform
	BaseURL               string
	MaxConcurrentRequests int
	MaxRetries            int
	Backoff               time.Duration // multiplied by the attempt number
	DefaultRetryAfter     time.Duration // used when a 429 carries no Retry-After
	Timeout               time.Duration
	UserAgent             string
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = defaultConcurrentRequest
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	if c.DefaultRetryAfter <= 0 {
		c.DefaultRetryAfter = defaultRetryAfter
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Request describes one logical API call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// sharedLimit throttles requests across processes through a distributed
// rate limiter.
type sharedLimit struct {
	rl     domain.RateLimiter
	key    string
	limit  int
	window time.Duration
}

// Client performs requests against a single exchange API. Calls on one Client
// are serialized: at most one logical request is in flight at a time.
type Client struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client
	limiter    *Limiter
	auth       Authorizer
	shared     *sharedLimit
	sem        chan struct{}
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthorizer installs the exchange authentication scheme.
func WithAuthorizer(a Authorizer) Option {
	return func(c *Client) { c.auth = a }
}

// WithLimiter replaces the client's own request-spacing limiter.
func WithLimiter(l *Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithSharedLimiter additionally throttles requests through a distributed
// limiter keyed by key, allowing at most limit requests per window.
func WithSharedLimiter(rl domain.RateLimiter, key string, limit int, window time.Duration) Option {
	return func(c *Client) {
		if rl == nil || limit <= 0 || window <= 0 {
			return
		}
		c.shared = &sharedLimit{rl: rl, key: key, limit: limit, window: window}
	}
}

// WithSleeper replaces the function used for backoff and Retry-After waits.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.applyDefaults()

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest: parse base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("rest: base url %q must be absolute", cfg.BaseURL)
	}

	c := &Client{
		cfg:        cfg,
		base:       base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    NewLimiter(cfg.MaxConcurrentRequests),
		sem:        make(chan struct{}, 1),
		sleep:      sleepContext,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("platform", string(cfg.Platform)))
	return c, nil
}

// Platform returns the exchange this client talks to.
func (c *Client) Platform() domain.Platform {
	return c.cfg.Platform
}

// BasePath returns the path component of the base URL (for example
// "/trade-api/v2").
func (c *Client) BasePath() string {
	return c.base.Path
}

// Limiter returns the client's request-spacing limiter.
func (c *Client) Limiter() *Limiter {
	return c.limiter
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	return c.decode(path, body, out)
}

// PostJSON issues a POST with a JSON body and decodes the JSON response into
// out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: in})
	if err != nil {
		return err
	}
	return c.decode(path, body, out)
}

func (c *Client) decode(path string, body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", c.cfg.Platform, path, err)
	}
	return nil
}

// Do performs r, honouring request spacing and the retry policy, and returns
// the raw response body of the first successful attempt.
//
// 429 responses wait for Retry-After and then back off Backoff×attempt.
// Transport failures back off the same way. Any other status >= 400 returns a
// *domain.UpstreamError immediately.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	var payload []byte
	if r.Body != nil {
		var err error
		payload, err = json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request body: %w", c.cfg.Platform, err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		body, retryAfter, err := c.attempt(ctx, r, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		if retryAfter > 0 {
			c.logger.WarnContext(ctx, "rest: rate limited, honouring retry-after",
				slog.String("path", r.Path),
				slog.Duration("retry_after", retryAfter),
				slog.Int("attempt", attempt),
			)
			if err := c.sleep(ctx, retryAfter); err != nil {
				return nil, err
			}
		}

		wait := c.cfg.Backoff * time.Duration(attempt)
		c.logger.WarnContext(ctx, "rest: retrying request",
			slog.String("method", r.Method),
			slog.String("path", r.Path),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%s: %s %s: giving up after %d attempts: %w",
		c.cfg.Platform, r.Method, r.Path, c.cfg.MaxRetries, lastErr)
}

// attempt sends a single HTTP request. retryAfter is non-zero only for 429
// responses.
func (c *Client) attempt(ctx context.Context, r Request, payload []byte) (body []byte, retryAfter time.Duration, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	if c.shared != nil {
		if err := c.shared.rl.Wait(ctx, c.shared.key, c.shared.limit, c.shared.window); err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			c.logger.WarnContext(ctx, "rest: shared rate limiter unavailable, continuing",
				slog.String("key", c.shared.key),
				slog.String("error", err.Error()),
			)
		}
	}

	req, err := c.newRequest(ctx, r, payload)
	if err != nil {
		return nil, 0, err
	}
	if c.auth != nil {
		if err := c.auth.Authorize(ctx, req); err != nil {
			return nil, 0, fmt.Errorf("%s: authorize %s: %w", c.cfg.Platform, r.Path, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("%s: %s %s: %w: %v", c.cfg.Platform, r.Method, r.Path, domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		wait := parseRetryAfter(resp.Header.Get("Retry-After"), c.cfg.DefaultRetryAfter, time.Now())
		return nil, wait, fmt.Errorf("%s: %s %s: %w", c.cfg.Platform, r.Method, r.Path, domain.ErrRateLimited)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, 0, &domain.UpstreamError{
			Platform:   c.cfg.Platform,
			StatusCode: resp.StatusCode,
			Body:       string(msg),
		}
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: read %s: %w: %v", c.cfg.Platform, r.Path, domain.ErrTransport, err)
	}
	return body, 0, nil
}

func (c *Client) newRequest(ctx context.Context, r Request, payload []byte) (*http.Request, error) {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.cfg.Platform, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	return req, nil
}

// retryable reports whether err is a rate-limit or transport failure.
func retryable(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrTransport)
}

// parseRetryAfter accepts either delta-seconds or an HTTP date. Missing or
// unparsable values fall back to def.
func parseRetryAfter(v string, def time.Duration, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return def
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return def
}
