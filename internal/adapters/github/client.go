package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"github.com/devbush/submanager/internal/domain"
	"github.com/devbush/submanager/internal/ports"
)

const (
	DefaultBaseURL = "https://api.github.com"

	// PerPage is the largest page size the list endpoints accept.
	PerPage = 100

	DefaultMaxConcurrent = 10
	DefaultRetryMax      = 2 // 3 attempts in total
	DefaultRetryWaitMin  = 1 * time.Second
	DefaultRetryWaitMax  = 30 * time.Second
	DefaultTimeout       = 30 * time.Second
	DefaultPageCacheSize = 2048

	// rateLimitSlack is added to the advertised reset time before retrying a 429.
	rateLimitSlack = 1 * time.Second
)

// Client is a rate-limit aware GitHub REST client. A single Client must be
// shared by every component so its concurrency gate is global.
type Client struct {
	baseURL  string
	username domain.Username
	token    string

	http *retryablehttp.Client
	sem  *semaphore.Weighted
	log  *slog.Logger

	pages *lru.Cache[pageKey, []domain.Username]

	mu     sync.Mutex
	window *domain.RateLimitWindow

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	closeOnce sync.Once
}

type pageKey struct {
	user domain.Username
	page int
}

type options struct {
	baseURL       string
	maxConcurrent int64
	retryMax      int
	retryWaitMin  time.Duration
	retryWaitMax  time.Duration
	timeout       time.Duration
	transport     http.RoundTripper
	logger        *slog.Logger
	pageCacheSize int
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at another API root (used by tests).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithMaxConcurrent sets the number of requests allowed in flight.
func WithMaxConcurrent(n int) Option {
	return func(o *options) { o.maxConcurrent = int64(n) }
}

// WithRetryMax sets the number of retries after the first attempt.
func WithRetryMax(n int) Option {
	return func(o *options) { o.retryMax = n }
}

// WithRetryWait sets the first backoff delay and the backoff ceiling.
func WithRetryWait(min, max time.Duration) Option {
	return func(o *options) {
		o.retryWaitMin = min
		o.retryWaitMax = max
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTransport sets a custom transport for the HTTP client.
func WithTransport(t http.RoundTripper) Option {
	return func(o *options) { o.transport = t }
}

// WithLogger sets the logger used by the client and its retry layer.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPageCacheSize bounds the sampled follower page cache. Zero disables it.
func WithPageCacheSize(n int) Option {
	return func(o *options) { o.pageCacheSize = n }
}

// WithClock replaces the wall clock and the sleep used for rate-limit waits.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// New creates a client authenticated as username with a personal access token.
func New(username domain.Username, token string, opts ...Option) (*Client, error) {
	if username == "" || token == "" {
		return nil, domain.ErrMissingCredentials
	}

	o := options{
		baseURL:       DefaultBaseURL,
		maxConcurrent: DefaultMaxConcurrent,
		retryMax:      DefaultRetryMax,
		retryWaitMin:  DefaultRetryWaitMin,
		retryWaitMax:  DefaultRetryWaitMax,
		timeout:       DefaultTimeout,
		pageCacheSize: DefaultPageCacheSize,
		now:           time.Now,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.maxConcurrent <= 0 {
		o.maxConcurrent = DefaultMaxConcurrent
	}
	if o.transport == nil {
		o.transport = cleanhttp.DefaultPooledTransport()
	}

	log := o.logger.With("subsystem", "github")

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Transport = o.transport
	rc.HTTPClient.Timeout = o.timeout
	rc.RetryMax = o.retryMax
	rc.RetryWaitMin = o.retryWaitMin
	rc.RetryWaitMax = o.retryWaitMax
	rc.Backoff = DoublingBackoff
	rc.CheckRetry = RetryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: log})

	c := &Client{
		baseURL:  o.baseURL,
		username: username,
		token:    token,
		http:     rc,
		sem:      semaphore.NewWeighted(o.maxConcurrent),
		log:      log,
		now:      o.now,
		sleep:    o.sleep,
	}

	if o.pageCacheSize > 0 {
		cache, err := lru.New[pageKey, []domain.Username](o.pageCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create page cache: %w", err)
		}
		c.pages = cache
	}

	return c, nil
}

// Close releases pooled connections. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.http.HTTPClient.CloseIdleConnections()
	})
	return nil
}

// Username returns the authenticated account.
func (c *Client) Username() domain.Username {
	return c.username
}

// RateLimit returns the most recently observed rate-limit window.
func (c *Client) RateLimit() (domain.RateLimitWindow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window == nil {
		return domain.RateLimitWindow{}, false
	}
	return *c.window, true
}

// DoublingBackoff waits min, 2*min, 4*min, ... capped at max.
func DoublingBackoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if attemptNum < 0 {
		attemptNum = 0
	}
	if attemptNum > 30 {
		return max
	}
	wait := min << uint(attemptNum)
	if wait <= 0 || wait > max {
		return max
	}
	return wait
}

// RetryPolicy retries connection errors and 502/503/504. Rate limiting
// (429) is left to the caller, which waits for the window to reset.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// do performs one logical request: it holds a concurrency slot for the
// whole exchange, lets retryablehttp handle transient failures and waits
// out 429 responses without spending retry attempts. The caller must close
// the returned body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	for {
		req, err := retryablehttp.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.SetBasicAuth(string(c.username), c.token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}

		window := c.observe(resp.Header)

		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			if window == nil {
				return nil, &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}
			}
			wait := window.WaitDuration(c.now()) + rateLimitSlack
			c.log.Warn("rate limited, waiting for reset",
				slog.String("path", path),
				slog.Duration("wait", wait),
				slog.Time("reset_at", window.ResetAt))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := newAPIError(method, path, resp)
			apiErr.RateLimit = window
			return nil, apiErr
		}

		return resp, nil
	}
}

// observe records X-RateLimit-* headers and returns the current window.
func (c *Client) observe(h http.Header) *domain.RateLimitWindow {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h.Get("X-RateLimit-Limit") != "" {
		w := &domain.RateLimitWindow{}
		w.Limit, _ = strconv.Atoi(h.Get("X-RateLimit-Limit"))
		w.Remaining, _ = strconv.Atoi(h.Get("X-RateLimit-Remaining"))
		if n, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
			w.ResetAt = time.Unix(n, 0)
		}
		c.window = w
	}

	if c.window == nil {
		return nil
	}
	w := *c.window
	return &w
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

var _ ports.GraphClient = (*Client)(nil)
