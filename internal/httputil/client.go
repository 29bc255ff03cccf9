// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HostLimiter hands out one token bucket per host so that no single external
// host sees bursts above the configured rate. A zero rate disables limiting.
type HostLimiter struct {
	rps float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter returns a limiter allowing rps requests per second per host.
func NewHostLimiter(rps float64) *HostLimiter {
	return &HostLimiter{rps: rps, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until a request to host may proceed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if h == nil || h.rps <= 0 {
		return nil
	}
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.rps), 1)
		h.limiters[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}

// Client issues GET requests with a fixed User-Agent, per-host rate limiting
// and 429 retry.
type Client struct {
	http       *http.Client
	limiter    *HostLimiter
	userAgent  string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithHostLimiter shares a per-host rate limiter.
func WithHostLimiter(l *HostLimiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithMaxRetries sets the 429 retry budget.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryDelay sets the backoff base for 429 and 503 retries. A request
// backing off keeps its caller's executor slot, so download clients use a
// short base.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.retryDelay = d }
}

// WithLogger sets the logger used for backoff diagnostics.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient wraps hc.
func NewClient(hc *http.Client, opts ...ClientOption) *Client {
	c := &Client{http: hc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET for rawURL. accept, when non-empty, sets the Accept header.
// The caller owns the response body.
func (c *Client) Get(ctx context.Context, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if err := c.limiter.Wait(ctx, req.URL.Host); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return doWithRetry(ctx, c.http, req, c.maxRetries, c.retryDelay, c.logger)
}
