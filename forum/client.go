// Package forum talks to the forum over HTTP: it lists threads, reads thread
// pages and posts replies on behalf of one logged-in account.
package forum

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"go.uber.org/zap"
)

// Client is one account's session. It is not safe for concurrent use; run
// one Client per account instead.
type Client struct {
	cfg       Config
	transport *Transport
	logger    *zap.Logger

	identityOnce sync.Once
	identity     string

	newToken func() string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. nil is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.transport.client = hc
		}
	}
}

// New creates a Client. An empty cookie is accepted; the site decides what an
// anonymous session may see.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.normalized()
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("forum: invalid base url %q", cfg.BaseURL)
	}
	c := &Client{
		cfg:       cfg,
		transport: newTransport(cfg, nil, logger),
		logger:    logger,
		newToken:  placeholderToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the forum origin the client talks to.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// ListThreads returns the threads linked from a category page. The site has
// used both ?page=N and /page-N pagination, so both are tried before the
// bare category URL.
func (c *Client) ListThreads(ctx context.Context, categorySlug string, page int) ([]ThreadRef, error) {
	if page < 1 {
		page = 1
	}
	base := fmt.Sprintf("%s/categories/%s", c.cfg.BaseURL, categorySlug)
	candidates := []string{
		fmt.Sprintf("%s?page=%d", base, page),
		fmt.Sprintf("%s/page-%d", base, page),
		base,
	}

	var lastErr error
	for _, u := range candidates {
		resp, err := c.transport.Send(ctx, "GET", u, c.pageHeaders(c.cfg.Referer), nil, 0)
		if err != nil {
			lastErr = fmt.Errorf("fetch %s: %w", u, err)
			continue
		}
		switch {
		case resp.StatusCode == http.StatusForbidden:
			return nil, blockedError(u)
		case resp.StatusCode == http.StatusOK && len(resp.Body) > 0:
			refs := ExtractThreadList(resp.Text(), c.cfg.BaseURL)
			c.logger.Debug("category listed", zap.String("url", u), zap.Int("threads", len(refs)))
			return refs, nil
		default:
			lastErr = &StatusError{URL: u, Status: resp.StatusCode, Excerpt: resp.excerpt(120)}
		}
	}
	return nil, fmt.Errorf("list category %q: %w", categorySlug, lastErr)
}

// FetchContext reads a thread page and extracts what a reply needs. A 403
// yields an error wrapping ErrBlocked.
func (c *Client) FetchContext(ctx context.Context, threadURL string, sampleSize int) (ThreadContext, error) {
	resp, err := c.transport.Send(ctx, "GET", threadURL, c.pageHeaders(c.cfg.Referer), nil, 0)
	if err != nil {
		return ThreadContext{}, fmt.Errorf("fetch %s: %w", threadURL, err)
	}
	if resp.StatusCode == http.StatusForbidden {
		return ThreadContext{}, blockedError(threadURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ThreadContext{}, &StatusError{URL: threadURL, Status: resp.StatusCode, Excerpt: resp.excerpt(120)}
	}

	tc := ExtractContext(resp.Text(), c.Identity(ctx), sampleSize)
	tc.ThreadID, _ = ParseThreadID(threadURL)
	return tc, nil
}
