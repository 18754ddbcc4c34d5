// Package marketdata fetches the WedX exchange data document, which lists
// the tradable assets of every chain ordered by ranking, with their TVL.
package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultURL = "https://app.wedefin.com/exchange_data.json"

// DefaultUserAgent mimics a browser UA to avoid Cloudflare 403s.
const DefaultUserAgent = "Mozilla/5.0"

const maxDocumentBytes = 32 << 20

// Source returns the raw exchange data document.
type Source interface {
	FetchRaw(ctx context.Context) ([]byte, error)
}

type Client struct {
	url        string
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	observe    func(time.Duration, error)
}

type Option func(*Client)

// WithRateLimit caps outgoing requests to one per interval.
func WithRateLimit(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithObserver is called after every fetch with its latency and result.
func WithObserver(fn func(time.Duration, error)) Option {
	return func(c *Client) { c.observe = fn }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(rawURL string, opts ...Option) (*Client, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		rawURL = DefaultURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("exchange data url parse %q: %w", rawURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("exchange data url must be http(s), got %q", rawURL)
	}

	c := &Client{
		url: rawURL,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
		userAgent: DefaultUserAgent,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) URL() string { return c.url }

func (c *Client) FetchRaw(ctx context.Context) (b []byte, err error) {
	if c == nil {
		return nil, fmt.Errorf("exchange data client nil")
	}
	if c.observe != nil {
		start := time.Now()
		defer func() { c.observe(time.Since(start), err) }()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyLimit(resp.Body, 8<<10)
		return nil, fmt.Errorf("exchange data %s: status=%d body=%q", c.url, resp.StatusCode, body)
	}

	b, err = io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("exchange data read: %w", err)
	}
	if len(b) > maxDocumentBytes {
		return nil, fmt.Errorf("exchange data larger than %d bytes", maxDocumentBytes)
	}
	return b, nil
}

func readBodyLimit(r io.Reader, limit int64) string {
	if r == nil {
		return ""
	}
	if limit <= 0 {
		limit = 8 << 10
	}
	b, _ := io.ReadAll(io.LimitReader(r, limit))
	return string(b)
}
