// Package httpx is the small shared HTTP client wrapper the provider
// backends build requests on top of.
//
// Grounded on the teacher's pkg/internal/http.Client/Config (DefaultHTTPClient
// tuning, base URL + default headers), extended with a
// golang.org/x/time/rate limiter per backend instance — the teacher has no
// outbound rate limiting of its own, but §4.F's "HTTP client acquisition"
// language calls for a client a backend can reuse across many requests
// without overwhelming the upstream API, which is exactly what x/time/rate
// is for.
package httpx

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/riveraxe/reactcore/pkg/rterr"
)

// DefaultClient is a shared *http.Client with the same connection-pooling
// defaults as the teacher's pkg/internal/http.DefaultHTTPClient.
var DefaultClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Headers    map[string]string
	Timeout    time.Duration
	HTTPClient *http.Client
	// RatePerSecond, if non-zero, caps outbound requests through this
	// client to that many per second with a burst of one.
	RatePerSecond float64
}

// Client wraps an *http.Client with a base URL, default headers, and an
// optional outbound rate limit.
type Client struct {
	http    *http.Client
	baseURL string
	headers map[string]string
	limiter *rate.Limiter
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		if cfg.Timeout > 0 {
			hc = &http.Client{Timeout: cfg.Timeout, Transport: DefaultClient.Transport}
		} else {
			hc = DefaultClient
		}
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Client{http: hc, baseURL: cfg.BaseURL, headers: cfg.Headers, limiter: limiter}
}

// Do sends req, applying default headers and the outbound rate limit (if
// configured) before dispatch.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, rterr.Wrap(rterr.Timeout, err, "rate limiter wait")
		}
	}
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, rterr.Wrap(rterr.Network, err, "http request to %s", req.URL)
	}
	return resp, nil
}

// BaseURL returns the client's configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }
