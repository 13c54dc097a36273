package http

import (
	"context"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the request timeout applied when a request sets none
	DefaultTimeout = 30 * time.Second
)

// Client normalizes requests and hands them to the Transport chosen at
// construction.
type Client struct {
	transport      Transport
	settings       Settings
	timeout        time.Duration
	defaultHeaders *Headers
	limiter        *rate.Limiter
	logger         log.Interface
	useFetch       bool
}

type ClientOption func(*Client)

// NewClient builds a Client. Without WithTransport it dispatches over a
// SocketTransport configured from WithSettings.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		settings:       DefaultSettings(),
		timeout:        DefaultTimeout,
		defaultHeaders: NewHeaders(),
		logger:         log.Log,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		if c.useFetch {
			c.transport = NewFetchTransport(c.settings, c.logger)
		} else {
			c.transport = NewSocketTransport(c.settings, c.logger)
		}
	}
	return c
}

// WithTransport selects the transport. It takes precedence over
// WithFetchTransport.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithFetchTransport dispatches over a FetchTransport built from the
// client's settings and logger.
func WithFetchTransport() ClientOption {
	return func(c *Client) {
		c.useFetch = true
	}
}

func WithSettings(s Settings) ClientOption {
	return func(c *Client) {
		c.settings = s
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		_ = c.defaultHeaders.Set(key, value)
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			_ = c.defaultHeaders.Set(k, v)
		}
	}
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger log.Interface) ClientOption {
	return func(c *Client) {
		c.logger = loggerOrDefault(logger)
	}
}

// WithRateLimit spaces logical requests to at most r per second, allowing
// bursts of burst requests. Redirect hops are not counted.
func WithRateLimit(r rate.Limit, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// Platform returns the tag of the client's transport.
func (c *Client) Platform() Platform {
	return c.transport.Platform()
}

// Configure rebinds the settings owned by the client's transport.
func (c *Client) Configure(s Settings) {
	c.settings = s
	if cfg, ok := c.transport.(Configurable); ok {
		cfg.Configure(s)
	}
}

// Settings returns the settings currently owned by the transport.
func (c *Client) Settings() Settings {
	if cfg, ok := c.transport.(Configurable); ok {
		return cfg.Settings()
	}
	return c.settings
}

// Do sends req. The request itself is not modified: normalization and
// client defaults are applied to a copy.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	n, err := req.normalize()
	if err != nil {
		return nil, err
	}
	n.Headers.merge(c.defaultHeaders)
	if n.Timeout == 0 {
		n.Timeout = c.timeout
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classify("rate limit", ctx, err)
		}
	}

	transport := c.transport
	logger := c.logger.WithFields(log.Fields{
		"dispatch_id": uuid.NewString(),
		"method":      n.Method,
		"url":         n.URL,
		"transport":   string(transport.Platform()),
	})
	logger.Debug("dispatch")

	start := time.Now()
	resp, err := transport.Dispatch(ctx, n)
	if err != nil {
		logger.WithError(err).WithField("kind", KindOf(err).String()).Debug("dispatch failed")
		return nil, err
	}
	logger.WithFields(log.Fields{
		"status":     resp.Status,
		"redirected": resp.Redirected,
		"elapsed":    time.Since(start).String(),
	}).Debug("response")
	return resp, nil
}

func (c *Client) Get(ctx context.Context, url string, headers any) (*Response, error) {
	return c.send(ctx, http.MethodGet, url, nil, headers)
}

func (c *Client) Head(ctx context.Context, url string, headers any) (*Response, error) {
	return c.send(ctx, http.MethodHead, url, nil, headers)
}

func (c *Client) Post(ctx context.Context, url string, body *Payload, headers any) (*Response, error) {
	return c.send(ctx, http.MethodPost, url, body, headers)
}

func (c *Client) Put(ctx context.Context, url string, body *Payload, headers any) (*Response, error) {
	return c.send(ctx, http.MethodPut, url, body, headers)
}

func (c *Client) Patch(ctx context.Context, url string, body *Payload, headers any) (*Response, error) {
	return c.send(ctx, http.MethodPatch, url, body, headers)
}

func (c *Client) Delete(ctx context.Context, url string, headers any) (*Response, error) {
	return c.send(ctx, http.MethodDelete, url, nil, headers)
}

func (c *Client) send(ctx context.Context, method, url string, body *Payload, headers any) (*Response, error) {
	h, err := NormalizeHeaders(headers)
	if err != nil {
		return nil, err
	}
	req := NewRequest(method, url)
	req.Headers = h
	req.Body = body
	return c.Do(ctx, req)
}
