package reddit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	errs "redditdl/pkg/errors"
	"redditdl/pkg/logger"
	"redditdl/pkg/ratelimit"
)

// DefaultMaxBodyBytes bounds a single response body
const DefaultMaxBodyBytes = 64 << 20

// ClientConfig configures the HTTP client
type ClientConfig struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	// Headers are sent with every request after the defaults
	Headers map[string]string
}

// Response is a fully read HTTP response
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the declared Content-Type header, if any
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Client performs rate-limited GET requests
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	limiter      ratelimit.Limiter
	maxBodyBytes int64
	logger       logger.Logger
}

// NewClient creates a client whose every request passes through limiter
func NewClient(cfg ClientConfig, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "redditdl/1.0"
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		headers: map[string]string{
			"User-Agent": cfg.UserAgent,
			"Accept":     "*/*",
		},
		limiter:      limiter,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       log,
	}
	for key, value := range cfg.Headers {
		c.SetHeader(key, value)
	}
	return c
}

// SetHeader sets a header sent with every request. Call it before the
// client is shared between goroutines.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Get fetches rawURL and reads the whole body while holding the limiter slot.
// Non-2xx responses are returned as classified errors.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeParsing, 0, fmt.Sprintf("invalid request URL %q", rawURL), err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	release, err := c.limiter.Acquire(ctx)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer release()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, classifyTransport(err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, errs.New(errs.ErrorTypeUnknown, resp.StatusCode, fmt.Sprintf("response body exceeds %d bytes", c.maxBodyBytes), nil)
	}

	logger.LogRequest(c.logger, http.MethodGet, rawURL, resp.StatusCode, time.Since(start))

	if err := checkResponseStatus(resp); err != nil {
		return nil, err
	}

	return &Response{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// checkResponseStatus maps non-2xx statuses to classified errors
func checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return errs.New(errs.TypeForStatus(resp.StatusCode), resp.StatusCode,
		fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, resp.Request.URL), nil)
}

// classifyTransport separates timeouts from other transport failures
func classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errs.New(errs.ErrorTypeTimeout, 0, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return errs.New(errs.ErrorTypeNetwork, 0, "request cancelled", err)
	}
	return errs.New(errs.ErrorTypeNetwork, 0, err.Error(), err)
}
