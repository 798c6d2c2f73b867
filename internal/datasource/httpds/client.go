// Package httpds is the HTTP datasource every feed downloads through. It
// wraps net/http with retry and exponential backoff for transient failures
// (transport errors, 429 and 5xx) and respects context cancellation during
// requests and backoff waits.
package httpds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config configures the client. Zero values get defaults:
// Timeout 60s, InitialBackoff 500ms, MaxBackoff 10s, MaxBodyBytes 512 MiB.
type Config struct {
	// Timeout is the per-request timeout applied at the http.Client level.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the initial request.
	MaxRetries int

	// InitialBackoff is the wait before the first retry; it doubles per
	// retry up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxBodyBytes caps Fetch. Public feed exports are large but bounded.
	MaxBodyBytes int64

	// UserAgent is sent with every request when set.
	UserAgent string

	// BaseHeaders are added to every request; per-request headers win.
	BaseHeaders http.Header

	// Transport is an optional custom RoundTripper.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// StatusError reports a final non-2xx response from Fetch or FetchPost.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpds: %s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// Client wraps an http.Client with retry and backoff behavior.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxBody        int64
	baseHeaders    http.Header
	logger         *slog.Logger

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a Client from Config, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 512 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	hdr := cfg.BaseHeaders.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}
	if cfg.UserAgent != "" {
		hdr.Set("User-Agent", cfg.UserAgent)
	}

	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		maxBody:        cfg.MaxBodyBytes,
		baseHeaders:    hdr,
		logger:         cfg.Logger,
		sleep:          sleepContext,
	}
}

// Do sends a request, retrying transient failures. The body is a byte slice
// so it can be re-sent. A non-retryable response (any status other than 429
// and 5xx) is returned as is; the caller must close its body.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, headers http.Header) (*http.Response, error) {
	if method == "" {
		return nil, fmt.Errorf("httpds: method must not be empty")
	}
	if url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}

	attempts := c.maxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}
		for k, vs := range c.baseHeaders {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			if !isRetryableStatus(resp.StatusCode) {
				return resp, nil
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("httpds: retryable status %d from %s %s", resp.StatusCode, method, url)
		}

		if attempt+1 >= attempts {
			break
		}
		backoff := backoffDuration(c.initialBackoff, attempt, c.maxBackoff)
		c.logger.Warn("httpds: retrying", "method", method, "url", url, "attempt", attempt+1, "backoff", backoff, "err", lastErr)
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Get is a convenience wrapper over Do for HTTP GET.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, headers)
}

// Fetch GETs url and reads the whole body, up to MaxBodyBytes. Non-2xx
// responses are returned as *StatusError.
func (c *Client) Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	return c.fetch(ctx, http.MethodGet, url, nil, headers)
}

// FetchPost POSTs body to url and reads the whole response, up to
// MaxBodyBytes.
func (c *Client) FetchPost(ctx context.Context, url string, body []byte, headers http.Header) ([]byte, error) {
	return c.fetch(ctx, http.MethodPost, url, body, headers)
}

func (c *Client) fetch(ctx context.Context, method, url string, body []byte, headers http.Header) ([]byte, error) {
	resp, err := c.Do(ctx, method, url, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: url, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("httpds: read %s: %w", url, err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("httpds: %s exceeds %d bytes", url, c.maxBody)
	}
	return data, nil
}

// isRetryableStatus treats 429 and 5xx as transient; everything else is final.
func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// backoffDuration returns initial * 2^attempt clamped to max.
func backoffDuration(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 {
		return min(initial, max)
	}
	d := initial << attempt
	if d <= 0 || d > max {
		return max
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
