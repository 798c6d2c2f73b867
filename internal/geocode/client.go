package geocode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Options configures a resolver's HTTP behavior. Zero values get defaults.
type Options struct {
	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL string

	// UserAgent identifies the application. Nominatim rejects anonymous
	// clients.
	UserAgent string

	// Interval is the minimum spacing between requests. Zero keeps the
	// provider default; a negative value disables throttling.
	Interval time.Duration

	// RetryMax is the number of retries after the first attempt (default 3).
	RetryMax int

	// RetryWait is the fixed wait between attempts (default 1s).
	RetryWait time.Duration

	// Timeout bounds a single attempt (default 30s).
	Timeout time.Duration

	Logger *slog.Logger
}

// client is the shared throttled, retrying JSON getter.
type client struct {
	http      *retryablehttp.Client
	limiter   *rate.Limiter
	userAgent string
}

func newClient(opt Options) *client {
	if opt.RetryMax <= 0 {
		opt.RetryMax = 3
	}
	if opt.RetryWait <= 0 {
		opt.RetryWait = time.Second
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 30 * time.Second
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: opt.Timeout}
	rc.RetryMax = opt.RetryMax
	rc.RetryWaitMin = opt.RetryWait
	rc.RetryWaitMax = opt.RetryWait
	rc.Backoff = fixedBackoff
	rc.Logger = opt.Logger

	limit := rate.Inf
	if opt.Interval > 0 {
		limit = rate.Every(opt.Interval)
	}
	return &client{
		http:      rc,
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: opt.UserAgent,
	}
}

// fixedBackoff waits RetryWaitMin between every attempt.
func fixedBackoff(wait, _ time.Duration, _ int, _ *http.Response) time.Duration {
	return wait
}

// getJSON waits for the limiter, then GETs url with retries and parses the
// body. Non-200 final responses are errors.
func (c *client) getJSON(ctx context.Context, url string) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("invalid json response")
	}
	return gjson.ParseBytes(body), nil
}
