package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient returns a client whose backoff waits are recorded, not slept.
func newTestClient(cfg Config) (*Client, *[]time.Duration) {
	c := NewClient(cfg)
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return c, &waits
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{MaxRetries: -1, UserAgent: "refocus-test"})
	assert.Equal(t, 60*time.Second, c.httpClient.Timeout)
	assert.Zero(t, c.maxRetries)
	assert.Equal(t, 500*time.Millisecond, c.initialBackoff)
	assert.Equal(t, 10*time.Second, c.maxBackoff)
	assert.Equal(t, "refocus-test", c.baseHeaders.Get("User-Agent"))
}

func TestDo_RetryOn5xxThenSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c, waits := newTestClient(Config{MaxRetries: 3, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 15 * time.Millisecond})
	body, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, *waits, "backoff doubles and is clamped")
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := newTestClient(Config{MaxRetries: 2})
	_, err := c.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetch_NonRetryableStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := newTestClient(Config{MaxRetries: 3})
	_, err := c.Fetch(context.Background(), srv.URL, nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "4xx is not retried")
}

func TestDo_Headers(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	c, _ := newTestClient(Config{
		UserAgent:   "refocus",
		BaseHeaders: http.Header{"Accept": {"text/csv"}, "X-App-Token": {"base"}},
	})
	resp, err := c.Get(context.Background(), srv.URL, http.Header{"X-App-Token": {"override"}})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "refocus", got.Get("User-Agent"))
	assert.Equal(t, "text/csv", got.Get("Accept"))
	assert.Equal(t, "override", got.Get("X-App-Token"))
}

func TestFetchPost(t *testing.T) {
	var gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, `{"datadownload":[]}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(Config{})
	out, err := c.FetchPost(context.Background(), srv.URL, []byte(`{"key":"datadownload"}`), http.Header{"Content-Type": {"application/json"}})
	require.NoError(t, err)
	assert.Equal(t, `{"datadownload":[]}`, string(out))
	assert.Equal(t, `{"key":"datadownload"}`, gotBody)
	assert.Equal(t, "application/json", gotType)
}

func TestFetchPost_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := newTestClient(Config{})
	_, err := c.FetchPost(context.Background(), srv.URL, nil, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.MethodPost, se.Method)
}

func TestFetch_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "0123456789")
	}))
	defer srv.Close()

	c, _ := newTestClient(Config{MaxBodyBytes: 4})
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestDo_Validation(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.Do(context.Background(), "", "http://x", nil, nil)
	require.Error(t, err)
	_, err = c.Do(context.Background(), http.MethodGet, "", nil, nil)
	require.Error(t, err)
}

func TestDo_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(Config{}).Get(ctx, "http://127.0.0.1:1", nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))
}

func TestBackoffDuration(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoffDuration(100*time.Millisecond, 0, time.Second))
	assert.Equal(t, 400*time.Millisecond, backoffDuration(100*time.Millisecond, 2, time.Second))
	assert.Equal(t, time.Second, backoffDuration(100*time.Millisecond, 10, time.Second))
	assert.Equal(t, time.Second, backoffDuration(2*time.Second, 0, time.Second))
}
