package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
)

// newTestFetcher builds a fetcher with near-zero backoff so retry paths
// run fast.
func newTestFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()

	f := New(cfg, logger.NewNoOp(), nil)
	f.backoff = func(int) time.Duration { return time.Millisecond }
	return f
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{})
	resp, fetchErr := f.Fetch(context.Background(), domain.NewRequest(srv.URL))

	require.NoError(t, fetchErr)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", resp.Text())
	assert.Equal(t, srv.URL+"/", resp.URL)
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{MaxRetries: 3})
	resp, fetchErr := f.Fetch(context.Background(), domain.NewRequest(srv.URL))

	require.NoError(t, fetchErr)
	assert.Nil(t, resp)
	assert.Equal(t, int32(1), attempts.Load(), "4xx must not be retried")
}

func TestFetchRetriesOn429ThenSucceeds(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{MaxRetries: 3})
	resp, fetchErr := f.Fetch(context.Background(), domain.NewRequest(srv.URL))

	require.NoError(t, fetchErr)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestFetchBacksOffBetweenAttempts(t *testing.T) {
	t.Parallel()

	// Real backoff: the wait between the 429 and the retry must be at
	// least the 1s base.
	var attempts atomic.Int32
	var firstAt, secondAt atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch attempts.Add(1) {
		case 1:
			firstAt.Store(time.Now().UnixNano())
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			secondAt.Store(time.Now().UnixNano())
			w.Write([]byte("ok"))
		}
	}))
	defer srv.Close()

	f := New(Config{MaxRetries: 2}, logger.NewNoOp(), nil)
	resp, fetchErr := f.Fetch(context.Background(), domain.NewRequest(srv.URL))

	require.NoError(t, fetchErr)
	require.NotNil(t, resp)
	assert.Equal(t, int32(2), attempts.Load())
	waited := time.Duration(secondAt.Load() - firstAt.Load())
	assert.GreaterOrEqual(t, waited, 900*time.Millisecond)
}

func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{MaxRetries: 3})
	resp, fetchErr := f.Fetch(context.Background(), domain.NewRequest(srv.URL))

	require.NoError(t, fetchErr)
	assert.Nil(t, resp)
	assert.Equal(t, int32(3), attempts.Load(), "attempts must equal max retries")
}

func TestFetchNetworkErrorRetried(t *testing.T) {
	t.Parallel()

	// A server that is already closed produces connection errors.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	f := newTestFetcher(t, Config{MaxRetries: 2})
	resp, fetchErr := f.Fetch(context.Background(), domain.NewRequest(srv.URL))

	require.NoError(t, fetchErr)
	assert.Nil(t, resp)
}

func TestFetchInvalidURL(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(t, Config{})

	for _, raw := range []string{"", "not-a-url", "ftp://example.com/file"} {
		resp, fetchErr := f.Fetch(context.Background(), domain.NewRequest(raw))
		require.NoError(t, fetchErr)
		assert.Nil(t, resp, "url %q", raw)
	}
}

func TestFetchHeaderMerge(t *testing.T) {
	t.Parallel()

	headerCh := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerCh <- r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{UserAgent: "default-agent"})

	req := domain.NewRequest(srv.URL)
	req.Headers["User-Agent"] = "per-request-agent"
	req.Headers["Accept"] = "application/xml"

	_, fetchErr := f.Fetch(context.Background(), req)
	require.NoError(t, fetchErr)

	got := <-headerCh
	assert.Equal(t, "per-request-agent", got.Get("User-Agent"), "per-request headers win")
	assert.Equal(t, "application/xml", got.Get("Accept"))
}

func TestFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("final"))
	}))
	defer target.Close()

	hop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusMovedPermanently)
	}))
	defer hop.Close()

	f := newTestFetcher(t, Config{})
	resp, fetchErr := f.Fetch(context.Background(), domain.NewRequest(hop.URL))

	require.NoError(t, fetchErr)
	require.NotNil(t, resp)
	assert.Equal(t, target.URL+"/", resp.URL, "final URL must be post-redirect")
	assert.Equal(t, "final", resp.Text())
}

func TestFetchRedirectLoopIsPermanent(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL, http.StatusFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{MaxRedirects: 3})
	resp, fetchErr := f.Fetch(context.Background(), domain.NewRequest(srv.URL))

	require.NoError(t, fetchErr)
	assert.Nil(t, resp)
}

// blockAllRobots denies every URL.
type blockAllRobots struct{}

func (blockAllRobots) IsAllowed(context.Context, string) (bool, error) { return false, nil }

func TestFetchRobotsDisallowed(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Config{})
	f.robots = blockAllRobots{}

	resp, fetchErr := f.Fetch(context.Background(), domain.NewRequest(srv.URL))
	require.NoError(t, fetchErr)
	assert.Nil(t, resp)
	assert.Zero(t, attempts.Load(), "disallowed URLs must not be requested")
}

func TestFetchContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(Config{MaxRetries: 5}, logger.NewNoOp(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The 1s backoff after the first 500 outlives the context.
	resp, fetchErr := f.Fetch(ctx, domain.NewRequest(srv.URL))
	require.Error(t, fetchErr)
	assert.Nil(t, resp)
}

func TestBackoffDelaySchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 1 * time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 6, want: 32 * time.Second},
		{attempt: 7, want: 60 * time.Second},
		{attempt: 50, want: 60 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryAfterDelay(t *testing.T) {
	t.Parallel()

	mkResp := func(status int, retryAfter string) *domain.Response {
		h := http.Header{}
		if retryAfter != "" {
			h.Set("Retry-After", retryAfter)
		}
		return &domain.Response{StatusCode: status, Headers: h}
	}

	assert.Equal(t, 7*time.Second, retryAfterDelay(mkResp(429, "7")))
	assert.Equal(t, 3*time.Second, retryAfterDelay(mkResp(503, "3")))

	// HTTP-date form.
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	got := retryAfterDelay(mkResp(429, future))
	assert.Greater(t, got, 25*time.Second)

	// Ignored cases.
	assert.Zero(t, retryAfterDelay(mkResp(500, "7")), "only 429/503 honor Retry-After")
	assert.Zero(t, retryAfterDelay(mkResp(429, "")))
	assert.Zero(t, retryAfterDelay(mkResp(429, "soon")))
	assert.Zero(t, retryAfterDelay(mkResp(429, "-5")))
}
