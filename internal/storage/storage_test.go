package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leobrain/crawler/internal/logger"
)

const testBucket = "crawl-bodies"

// fakeS3 serves just enough of the S3 wire surface to exercise the client:
// HEAD/PUT on the bucket, and GET/HEAD/PUT/DELETE on objects. Responses are
// canned; PUT bodies are not inspected because the client frames uploads
// with streaming signatures over plain HTTP.
type fakeS3 struct {
	mu       sync.Mutex
	bucketOK bool
	objects  map[string]string
	puts     map[string]string
	removed  []string
	made     int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		bucketOK: true,
		objects:  map[string]string{},
		puts:     map[string]string{},
	}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if path == testBucket {
		f.serveBucket(w, r)
		return
	}

	object := strings.TrimPrefix(path, testBucket+"/")
	switch r.Method {
	case http.MethodPut:
		f.puts[object] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"9a0364b9e99bb480dd25e1f0284c8555"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		body, ok := f.objects[object]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"9a0364b9e99bb480dd25e1f0284c8555"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", contentTypeText)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, body)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	case http.MethodDelete:
		f.removed = append(f.removed, object)
		delete(f.objects, object)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) serveBucket(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		if f.bucketOK {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case http.MethodPut:
		f.made++
		f.bucketOK = true
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) seedObject(name, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = body
}

func (f *fakeS3) putContentType(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts[name]
}

func (f *fakeS3) removedObjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeS3) bucketsMade() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.made
}

func newTestService(t *testing.T, fake *fakeS3) *Service {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, parseErr := url.Parse(srv.URL)
	require.NoError(t, parseErr)

	svc, newErr := New(Config{
		Endpoint:  u.Host,
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    testBucket,
		Region:    "us-east-1",
	}, logger.NewNoOp())
	require.NoError(t, newErr)
	return svc
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	valid := Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    testBucket,
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }},
		{name: "missing access key", mutate: func(c *Config) { c.AccessKey = "" }},
		{name: "missing secret key", mutate: func(c *Config) { c.SecretKey = "" }},
		{name: "missing bucket", mutate: func(c *Config) { c.Bucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.mutate(&cfg)
			_, newErr := New(cfg, nil)
			require.Error(t, newErr)
		})
	}

	svc, newErr := New(valid, nil)
	require.NoError(t, newErr)
	assert.Equal(t, testBucket, svc.Bucket())
}

func TestPutSetsContentType(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	svc := newTestService(t, fake)

	putErr := svc.Put(context.Background(), "techblog/abc.txt", []byte("cleaned body text"))
	require.NoError(t, putErr)
	assert.Equal(t, contentTypeText, fake.putContentType("techblog/abc.txt"))
}

func TestGetReturnsBody(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	fake.seedObject("techblog/abc.txt", "stored body text")
	svc := newTestService(t, fake)

	data, getErr := svc.Get(context.Background(), "techblog/abc.txt")
	require.NoError(t, getErr)
	assert.Equal(t, "stored body text", string(data))
}

func TestGetMissingObject(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	svc := newTestService(t, fake)

	_, getErr := svc.Get(context.Background(), "techblog/gone.txt")
	require.Error(t, getErr)
	assert.ErrorIs(t, getErr, ErrObjectNotFound)
}

func TestExists(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	fake.seedObject("techblog/abc.txt", "stored body text")
	svc := newTestService(t, fake)

	exists, existsErr := svc.Exists(context.Background(), "techblog/abc.txt")
	require.NoError(t, existsErr)
	assert.True(t, exists)

	exists, existsErr = svc.Exists(context.Background(), "techblog/gone.txt")
	require.NoError(t, existsErr)
	assert.False(t, exists)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	fake.seedObject("techblog/abc.txt", "stored body text")
	svc := newTestService(t, fake)

	require.NoError(t, svc.Remove(context.Background(), "techblog/abc.txt"))
	assert.Equal(t, []string{"techblog/abc.txt"}, fake.removedObjects())

	// S3 deletes are idempotent, so removing an absent object succeeds too.
	require.NoError(t, svc.Remove(context.Background(), "techblog/gone.txt"))
}

func TestEnsureBucketCreatesOnce(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	fake.bucketOK = false
	svc := newTestService(t, fake)

	require.NoError(t, svc.EnsureBucket(context.Background()))
	assert.Equal(t, 1, fake.bucketsMade())

	require.NoError(t, svc.EnsureBucket(context.Background()))
	assert.Equal(t, 1, fake.bucketsMade())
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	svc := newTestService(t, fake)
	require.NoError(t, svc.HealthCheck(context.Background()))
}

func TestHealthCheckMissingBucket(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	fake.bucketOK = false
	svc := newTestService(t, fake)

	healthErr := svc.HealthCheck(context.Background())
	require.Error(t, healthErr)
	assert.ErrorIs(t, healthErr, ErrBucketNotFound)
}
