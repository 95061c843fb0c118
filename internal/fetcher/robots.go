package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// defaultRobotsCacheTTL is how long a fetched robots.txt stays fresh.
const defaultRobotsCacheTTL = 24 * time.Hour

// robotsTxtPath is the well-known path for robots.txt files.
const robotsTxtPath = "/robots.txt"

// maxRobotsBodyBytes limits the size of robots.txt responses we will read.
const maxRobotsBodyBytes = 512 * 1024 // 512 KB

// RobotsChecker evaluates robots.txt rules with a per-host cache. A host
// whose robots.txt is missing, unreachable, or unparsable is treated as
// allow-all.
type RobotsChecker struct {
	httpClient *http.Client
	userAgent  string
	cacheTTL   time.Duration

	mu    sync.RWMutex
	cache map[string]*robotsRecord // keyed by lower-cased host
}

// robotsRecord is one cached robots.txt evaluation for a host.
type robotsRecord struct {
	data      *robotstxt.RobotsData // nil when allowAll
	fetchedAt time.Time
	allowAll  bool
}

// NewRobotsChecker creates a checker that fetches robots.txt with
// httpClient and evaluates rules for userAgent. A zero cacheTTL selects
// the default.
func NewRobotsChecker(httpClient *http.Client, userAgent string, cacheTTL time.Duration) *RobotsChecker {
	if cacheTTL <= 0 {
		cacheTTL = defaultRobotsCacheTTL
	}

	return &RobotsChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		cacheTTL:   cacheTTL,
		cache:      make(map[string]*robotsRecord),
	}
}

// IsAllowed reports whether rawURL may be fetched under its host's
// robots.txt, fetching and caching the file on first use and after the
// TTL lapses.
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, parseErr := url.Parse(rawURL)
	if parseErr != nil {
		return false, fmt.Errorf("robots: parse url: %w", parseErr)
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	record, ok := r.cached(host)
	if !ok {
		record = r.refresh(ctx, host, parsed.Scheme)
	}

	if record.allowAll {
		return true, nil
	}

	return record.data.TestAgent(parsed.Path, r.userAgent), nil
}

// cached returns the host's record when present and fresh.
func (r *RobotsChecker) cached(host string) (*robotsRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.cache[host]
	if !ok || time.Since(record.fetchedAt) > r.cacheTTL {
		return nil, false
	}

	return record, true
}

// refresh fetches and parses robots.txt for host, stores the record, and
// returns it. Every failure mode degrades to allow-all; robots fetches
// are never retried.
func (r *RobotsChecker) refresh(ctx context.Context, host, scheme string) *robotsRecord {
	record := &robotsRecord{fetchedAt: time.Now(), allowAll: true}

	if body, statusCode, fetchErr := r.fetchRobots(ctx, host, scheme); fetchErr == nil && isSuccessStatus(statusCode) {
		if data, parseErr := robotstxt.FromBytes(body); parseErr == nil {
			record.data = data
			record.allowAll = false
		}
	}

	r.mu.Lock()
	r.cache[host] = record
	r.mu.Unlock()

	return record
}

// fetchRobots performs the HTTP GET for a host's robots.txt.
func (r *RobotsChecker) fetchRobots(ctx context.Context, host, scheme string) ([]byte, int, error) {
	if scheme == "" {
		scheme = "https"
	}
	robotsURL := scheme + "://" + host + robotsTxtPath

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if reqErr != nil {
		return nil, 0, fmt.Errorf("robots: create request: %w", reqErr)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, doErr := r.httpClient.Do(req)
	if doErr != nil {
		return nil, 0, fmt.Errorf("robots: fetch: %w", doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if readErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("robots: read body: %w", readErr)
	}

	return body, resp.StatusCode, nil
}

// isSuccessStatus reports whether the HTTP status code is in the 2xx range.
func isSuccessStatus(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}
