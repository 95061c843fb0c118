// Package fetcher provides HTTP fetching for the crawler, with retries,
// exponential backoff, and robots.txt compliance checking.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/leobrain/crawler/internal/domain"
)

// Backoff schedule for retryable failures.
const (
	backoffBase = 1 * time.Second
	backoffCap  = 60 * time.Second
)

// maxResponseBodyBytes limits the size of fetched page responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// ErrTooManyRedirects is returned inside the HTTP client when the redirect
// hop limit is exceeded.
var ErrTooManyRedirects = errors.New("too many redirects")

// errBadRequest marks a request that could not be constructed at all.
var errBadRequest = errors.New("invalid request")

// RobotsAllower checks robots.txt compliance.
type RobotsAllower interface {
	IsAllowed(ctx context.Context, rawURL string) (bool, error)
}

// Logger provides structured logging for the fetcher.
type Logger interface {
	Debug(msg string, fields ...any)
	Warn(msg string, fields ...any)
}

// Recorder counts fetch attempts and retries. Implementations must accept
// concurrent calls.
type Recorder interface {
	RecordFetchAttempt(statusClass string)
	RecordFetchRetry()
}

// Fetcher executes HTTP requests for the engine. Permanent failures are
// reported as a nil Response with a nil error; the error return carries
// context cancellation only. One HTTP client, and therefore one connection
// pool, is shared across all calls.
type Fetcher struct {
	httpClient *http.Client
	robots     RobotsAllower
	log        Logger
	rec        Recorder
	userAgent  string
	maxRetries int

	// backoff computes the retry delay for an attempt; swapped out by
	// tests to avoid real sleeps.
	backoff func(attempt int) time.Duration
}

// New creates a Fetcher from cfg. When cfg.RespectRobots is set, a robots
// checker sharing the fetcher's HTTP client is installed; rec may be nil.
func New(cfg Config, log Logger, rec Recorder) *Fetcher {
	cfg = cfg.WithDefaults()

	client := &http.Client{
		Timeout:       cfg.RequestTimeout,
		CheckRedirect: redirectPolicy(cfg.MaxRedirects),
	}
	if cfg.MaxConnsPerHost > 0 {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxConnsPerHost = cfg.MaxConnsPerHost
		client.Transport = transport
	}

	f := &Fetcher{
		httpClient: client,
		log:        log,
		rec:        rec,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		backoff:    backoffDelay,
	}

	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(client, cfg.UserAgent, cfg.RobotsCacheTTL)
	}

	return f
}

// Close releases idle connections held by the fetcher's HTTP client.
func (f *Fetcher) Close() {
	f.httpClient.CloseIdleConnections()
}

// Fetch executes req. It returns (nil, nil) on permanent failure: an
// invalid URL, a robots-disallowed URL, a non-retryable status, or
// exhausted retries. Statuses 429, 500, 502, 503, and 504 and network
// errors are retried with exponential backoff; a Retry-After header on
// 429/503 overrides the computed delay. Robots lookups happen before the
// first attempt and are never retried.
func (f *Fetcher) Fetch(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if req == nil || !validURL(req.URL) {
		f.log.Warn("fetch skipped: invalid request URL")
		return nil, nil
	}

	if f.robots != nil {
		allowed, robotsErr := f.robots.IsAllowed(ctx, req.URL)
		if robotsErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.log.Warn("robots check failed", "url", req.URL, "error", robotsErr)
			return nil, nil
		}
		if !allowed {
			f.log.Debug("blocked by robots.txt", "url", req.URL)
			return nil, nil
		}
	}

	var delay time.Duration
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			if f.rec != nil {
				f.rec.RecordFetchRetry()
			}
		}

		resp, attemptErr := f.attempt(ctx, req)
		f.recordAttempt(resp, attemptErr)

		switch {
		case attemptErr != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(attemptErr, ErrTooManyRedirects) || errors.Is(attemptErr, errBadRequest) {
				f.log.Warn("fetch failed", "url", req.URL, "error", attemptErr)
				return nil, nil
			}
			// Network error, worth another attempt.
			delay = f.backoff(attempt)
			f.log.Debug("fetch attempt failed",
				"url", req.URL,
				"attempt", attempt,
				"error", attemptErr,
			)

		case resp.OK():
			return resp, nil

		case retryableStatus(resp.StatusCode):
			delay = f.backoff(attempt)
			if after := retryAfterDelay(resp); after > 0 {
				delay = after
			}
			f.log.Debug("retryable status",
				"url", req.URL,
				"status", resp.StatusCode,
				"attempt", attempt,
				"delay", delay.String(),
			)

		default:
			f.log.Debug("non-retryable status", "url", req.URL, "status", resp.StatusCode)
			return nil, nil
		}
	}

	f.log.Warn("fetch retries exhausted", "url", req.URL, "max_retries", f.maxRetries)
	return nil, nil
}

// attempt performs one HTTP round trip and fully reads the body.
func (f *Fetcher) attempt(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader = http.NoBody
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, reqErr := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if reqErr != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, reqErr)
	}

	// Per-request headers win over the fetcher's defaults; the user agent
	// is always present.
	httpReq.Header.Set("User-Agent", f.userAgent)
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	start := time.Now()
	resp, doErr := f.httpClient.Do(httpReq)
	if doErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if readErr != nil {
		return nil, fmt.Errorf("read body: %w", readErr)
	}

	return &domain.Response{
		Request:    req,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
		Elapsed:    time.Since(start),
	}, nil
}

// recordAttempt reports one attempt's outcome to the recorder.
func (f *Fetcher) recordAttempt(resp *domain.Response, attemptErr error) {
	if f.rec == nil {
		return
	}
	if attemptErr != nil {
		f.rec.RecordFetchAttempt("error")
		return
	}
	f.rec.RecordFetchAttempt(statusClass(resp.StatusCode))
}

// validURL reports whether raw parses as an absolute http(s) URL.
func validURL(raw string) bool {
	parsed, parseErr := url.Parse(raw)
	if parseErr != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// retryableStatus reports whether a status warrants another attempt: 429
// and the transient 5xx family.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// backoffDelay returns the wait before the retry that follows the given
// attempt: 1s doubled per attempt, capped at 60s.
func backoffDelay(attempt int) time.Duration {
	const maxShift = 6 // 1s << 6 already exceeds the cap
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > maxShift {
		shift = maxShift
	}

	delay := backoffBase << shift
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay
}

// retryAfterDelay reads the Retry-After header of 429 and 503 responses,
// in either delay-seconds or HTTP-date form. Returns 0 when absent or
// invalid.
func retryAfterDelay(resp *domain.Response) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests &&
		resp.StatusCode != http.StatusServiceUnavailable {
		return 0
	}

	raw := resp.Headers.Get("Retry-After")
	if raw == "" {
		return 0
	}

	if secs, parseErr := strconv.Atoi(raw); parseErr == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if at, parseErr := http.ParseTime(raw); parseErr == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}

	return 0
}

// statusClass buckets a status code for metrics.
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "other"
	}
}

// redirectPolicy follows redirects until maxHops, then fails the request.
func redirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return ErrTooManyRedirects
		}
		return nil
	}
}
