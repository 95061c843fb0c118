// Package antibot paces outgoing requests so target sites see a polite,
// irregular crawl rhythm.
package antibot

import (
	"context"
	"math/rand"
	"time"

	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
	"github.com/leobrain/crawler/internal/ratelimit"
)

// jitterSpread scales the delay into the upper bound of the random extra
// wait: jitter adds a uniform draw from [0, jitterSpread*delay).
const jitterSpread = 5

// Middleware combines token-bucket rate limiting with a fixed delay and
// random jitter. One Middleware serves one engine run.
type Middleware struct {
	limiter *ratelimit.Limiter
	delay   time.Duration
	jitter  bool
	log     logger.Interface
}

// New builds pacing middleware. qps <= 0 disables the token bucket;
// delay <= 0 disables sleeping.
func New(qps float64, delay time.Duration, jitter bool, log logger.Interface) *Middleware {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Middleware{
		limiter: ratelimit.New(qps),
		delay:   delay,
		jitter:  jitter,
		log:     log,
	}
}

// BeforeRequest blocks until the request may go out: a rate-limit token
// first, then the configured delay plus jitter.
func (m *Middleware) BeforeRequest(ctx context.Context, req *domain.Request) error {
	if m.limiter != nil {
		if acquireErr := m.limiter.Acquire(ctx); acquireErr != nil {
			return acquireErr
		}
	}

	wait := m.waitFor()
	if wait <= 0 {
		return nil
	}

	m.log.Debug("Pacing request", "url", req.URL, "wait", wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AfterRequest runs once a response has arrived. It is a hook point; nothing
// is recorded today.
func (m *Middleware) AfterRequest(context.Context, *domain.Response) {}

// waitFor computes the pause for one request.
func (m *Middleware) waitFor() time.Duration {
	if m.delay <= 0 {
		return 0
	}

	wait := m.delay
	if m.jitter {
		wait += time.Duration(rand.Float64() * jitterSpread * float64(m.delay))
	}
	return wait
}
