// Package ratelimit provides the token-bucket limiter that caps per-site
// request rates.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket. Tokens refill at the configured rate and the
// bucket holds at most the configured capacity; Acquire blocks until a
// token is available. Concurrent waiters are served in arrival order.
type Limiter struct {
	limiter *rate.Limiter
	qps     float64
}

// New creates a limiter allowing qps requests per second. Bucket capacity
// is the whole-token part of qps, with a floor of one token so fractional
// rates still make progress. A qps of zero or less disables limiting and
// returns nil.
func New(qps float64) *Limiter {
	if qps <= 0 {
		return nil
	}

	burst := int(qps)
	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(qps), burst)
	// Leave a single token available so a fresh limiter paces every
	// acquire after the first.
	if burst > 1 {
		limiter.AllowN(time.Now(), burst-1)
	}

	return &Limiter{limiter: limiter, qps: qps}
}

// Acquire blocks until one token is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// QPS returns the configured requests-per-second ceiling.
func (l *Limiter) QPS() float64 {
	return l.qps
}
