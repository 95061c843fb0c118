package engine

import (
	"sync"

	"github.com/leobrain/crawler/internal/domain"
)

// requestQueue is the FIFO work queue for one crawl run. Follow-up requests
// join at the tail, so a run sweeps breadth-first through what the spider
// discovers. The queue tracks inflight requests to tell an empty-but-active
// queue apart from a drained one: workers block in next while a peer might
// still enqueue follow-ups, and unblock for good once the last inflight
// request completes with nothing pending.
type requestQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  []*domain.Request
	inflight int
}

func newRequestQueue(seeds []*domain.Request) *requestQueue {
	q := &requestQueue{pending: append([]*domain.Request(nil), seeds...)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// next hands out the oldest pending request and counts it as inflight.
// It blocks while the queue is empty but another request is still being
// handled, and returns ok=false once the queue has drained.
func (q *requestQueue) next() (*domain.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 && q.inflight > 0 {
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}

	req := q.pending[0]
	q.pending = q.pending[1:]
	q.inflight++
	return req, true
}

// add appends follow-up requests at the tail. Callers must still hold their
// inflight slot, otherwise a concurrent next may have already observed the
// queue as drained.
func (q *requestQueue) add(reqs ...*domain.Request) {
	if len(reqs) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, reqs...)
	q.cond.Broadcast()
}

// done releases the inflight slot taken by next. The last done on an empty
// queue wakes every blocked worker so they can observe the drain.
func (q *requestQueue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.inflight--
	if q.inflight == 0 && len(q.pending) == 0 {
		q.cond.Broadcast()
	}
}
