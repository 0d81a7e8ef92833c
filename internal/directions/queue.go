package directions

import (
	"log/slog"
	"sync"
	"time"
)

// request is one deferred resolution. run executes to completion on the
// queue worker; the id correlates queue log lines with the caller.
type request struct {
	id  string
	run func()
}

// queue services requests strictly FIFO with a minimum delay between
// successive dequeues. At most one drain worker runs at a time, which is
// both the rate limit and the concurrency guarantee: never more than one
// in-flight routing request from this client.
type queue struct {
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	items    []*request
	draining bool
}

func newQueue(interval time.Duration, logger *slog.Logger) *queue {
	return &queue{interval: interval, logger: logger}
}

// enqueue appends r and starts the drain worker unless one is already
// running.
func (q *queue) enqueue(r *request) {
	q.mu.Lock()
	q.items = append(q.items, r)
	start := !q.draining
	if start {
		q.draining = true
	}
	depth := len(q.items)
	q.mu.Unlock()

	q.logger.Debug("routing request queued", "request_id", r.id, "depth", depth)
	if start {
		go q.drain()
	}
}

// drain runs queued requests one at a time in arrival order. Each request
// runs to completion; the inter-request delay applies only when more work
// remains.
func (q *queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		r := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		r.run()

		q.mu.Lock()
		more := len(q.items) > 0
		q.mu.Unlock()
		if more {
			time.Sleep(q.interval)
		}
	}
}
