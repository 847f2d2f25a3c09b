// Package queue implements the in-memory multi-producer/multi-consumer
// buffer of pending order requests.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/order-processing-simulator/internal/model"
)

// Queue is a buffered request queue with a background broker. Producers
// enqueue in any order; consumers block on Pop until an item arrives, the
// queue is closed and drained, or the bounded wait expires. Closing the
// intake is the explicit "no more work" signal; the pop timeout is only a
// safety net against a stalled pipeline.
type Queue struct {
	mu      sync.Mutex
	backlog []model.OrderRequest
	closed  bool
	notify  chan struct{}
	out     chan model.OrderRequest

	enqueued atomic.Uint64
	popped   atomic.Uint64
}

// New creates a Queue with a buffered output channel.
func New(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		notify: make(chan struct{}, 1),
		out:    make(chan model.OrderRequest, outBuffer),
	}
}

// Start runs the broker loop.
func (q *Queue) Start(ctx context.Context) {
	go q.broker(ctx)
}

// broker moves backlog items to the output channel and closes the output
// once the intake is closed and the backlog is flushed.
func (q *Queue) broker(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		remaining, closed := q.flushOnce()
		if closed && remaining == 0 {
			close(q.out)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// flushOnce drains backlog into the output buffer and reports the backlog
// size left plus whether intake has been closed.
func (q *Queue) flushOnce() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.backlog) > 0 && len(q.out) < cap(q.out) {
		item := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.out <- item
	}
	return len(q.backlog), q.closed
}

// Enqueue appends a request and notifies the broker. It reports false once
// the intake has been closed.
func (q *Queue) Enqueue(req model.OrderRequest) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.backlog = append(q.backlog, req)
	q.mu.Unlock()
	q.enqueued.Add(1)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// CloseIntake disallows future enqueues. Consumers observe the close once
// the remaining backlog is flushed.
func (q *Queue) CloseIntake() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop blocks for one request with a bounded wait. ok is false when the
// queue is closed and drained, the context is done, or the wait expires.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (model.OrderRequest, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case req, ok := <-q.out:
		if !ok {
			return model.OrderRequest{}, false
		}
		q.popped.Add(1)
		return req, true
	case <-ctx.Done():
		return model.OrderRequest{}, false
	case <-timer.C:
		return model.OrderRequest{}, false
	}
}

// BacklogSize returns the number of enqueued-but-not-yet-output requests.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Depth returns backlog plus buffered output items.
func (q *Queue) Depth() int {
	q.mu.Lock()
	bl := len(q.backlog)
	q.mu.Unlock()
	return bl + len(q.out)
}

// IsClosed reports whether the intake has been closed.
func (q *Queue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Metrics returns counters and sizes for the ops surface.
func (q *Queue) Metrics() (enq, popped uint64, backlog, depth int) {
	enq = q.enqueued.Load()
	popped = q.popped.Load()
	backlog = q.BacklogSize()
	depth = q.Depth()
	return enq, popped, backlog, depth
}
