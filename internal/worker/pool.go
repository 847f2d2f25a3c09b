// Package worker runs the fixed-size pool of queue consumers.
package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/order-processing-simulator/internal/model"
	"github.com/fairyhunter13/order-processing-simulator/internal/obs"
	"github.com/fairyhunter13/order-processing-simulator/internal/queue"
)

// Handler processes one order request. Satisfied by the processor.
type Handler interface {
	Process(ctx context.Context, req model.OrderRequest) model.Outcome
}

// Pool is a fixed-size set of concurrent consumers. Each worker pops with a
// bounded wait and exits when the queue reports done: either the intake was
// closed and drained, or the wait expired with nothing left to do. Workers
// share no state beyond the queue, the handler, and the handler's
// collector.
type Pool struct {
	q          *queue.Queue
	handler    Handler
	size       int
	popTimeout time.Duration
}

// New constructs a Pool of the given size.
func New(q *queue.Queue, handler Handler, size int, popTimeout time.Duration) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{q: q, handler: handler, size: size, popTimeout: popTimeout}
}

// Run starts all workers and blocks until every one of them has exited.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		workerID := i
		g.Go(func() error {
			p.work(ctx, workerID)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) work(ctx context.Context, workerID int) {
	handled := 0
	for {
		req, ok := p.q.Pop(ctx, p.popTimeout)
		if !ok {
			obs.Logger.Debug().Int("worker_id", workerID).Int("handled", handled).
				Msg("worker exiting")
			return
		}
		p.handler.Process(ctx, req)
		handled++
	}
}
