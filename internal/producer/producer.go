// Package producer generates order requests, including simulated retries.
package producer

import (
	"context"
	"math/rand"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/order-processing-simulator/internal/model"
	"github.com/fairyhunter13/order-processing-simulator/internal/obs"
	"github.com/fairyhunter13/order-processing-simulator/internal/queue"
)

// Producer submits order requests. With probability DuplicateProbability it
// enqueues an identical second copy of the request, carrying the same
// transaction ID, to simulate a client double-click or retry. That fault is
// what the pipeline defends against, not a bug here.
type Producer struct {
	q          *queue.Queue
	dupProb    float64
	randFloat  func() float64
	duplicates atomic.Int64
}

// Option adjusts a Producer.
type Option func(*Producer)

// WithRandFloat injects the randomness source, for deterministic tests.
func WithRandFloat(f func() float64) Option {
	return func(p *Producer) { p.randFloat = f }
}

// New creates a Producer feeding the given queue.
func New(q *queue.Queue, duplicateProbability float64, opts ...Option) *Producer {
	p := &Producer{
		q:         q,
		dupProb:   duplicateProbability,
		randFloat: rand.Float64,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Submit enqueues one fresh request for the customer and, with the
// configured probability, its duplicate. It reports whether a duplicate was
// injected.
func (p *Producer) Submit(customerID int64) bool {
	req := model.OrderRequest{
		CustomerID:    customerID,
		TransactionID: uuid.NewString(),
	}
	if !p.q.Enqueue(req) {
		obs.Logger.Warn().Int64("customer_id", customerID).Msg("enqueue rejected, intake closed")
		return false
	}
	if p.randFloat() < p.dupProb {
		p.duplicates.Add(1)
		obs.Logger.Info().Int64("customer_id", customerID).
			Str("transaction_id", req.TransactionID).
			Msg("customer double-clicked, sending duplicate")
		_ = p.q.Enqueue(req)
		return true
	}
	return false
}

// RunBatch fires n submissions concurrently, one per customer ID starting
// at 0, and waits for all of them. This is the producer barrier: the batch
// returns before workers are expected to drain the queue, though nothing in
// the pipeline depends on that ordering.
func (p *Producer) RunBatch(ctx context.Context, n int) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		customerID := int64(i)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.Submit(customerID)
			return nil
		})
	}
	return g.Wait()
}

// Duplicates reports how many duplicate submissions were injected.
func (p *Producer) Duplicates() int64 { return p.duplicates.Load() }
