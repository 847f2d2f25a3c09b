// Package processor implements the transactional order processor.
package processor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/order-processing-simulator/internal/dedup"
	"github.com/fairyhunter13/order-processing-simulator/internal/metrics"
	"github.com/fairyhunter13/order-processing-simulator/internal/model"
	"github.com/fairyhunter13/order-processing-simulator/internal/obs"
	"github.com/fairyhunter13/order-processing-simulator/internal/store"
)

// errDuplicateAbort aborts the unit of work when the idempotency key is
// already registered. It never escapes Process.
var errDuplicateAbort = errors.New("processor: duplicate transaction")

// Processor turns one order request into exactly one terminal effect.
// Idempotency registration and the stock decrement run in a single atomic
// unit of work; the store's uniqueness constraint is the only
// synchronization between workers racing on the same transaction ID.
type Processor struct {
	store     store.Store
	gate      dedup.Gate
	collector *metrics.Collector
	productID int64
	tracer    trace.Tracer
}

// New constructs a Processor. gate may be nil to disable the duplicate
// fast path.
func New(st store.Store, gate dedup.Gate, collector *metrics.Collector, productID int64) *Processor {
	return &Processor{
		store:     st,
		gate:      gate,
		collector: collector,
		productID: productID,
		tracer:    otel.Tracer("order-processing-simulator/processor"),
	}
}

// Process classifies one request into a terminal outcome. Duplicate and
// out-of-stock are expected results, not errors; only an aborted unit of
// work yields OutcomeFailed, and an aborted unit leaves no ledger entry and
// no decrement behind.
func (p *Processor) Process(ctx context.Context, req model.OrderRequest) model.Outcome {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "processor.Process")
	defer span.End()

	outcome := p.run(ctx, req)

	elapsed := time.Since(start)
	p.collector.Record(outcome, elapsed)
	span.SetAttributes(
		attribute.String("order.transaction_id", req.TransactionID),
		attribute.String("order.outcome", outcome.String()),
	)
	return outcome
}

func (p *Processor) run(ctx context.Context, req model.OrderRequest) model.Outcome {
	if p.gate != nil {
		seen, err := p.gate.Seen(ctx, req.TransactionID)
		if err != nil {
			// The gate fails open: the store's constraint still holds.
			obs.Logger.Warn().Err(err).Str("transaction_id", req.TransactionID).
				Msg("duplicate gate unavailable")
		} else if seen {
			obs.Logger.Info().Str("transaction_id", req.TransactionID).
				Int64("customer_id", req.CustomerID).
				Msg("duplicate suppressed by gate")
			return model.OutcomeDuplicate
		}
	}

	var (
		outcome   model.Outcome
		remaining int64
	)
	err := p.store.RunUnit(ctx, func(u store.Unit) error {
		created, err := u.InsertIfAbsent(ctx, req.TransactionID, req.CustomerID, p.productID)
		if err != nil {
			return err
		}
		if !created {
			return errDuplicateAbort
		}
		rem, ok, err := u.ConditionalDecrement(ctx, p.productID)
		if err != nil {
			return err
		}
		if !ok {
			if err := u.UpdateStatus(ctx, req.TransactionID, model.StatusOutOfStock); err != nil {
				return err
			}
			outcome = model.OutcomeOutOfStock
			return nil
		}
		if err := u.UpdateStatus(ctx, req.TransactionID, model.StatusSuccess); err != nil {
			return err
		}
		outcome = model.OutcomeProcessed
		remaining = rem
		return nil
	})
	if errors.Is(err, errDuplicateAbort) {
		obs.Logger.Info().Str("transaction_id", req.TransactionID).
			Int64("customer_id", req.CustomerID).
			Msg("duplicate order ignored")
		p.mark(ctx, req.TransactionID)
		return model.OutcomeDuplicate
	}
	if err != nil {
		// Unit aborted in full. Not retried here; only an external
		// redelivery can trigger another attempt.
		obs.Logger.Error().Err(err).Str("transaction_id", req.TransactionID).
			Int64("customer_id", req.CustomerID).
			Msg("unit of work failed")
		return model.OutcomeFailed
	}

	p.mark(ctx, req.TransactionID)

	switch outcome {
	case model.OutcomeProcessed:
		obs.Logger.Info().Str("transaction_id", req.TransactionID).
			Int64("customer_id", req.CustomerID).
			Int64("remaining_stock", remaining).
			Msg("order approved")
	case model.OutcomeOutOfStock:
		obs.Logger.Info().Str("transaction_id", req.TransactionID).
			Int64("customer_id", req.CustomerID).
			Msg("out of stock")
	}
	return outcome
}

// mark records the transaction ID in the gate once the ledger holds a
// terminal entry for it. Aborted units are never marked, so a redelivery
// reaches the store again.
func (p *Processor) mark(ctx context.Context, transactionID string) {
	if p.gate == nil {
		return
	}
	if err := p.gate.Mark(ctx, transactionID); err != nil {
		obs.Logger.Warn().Err(err).Str("transaction_id", transactionID).
			Msg("duplicate gate mark failed")
	}
}
