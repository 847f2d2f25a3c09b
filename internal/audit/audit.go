// Package audit performs the final reconciliation against the store.
package audit

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fairyhunter13/order-processing-simulator/internal/metrics"
	"github.com/fairyhunter13/order-processing-simulator/internal/model"
	"github.com/fairyhunter13/order-processing-simulator/internal/obs"
	"github.com/fairyhunter13/order-processing-simulator/internal/store"
)

// Report is the outcome of one reconciliation pass. SuccessCount and
// FinalStock come straight from the store, not from in-memory counters, so
// any divergence between the two shows up here.
type Report struct {
	InitialStock    int64
	SuccessCount    int64
	OutOfStockCount int64
	StuckProcessing int64
	FinalStock      int64
	Consistent      bool
	Counters        metrics.Snapshot
}

// Run reads the terminal state from the store and checks the conservation
// law: sold + remaining == initial, with no entry left in PROCESSING.
func Run(ctx context.Context, st store.Store, productID, initialStock int64, counters metrics.Snapshot) (Report, error) {
	success, err := st.CountByStatus(ctx, model.StatusSuccess)
	if err != nil {
		return Report{}, errors.Wrap(err, "audit: count successes")
	}
	oos, err := st.CountByStatus(ctx, model.StatusOutOfStock)
	if err != nil {
		return Report{}, errors.Wrap(err, "audit: count out-of-stock")
	}
	stuck, err := st.CountByStatus(ctx, model.StatusProcessing)
	if err != nil {
		return Report{}, errors.Wrap(err, "audit: count processing")
	}
	stock, err := st.Stock(ctx, productID)
	if err != nil {
		return Report{}, errors.Wrap(err, "audit: read stock")
	}
	r := Report{
		InitialStock:    initialStock,
		SuccessCount:    success,
		OutOfStockCount: oos,
		StuckProcessing: stuck,
		FinalStock:      stock,
		Counters:        counters,
	}
	r.Consistent = success+stock == initialStock && stock >= 0 && stuck == 0
	return r, nil
}

// Log writes the consistency report. Inconsistency is flagged loudly
// rather than silently tolerated.
func (r Report) Log(injectedDuplicates int64) {
	ev := obs.Logger.Info()
	if !r.Consistent {
		ev = obs.Logger.Error()
	}
	ev.Int64("initial_stock", r.InitialStock).
		Int64("orders_sold", r.SuccessCount).
		Int64("out_of_stock", r.OutOfStockCount).
		Int64("final_stock", r.FinalStock).
		Int64("stuck_processing", r.StuckProcessing).
		Bool("consistent", r.Consistent).
		Msg("consistency report")

	obs.Logger.Info().
		Int64("processed", r.Counters.Processed).
		Int64("duplicates_ignored", r.Counters.Duplicates).
		Int64("injected_duplicates", injectedDuplicates).
		Int64("out_of_stock", r.Counters.OutOfStock).
		Int64("failed", r.Counters.Failed).
		Int64("total_handled", r.Counters.Handled()).
		Dur("avg_per_order", r.Counters.AvgPerProcessed()).
		Msg("execution metrics")
}
