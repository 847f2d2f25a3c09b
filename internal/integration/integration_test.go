package integration

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fairyhunter13/order-processing-simulator/internal/audit"
	"github.com/fairyhunter13/order-processing-simulator/internal/metrics"
	"github.com/fairyhunter13/order-processing-simulator/internal/model"
	"github.com/fairyhunter13/order-processing-simulator/internal/processor"
	"github.com/fairyhunter13/order-processing-simulator/internal/producer"
	"github.com/fairyhunter13/order-processing-simulator/internal/queue"
	"github.com/fairyhunter13/order-processing-simulator/internal/store"
	"github.com/fairyhunter13/order-processing-simulator/internal/worker"
)

// runPipeline executes the full producers → queue → workers → store flow
// against an in-memory store and returns everything the assertions need.
func runPipeline(t *testing.T, initialStock int64, producers, workers int, dupProb float64, randFloat func() float64) (*store.Memory, *producer.Producer, metrics.Snapshot, audit.Report) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := store.NewMemory()
	if err := m.SeedProduct(ctx, 1, initialStock); err != nil {
		t.Fatal(err)
	}
	collector := metrics.NewCollector()
	q := queue.New(32)
	q.Start(ctx)

	proc := processor.New(m, nil, collector, 1)
	prod := producer.New(q, dupProb, producer.WithRandFloat(randFloat))
	if err := prod.RunBatch(ctx, producers); err != nil {
		t.Fatal(err)
	}
	q.CloseIntake()

	pool := worker.New(q, proc, workers, 2*time.Second)
	if err := pool.Run(ctx); err != nil {
		t.Fatal(err)
	}

	snap := collector.Snapshot()
	report, err := audit.Run(ctx, m, 1, initialStock, snap)
	if err != nil {
		t.Fatal(err)
	}
	return m, prod, snap, report
}

// alternating yields 0.1, 0.9, 0.1, ... so a 0.7 duplicate probability
// injects a deterministic number of retries regardless of goroutine order.
func alternating() func() float64 {
	var n atomic.Int64
	return func() float64 {
		if n.Add(1)%2 == 1 {
			return 0.1
		}
		return 0.9
	}
}

func TestScenarioRetriesAgainstLimitedStock(t *testing.T) {
	// 15 customers, stock 10, every other submission retried: exactly 10
	// sales, 5 out of stock, and one ignored duplicate per retry.
	_, prod, snap, report := runPipeline(t, 10, 15, 4, 0.7, alternating())

	if snap.Processed != 10 {
		t.Fatalf("expected 10 processed, got %d", snap.Processed)
	}
	if snap.OutOfStock != 5 {
		t.Fatalf("expected 5 out of stock, got %d", snap.OutOfStock)
	}
	if snap.Failed != 0 {
		t.Fatalf("expected no failures, got %d", snap.Failed)
	}
	if injected := prod.Duplicates(); snap.Duplicates != injected {
		t.Fatalf("expected %d ignored duplicates, got %d", injected, snap.Duplicates)
	}
	if injected := prod.Duplicates(); injected != 8 {
		t.Fatalf("expected deterministic 8 injected duplicates, got %d", injected)
	}
	if !report.Consistent {
		t.Fatalf("expected consistent audit: %+v", report)
	}
	if report.SuccessCount+report.FinalStock != 10 {
		t.Fatalf("conservation violated: %+v", report)
	}
}

func TestScenarioConcurrentDuplicatePair(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := store.NewMemory()
	if err := m.SeedProduct(ctx, 1, 1); err != nil {
		t.Fatal(err)
	}
	collector := metrics.NewCollector()
	q := queue.New(4)
	q.Start(ctx)

	// One transaction ID delivered twice, raced by multiple workers.
	req := model.OrderRequest{CustomerID: 1, TransactionID: "dup-pair"}
	_ = q.Enqueue(req)
	_ = q.Enqueue(req)
	q.CloseIntake()

	proc := processor.New(m, nil, collector, 1)
	pool := worker.New(q, proc, 2, time.Second)
	if err := pool.Run(ctx); err != nil {
		t.Fatal(err)
	}

	snap := collector.Snapshot()
	if snap.Processed != 1 || snap.Duplicates != 1 {
		t.Fatalf("expected one processed and one duplicate, got %+v", snap)
	}
	s, err := m.Stock(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if s != 0 {
		t.Fatalf("expected final stock 0, got %d", s)
	}
	e, ok := m.Entry("dup-pair")
	if !ok || e.Status != model.StatusSuccess {
		t.Fatalf("expected single SUCCESS entry, got %+v ok=%v", e, ok)
	}
}

func TestScenarioZeroStock(t *testing.T) {
	m, _, snap, report := runPipeline(t, 0, 1, 2, 0, func() float64 { return 1 })
	if snap.OutOfStock != 1 || snap.Processed != 0 {
		t.Fatalf("expected one out-of-stock outcome, got %+v", snap)
	}
	n, err := m.CountByStatus(context.Background(), model.StatusOutOfStock)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected one OUT_OF_STOCK ledger entry, got %d", n)
	}
	if report.FinalStock != 0 || !report.Consistent {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestScenarioNoDuplicatesAllSucceed(t *testing.T) {
	const n = 12
	_, prod, snap, report := runPipeline(t, n, n, 4, 0, func() float64 { return 1 })
	if prod.Duplicates() != 0 {
		t.Fatalf("expected no injected duplicates, got %d", prod.Duplicates())
	}
	if snap.Processed != n || snap.Duplicates != 0 || snap.OutOfStock != 0 {
		t.Fatalf("unexpected outcomes: %+v", snap)
	}
	if report.FinalStock != 0 || !report.Consistent {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestScenarioContentionNoLostUpdates(t *testing.T) {
	// Far more unique transactions than stock, hammered by a larger pool:
	// exactly S sales, the rest out of stock, nothing lost or doubled.
	const initialStock = 10
	const customers = 100
	_, _, snap, report := runPipeline(t, initialStock, customers, 8, 0, func() float64 { return 1 })
	if snap.Processed != initialStock {
		t.Fatalf("expected exactly %d sales, got %d", initialStock, snap.Processed)
	}
	if snap.OutOfStock != customers-initialStock {
		t.Fatalf("expected %d out of stock, got %d", customers-initialStock, snap.OutOfStock)
	}
	if !report.Consistent {
		t.Fatalf("expected consistent audit: %+v", report)
	}
	if report.FinalStock != 0 {
		t.Fatalf("expected stock exhausted, got %d", report.FinalStock)
	}
}

func TestScenarioIdempotencyUnderRepeatedDelivery(t *testing.T) {
	// The same transaction ID delivered N times yields one terminal entry
	// and at most one decrement.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := store.NewMemory()
	if err := m.SeedProduct(ctx, 1, 5); err != nil {
		t.Fatal(err)
	}
	collector := metrics.NewCollector()
	q := queue.New(16)
	q.Start(ctx)
	req := model.OrderRequest{CustomerID: 2, TransactionID: "n-times"}
	const deliveries = 10
	for i := 0; i < deliveries; i++ {
		_ = q.Enqueue(req)
	}
	q.CloseIntake()

	proc := processor.New(m, nil, collector, 1)
	pool := worker.New(q, proc, 4, time.Second)
	if err := pool.Run(ctx); err != nil {
		t.Fatal(err)
	}

	snap := collector.Snapshot()
	if snap.Processed != 1 {
		t.Fatalf("expected exactly one effective execution, got %d", snap.Processed)
	}
	if snap.Duplicates != deliveries-1 {
		t.Fatalf("expected %d duplicates, got %d", deliveries-1, snap.Duplicates)
	}
	s, err := m.Stock(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if s != 4 {
		t.Fatalf("expected exactly one decrement, got stock %d", s)
	}
}
