package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/fairyhunter13/order-processing-simulator/internal/model"
)

func TestCollectorRecord(t *testing.T) {
	c := NewCollector()
	c.Record(model.OutcomeProcessed, 10*time.Millisecond)
	c.Record(model.OutcomeProcessed, 30*time.Millisecond)
	c.Record(model.OutcomeDuplicate, time.Millisecond)
	c.Record(model.OutcomeOutOfStock, time.Millisecond)
	c.Record(model.OutcomeFailed, time.Millisecond)
	s := c.Snapshot()
	if s.Processed != 2 || s.Duplicates != 1 || s.OutOfStock != 1 || s.Failed != 1 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if s.Handled() != 5 {
		t.Fatalf("expected 5 handled, got %d", s.Handled())
	}
	if s.Total != 43*time.Millisecond {
		t.Fatalf("expected 43ms total, got %v", s.Total)
	}
	if s.AvgPerProcessed() != s.Total/2 {
		t.Fatalf("unexpected average: %v", s.AvgPerProcessed())
	}
}

func TestCollectorConcurrentIncrements(t *testing.T) {
	c := NewCollector()
	const goroutines = 20
	const perGoroutine = 500
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				c.Record(model.OutcomeProcessed, time.Microsecond)
			}
		}()
	}
	wg.Wait()
	s := c.Snapshot()
	if s.Processed != goroutines*perGoroutine {
		t.Fatalf("lost increments: got %d", s.Processed)
	}
	if s.Total != goroutines*perGoroutine*time.Microsecond {
		t.Fatalf("lost duration: got %v", s.Total)
	}
}

func TestCollectorAvgWithoutProcessed(t *testing.T) {
	c := NewCollector()
	c.Record(model.OutcomeDuplicate, time.Second)
	if avg := c.Snapshot().AvgPerProcessed(); avg != 0 {
		t.Fatalf("expected zero average, got %v", avg)
	}
}
