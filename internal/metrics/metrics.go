// Package metrics aggregates processing outcomes across workers.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fairyhunter13/order-processing-simulator/internal/model"
)

// Collector counts outcomes and cumulative processing time. All updates are
// single atomic operations so concurrent workers never lose an increment.
// The same figures are mirrored into a prometheus registry for the ops
// surface; the audit reads the atomic counters, not prometheus.
type Collector struct {
	processed  atomic.Int64
	duplicates atomic.Int64
	outOfStock atomic.Int64
	failed     atomic.Int64
	totalNanos atomic.Int64

	registry *prometheus.Registry
	outcomes *prometheus.CounterVec
	duration prometheus.Histogram
}

// Snapshot is a point-in-time copy of the collector's counters.
type Snapshot struct {
	Processed  int64
	Duplicates int64
	OutOfStock int64
	Failed     int64
	Total      time.Duration
}

// Handled is the number of requests that reached a terminal outcome,
// including suppressed duplicates.
func (s Snapshot) Handled() int64 {
	return s.Processed + s.Duplicates + s.OutOfStock + s.Failed
}

// AvgPerProcessed is the mean processing time per unique processed order.
func (s Snapshot) AvgPerProcessed() time.Duration {
	if s.Processed == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Processed)
}

// NewCollector creates a Collector with its own prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_outcomes_total",
			Help: "Order processing outcomes by classification.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_processing_duration_seconds",
			Help:    "Wall time of one processing unit of work.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	c.registry.MustRegister(c.outcomes, c.duration)
	return c
}

// Record counts one outcome and its processing duration.
func (c *Collector) Record(outcome model.Outcome, d time.Duration) {
	switch outcome {
	case model.OutcomeProcessed:
		c.processed.Add(1)
	case model.OutcomeDuplicate:
		c.duplicates.Add(1)
	case model.OutcomeOutOfStock:
		c.outOfStock.Add(1)
	case model.OutcomeFailed:
		c.failed.Add(1)
	}
	c.totalNanos.Add(int64(d))
	c.outcomes.WithLabelValues(outcome.String()).Inc()
	c.duration.Observe(d.Seconds())
}

// Snapshot copies the current counter values.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Processed:  c.processed.Load(),
		Duplicates: c.duplicates.Load(),
		OutOfStock: c.outOfStock.Load(),
		Failed:     c.failed.Load(),
		Total:      time.Duration(c.totalNanos.Load()),
	}
}

// Registry exposes the prometheus registry for the ops listener.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }
