package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fairyhunter13/order-processing-simulator/internal/config"
	"github.com/fairyhunter13/order-processing-simulator/internal/metrics"
	"github.com/fairyhunter13/order-processing-simulator/internal/queue"
)

// App is the ops surface of the simulator: health, status, and metric
// endpoints. Order submission is in-process and has no HTTP route.
type App struct {
	Cfg       config.Config
	Queue     *queue.Queue
	Collector *metrics.Collector
	started   time.Time
}

// NewApp wires the ops handlers to the running pipeline.
func NewApp(cfg config.Config, q *queue.Queue, c *metrics.Collector) *App {
	return &App{Cfg: cfg, Queue: q, Collector: c, started: time.Now()}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statusPayload struct {
	Processed     int64   `json:"processed"`
	Duplicates    int64   `json:"duplicates"`
	OutOfStock    int64   `json:"out_of_stock"`
	Failed        int64   `json:"failed"`
	Enqueued      uint64  `json:"enqueued"`
	Popped        uint64  `json:"popped"`
	BacklogSize   int     `json:"backlog_size"`
	QueueDepth    int     `json:"queue_depth"`
	IntakeClosed  bool    `json:"intake_closed"`
	WorkerCount   int     `json:"worker_count"`
	UptimeSeconds float64 `json:"uptime_sec"`
}

func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	snap := a.Collector.Snapshot()
	enq, popped, backlog, depth := a.Queue.Metrics()
	p := statusPayload{
		Processed:     snap.Processed,
		Duplicates:    snap.Duplicates,
		OutOfStock:    snap.OutOfStock,
		Failed:        snap.Failed,
		Enqueued:      enq,
		Popped:        popped,
		BacklogSize:   backlog,
		QueueDepth:    depth,
		IntakeClosed:  a.Queue.IsClosed(),
		WorkerCount:   a.Cfg.WorkerCount,
		UptimeSeconds: time.Since(a.started).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}
