// Package httpapi exposes the ops HTTP surface of the simulator.
package httpapi

import (
	"expvar"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers ops routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", app.healthHandler)
	mux.HandleFunc("/status", app.statusHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(app.Collector.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	return WithRequestID(WithLogging(mux))
}
