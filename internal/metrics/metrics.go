// Package metrics provides Prometheus instrumentation for ingestion runs and
// the reporting API.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RowsTotal counts source rows by file kind and outcome
	// (stored, blank, rejected).
	RowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "electiondb_rows_total",
		Help: "Source rows processed",
	}, []string{"kind", "outcome"})

	// FactsTotal counts fact inserts, partitioned by whether the composite
	// key was new.
	FactsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "electiondb_facts_total",
		Help: "Fact rows written",
	}, []string{"kind", "result"})

	// DimensionOps counts resolver operations per dimension
	// (lookup, insert, enrich, retry).
	DimensionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "electiondb_dimension_ops_total",
		Help: "Dimension resolver operations",
	}, []string{"dimension", "op"})

	// FilesTotal counts source files by status (ingested, missing, failed).
	FilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "electiondb_files_total",
		Help: "Source files handled",
	}, []string{"kind", "status"})

	// RunDuration tracks ingestion run duration.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "electiondb_run_duration_seconds",
		Help:    "Ingestion run duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"kind"})

	// WebSocketClients tracks connected progress subscribers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "electiondb_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "electiondb_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "electiondb_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// The route pattern keeps the path label low-cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack is required by the WebSocket upgrader.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer cannot be hijacked")
	}
	return h.Hijack()
}
