// Package metrics provides Prometheus instrumentation for the credit manager.
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
	// UpdatesTotal counts account update requests by outcome
	// ("committed" or the rejection reason).
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_account_updates_total",
		Help: "Total number of account update requests",
	}, []string{"outcome"})

	// UpdateLatency tracks account update latency, reserve calls included.
	UpdateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "credit_account_update_latency_seconds",
		Help:    "Account update latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ActionsTotal counts committed actions by kind.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_actions_total",
		Help: "Total number of committed actions",
	}, []string{"kind"})

	// BorrowVolume tracks cumulative borrowed amount per denom. Approximate:
	// exact amounts live in the store.
	BorrowVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_borrow_volume_total",
		Help: "Cumulative borrowed amount in base units",
	}, []string{"denom"})

	// ReserveFailures counts red bank calls that failed.
	ReserveFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_reserve_failures_total",
		Help: "Red bank calls that returned an error",
	}, []string{"op"})

	// AccountsCreated counts credit accounts opened.
	AccountsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credit_accounts_created_total",
		Help: "Number of credit accounts created",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "credit_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "credit_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
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
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
