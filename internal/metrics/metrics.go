// Package metrics holds the Prometheus collectors exported by the service on
// a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SurfaceCells        prometheus.Counter
	SnapshotDuration    prometheus.Histogram
	SnapshotsSuperseded prometheus.Counter
	WSClients           prometheus.Gauge
	BatchTasks          *prometheus.CounterVec
}

// New creates the collectors and registers them together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bsdash_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bsdash_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SurfaceCells: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsdash_surface_cells_total",
			Help: "Option prices evaluated for price surfaces",
		}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bsdash_snapshot_build_duration_seconds",
			Help:    "Time to build a full dashboard snapshot",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		SnapshotsSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bsdash_ws_snapshots_superseded_total",
			Help: "Snapshots dropped because a newer request arrived",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bsdash_ws_clients",
			Help: "Connected WebSocket dashboard clients",
		}),
		BatchTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bsdash_batch_tasks_total",
			Help: "Batch scenarios evaluated, by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SurfaceCells,
		m.SnapshotDuration,
		m.SnapshotsSuperseded,
		m.WSClients,
		m.BatchTasks,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot records one snapshot build.
func (m *Metrics) ObserveSnapshot(start time.Time, cells int) {
	if m == nil {
		return
	}
	m.SnapshotDuration.Observe(time.Since(start).Seconds())
	m.SurfaceCells.Add(float64(cells))
}

// Middleware records request counts and latency labelled by chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
