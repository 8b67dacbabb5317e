package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the process collectors behind an injected registry so
// tests can construct isolated instances. All methods are safe on a nil
// receiver, which lets callers skip instrumentation entirely.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	gateRejections   *prometheus.CounterVec
	searchRequests   *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// New creates a metrics set with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Number of HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		gateRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_rejections_total",
				Help: "Requests rejected by the gate, by check.",
			},
			[]string{"check"},
		),
		searchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_requests_total",
				Help: "Search requests by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_upstream_duration_seconds",
				Help:    "Outbound lookup latency by search kind.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.gateRejections,
		m.searchRequests,
		m.upstreamDuration,
	)

	return m
}

// Registry exposes the underlying registry for test gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. Routes are labelled with
// the chi route pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.Status())).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// IncGateRejection counts one rejected request for the named check.
func (m *Metrics) IncGateRejection(check string) {
	if m == nil {
		return
	}
	m.gateRejections.WithLabelValues(check).Inc()
}

// IncSearch counts one search request by kind and outcome
// ("ok", "empty", "upstream_error", "timeout", "denied").
func (m *Metrics) IncSearch(kind, outcome string) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(kind, outcome).Inc()
}

// ObserveUpstream records one outbound lookup duration.
func (m *Metrics) ObserveUpstream(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(kind).Observe(d.Seconds())
}
