// Package metrics holds the Prometheus collectors for upstream bootstrap,
// upstream calls, gateway forwarding and inbound HTTP traffic. All methods
// are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookingplatform"

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	bootstrapAttempts *prometheus.CounterVec
	upstreamReady     *prometheus.GaugeVec
	callAttempts      *prometheus.CounterVec
	callDuration      *prometheus.HistogramVec
	forwards          *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bootstrapAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "bootstrap_attempts_total",
			Help:      "Bootstrap attempts by upstream, failing stage and outcome.",
		}, []string{"upstream", "stage", "outcome"}),
		upstreamReady: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "ready",
			Help:      "1 when a client handle is published for the upstream, 0 otherwise.",
		}, []string{"upstream"}),
		callAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_attempts_total",
			Help:      "Upstream call attempts by method and result kind.",
		}, []string{"upstream", "method", "result"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Duration of a whole upstream call including retries.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"upstream", "method"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "forwards_total",
			Help:      "Forwarded requests by upstream and outcome.",
		}, []string{"upstream", "method", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Inbound HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Inbound HTTP request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.bootstrapAttempts,
		m.upstreamReady,
		m.callAttempts,
		m.callDuration,
		m.forwards,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// BootstrapAttempt records one bootstrap attempt. stage is empty on success.
func (m *Metrics) BootstrapAttempt(upstream, stage string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome, stage = "success", "none"
	}
	m.bootstrapAttempts.WithLabelValues(upstream, stage, outcome).Inc()
}

// UpstreamReady sets the readiness gauge.
func (m *Metrics) UpstreamReady(upstream string, ready bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ready {
		v = 1
	}
	m.upstreamReady.WithLabelValues(upstream).Set(v)
}

// CallAttempt records a single call attempt and its result kind ("ok" on success).
func (m *Metrics) CallAttempt(upstream, method, result string) {
	if m == nil {
		return
	}
	m.callAttempts.WithLabelValues(upstream, method, result).Inc()
}

// CallDuration records the duration of a whole call.
func (m *Metrics) CallDuration(upstream, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.callDuration.WithLabelValues(upstream, method).Observe(d.Seconds())
}

// Forward records the outcome of one gateway forward.
func (m *Metrics) Forward(upstream, method, outcome string) {
	if m == nil {
		return
	}
	m.forwards.WithLabelValues(upstream, method, outcome).Inc()
}

// HTTPRequest records one inbound HTTP request.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
