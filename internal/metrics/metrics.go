// Package metrics exposes Prometheus collectors for solver activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contactkeval/implied-vol/internal/engine"
)

const namespace = "ivcalc"

// Metrics owns its registry so several instances can coexist (tests, embedding).
type Metrics struct {
	registry *prometheus.Registry

	SolvesTotal     *prometheus.CounterVec
	SolveIterations *prometheus.HistogramVec
	SolveDuration   prometheus.Histogram

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SolvesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Implied volatility solves by model and outcome",
		}, []string{"model", "status"}),
		SolveIterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_iterations",
			Help:      "Solver iterations for converged solves",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30, 50, 100},
		}, []string{"model"}),
		SolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Wall time of a single solve",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		m.SolvesTotal,
		m.SolveIterations,
		m.SolveDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one outcome. It satisfies engine.Observer.
func (m *Metrics) Observe(o engine.Outcome) {
	model := "unknown"
	if o.Status() != engine.StatusInvalid {
		model = o.Record.Model.String()
	}
	m.SolvesTotal.WithLabelValues(model, string(o.Status())).Inc()
	m.SolveDuration.Observe(o.Elapsed.Seconds())
	if o.Status() == engine.StatusSolved {
		m.SolveIterations.WithLabelValues(model).Observe(float64(o.Result.Iterations))
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, code int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
