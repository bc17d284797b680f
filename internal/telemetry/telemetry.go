// Package telemetry wires Prometheus metrics and OpenTelemetry tracing
// for the service.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Kris4js/WildGooseAgent/config"
)

// Metrics holds the agent's Prometheus collectors.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	runIterations prometheus.Histogram
	phaseDuration *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors. Pass
// prometheus.DefaultRegisterer for the promhttp default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildgoose_runs_total",
			Help: "Completed agent runs by status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wildgoose_run_duration_seconds",
			Help:    "End to end agent run duration.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		runIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wildgoose_run_iterations",
			Help:    "Plan/execute/reflect iterations per run.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wildgoose_phase_duration_seconds",
			Help:    "Duration of each pipeline phase.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"phase"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildgoose_http_requests_total",
			Help: "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "code"}),
	}
	reg.MustRegister(m.runsTotal, m.runDuration, m.runIterations, m.phaseDuration, m.httpRequests)
	return m
}

// RunCompleted records a successful run.
func (m *Metrics) RunCompleted(d time.Duration, iterations int) {
	m.runsTotal.WithLabelValues("completed").Inc()
	m.runDuration.Observe(d.Seconds())
	m.runIterations.Observe(float64(iterations))
}

// RunFailed records a run that surfaced a phase error.
func (m *Metrics) RunFailed(d time.Duration) {
	m.runsTotal.WithLabelValues("failed").Inc()
	m.runDuration.Observe(d.Seconds())
}

// PhaseObserved records one phase duration.
func (m *Metrics) PhaseObserved(phase string, d time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// HTTPRequest counts one served request.
func (m *Metrics) HTTPRequest(method, path, code string) {
	m.httpRequests.WithLabelValues(method, path, code).Inc()
}

// SetupTracing installs a global tracer provider when telemetry is
// enabled. Exporter wiring is left to the deployment; spans still
// propagate to any registered processor. Returns a shutdown func.
func SetupTracing(cfg config.TelemetryConfig) func(context.Context) error {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }
	}
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
