package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the replication daemon.
type Metrics struct {
	registry       *prometheus.Registry
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	RunIterations  *prometheus.HistogramVec
	ActiveRuns     *prometheus.GaugeVec
	SandboxRuns    *prometheus.CounterVec
	SandboxLatency prometheus.Histogram
	TransportErrs  *prometheus.CounterVec
	ModelUsage     *prometheus.CounterVec
	ModelFailures  *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with replication collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replicode_runs_total",
		Help: "Completed replication runs by outcome (success, failure, fatal)",
	}, []string{"outcome"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replicode_run_duration_seconds",
		Help:    "Replication run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"outcome"})

	iters := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replicode_run_iterations",
		Help:    "Iterations consumed per replication run",
		Buckets: []float64{1, 2, 3, 4, 5, 8, 10, 15, 20},
	}, []string{"outcome"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "replicode_active_runs",
		Help: "In-flight replication runs by transport",
	}, []string{"transport"})

	sandboxRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replicode_sandbox_executions_total",
		Help: "Sandbox executions by result (ok, failed)",
	}, []string{"result"})

	sandboxLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "replicode_sandbox_execution_seconds",
		Help:    "Sandbox execution wall time in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replicode_transport_errors_total",
		Help: "Transport-level errors by transport and reason",
	}, []string{"transport", "reason"})

	modelUsage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replicode_model_usage_total",
		Help: "Model selections by role (generator, judge, analysis)",
	}, []string{"role", "model"})

	modelFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replicode_model_failures_total",
		Help: "Model call failures by role and model",
	}, []string{"role", "model"})

	reg.MustRegister(runs, durs, iters, active, sandboxRuns, sandboxLatency, trErrors, modelUsage, modelFailures)

	return &Metrics{
		registry:       reg,
		RunsTotal:      runs,
		RunDuration:    durs,
		RunIterations:  iters,
		ActiveRuns:     active,
		SandboxRuns:    sandboxRuns,
		SandboxLatency: sandboxLatency,
		TransportErrs:  trErrors,
		ModelUsage:     modelUsage,
		ModelFailures:  modelFailures,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records a completed replication run.
func (m *Metrics) RecordRun(outcome string, duration time.Duration, iterations int) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.RunIterations.WithLabelValues(outcome).Observe(float64(iterations))
}

// RecordSandboxExecution records a single sandbox execution.
func (m *Metrics) RecordSandboxExecution(failed bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "failed"
	}
	m.SandboxRuns.WithLabelValues(result).Inc()
	m.SandboxLatency.Observe(duration.Seconds())
}

// IncActiveRuns increments the in-flight run gauge.
func (m *Metrics) IncActiveRuns(transport string) {
	if m == nil {
		return
	}
	m.ActiveRuns.WithLabelValues(transport).Inc()
}

// DecActiveRuns decrements the in-flight run gauge.
func (m *Metrics) DecActiveRuns(transport string) {
	if m == nil {
		return
	}
	m.ActiveRuns.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}

// RecordModelUsage increments the usage counter for a role/model selection.
func (m *Metrics) RecordModelUsage(role, model string) {
	if m == nil {
		return
	}
	if role == "" {
		role = "unknown"
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelUsage.WithLabelValues(role, model).Inc()
}

// RecordModelFailure increments the failure counter for a role/model selection.
func (m *Metrics) RecordModelFailure(role, model string) {
	if m == nil {
		return
	}
	if role == "" {
		role = "unknown"
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelFailures.WithLabelValues(role, model).Inc()
}
