package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payroll"

// Metrics holds the salary engine collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transitions    *prometheus.CounterVec
	conflicts      prometheus.Counter
	batchRuns      *prometheus.CounterVec
	batchDrivers   *prometheus.CounterVec
	batchDuration  prometheus.Histogram
	diurnaDuration prometheus.Histogram
}

// New registers the collectors on reg. Pass a fresh registry per test.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "salary_mutations_total",
			Help:      "Salary mutations by audit action.",
		}, []string{"action"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "salary_conflicts_total",
			Help:      "Mutations rejected because the record was being changed concurrently.",
		}),
		batchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_runs_total",
			Help:      "Automatic processing runs by result.",
		}, []string{"result"}),
		batchDrivers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_drivers_total",
			Help:      "Drivers handled by the automatic processor by outcome.",
		}, []string{"outcome"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processor_duration_seconds",
			Help:      "Duration of automatic processing runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		diurnaDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diurna_compute_duration_seconds",
			Help:      "Duration of diurna computations including registry reads.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.transitions,
		m.conflicts,
		m.batchRuns,
		m.batchDrivers,
		m.batchDuration,
		m.diurnaDuration,
	)
	return m
}

// NewWithRuntime also registers the Go runtime and process collectors.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Mutation(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// BatchRun records one processor run. result is "ok", "locked" or "error".
func (m *Metrics) BatchRun(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.batchRuns.WithLabelValues(result).Inc()
	m.batchDuration.Observe(took.Seconds())
}

// BatchDrivers adds n drivers with outcome "created", "calculated", "skipped" or "failed".
func (m *Metrics) BatchDrivers(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.batchDrivers.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) DiurnaComputed(took time.Duration) {
	if m == nil {
		return
	}
	m.diurnaDuration.Observe(took.Seconds())
}
