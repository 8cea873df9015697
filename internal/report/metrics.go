package report

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Metrics are projections of run records: counters by variant and status, a
// solve time histogram and the objective of the last run per variant.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	solveSeconds  *prometheus.HistogramVec
	lastObjective *prometheus.GaugeVec
	solutions     *prometheus.CounterVec

	Unsolved *UnsolvedLog
}

// NewMetrics creates metrics on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopbench_runs_total",
				Help: "Experiment runs by variant and solver status",
			},
			[]string{"variant", "status"},
		),
		solveSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shopbench_solve_seconds",
				Help:    "Wall time spent in the solver",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"variant"},
		),
		lastObjective: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shopbench_last_objective",
				Help: "Objective value of the last solved run",
			},
			[]string{"variant"},
		),
		solutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopbench_improving_solutions_total",
				Help: "Improving solutions found by the solver",
			},
			[]string{"variant"},
		),
		Unsolved: NewUnsolvedLog(50),
	}
	m.registry.MustRegister(m.runsTotal, m.solveSeconds, m.lastObjective, m.solutions)
	return m
}

// RecordResult updates every metric from a single record
func (m *Metrics) RecordResult(r *Record) {
	m.runsTotal.WithLabelValues(r.Variant, r.Status).Inc()
	m.solveSeconds.WithLabelValues(r.Variant).Observe(r.WallTime.Seconds())
	m.solutions.WithLabelValues(r.Variant).Add(float64(r.Solutions))
	if r.Objective != nil {
		m.lastObjective.WithLabelValues(r.Variant).Set(*r.Objective)
	}
	m.Unsolved.Record(r)
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the metrics for the node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Encode writes every gathered family in the text exposition format
func (m *Metrics) Encode(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
