// Package metrics exposes Prometheus instruments for analysis runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instruments recorded by the pipeline and API.
type Metrics struct {
	registry *prometheus.Registry

	// Stage latency by stage name
	StageDuration *prometheus.HistogramVec

	// Stage outcomes by stage and status
	StageOutcome *prometheus.CounterVec

	// Districts excluded or patched by stage
	DistrictsExcluded *prometheus.CounterVec
	DistrictWarnings  *prometheus.CounterVec

	// Run outcomes by final status
	RunOutcome *prometheus.CounterVec

	// Fact rows loaded by category
	FactRows *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pressure_stage_duration_seconds",
			Help:    "Duration of analytics stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"stage"}),

		StageOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pressure_stage_outcomes_total",
			Help: "Total stage outcomes by stage and status",
		}, []string{"stage", "status"}),

		DistrictsExcluded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pressure_districts_excluded_total",
			Help: "Districts dropped from a stage for a zero denominator",
		}, []string{"stage"}),

		DistrictWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pressure_district_warnings_total",
			Help: "Districts given a fallback value for insufficient data",
		}, []string{"stage"}),

		RunOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pressure_runs_total",
			Help: "Total analysis runs by final status",
		}, []string{"status"}),

		FactRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pressure_fact_rows_total",
			Help: "Fact rows loaded by category",
		}, []string{"category"}),
	}
}

// ObserveStage records the outcome and counts of one stage.
func (m *Metrics) ObserveStage(stage, status string, d time.Duration, excluded, warnings int) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	m.StageOutcome.WithLabelValues(stage, status).Inc()
	if excluded > 0 {
		m.DistrictsExcluded.WithLabelValues(stage).Add(float64(excluded))
	}
	if warnings > 0 {
		m.DistrictWarnings.WithLabelValues(stage).Add(float64(warnings))
	}
}

// IncrementRun records a finished run.
func (m *Metrics) IncrementRun(status string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(status).Inc()
	}
}

// AddFactRows records rows loaded for a category.
func (m *Metrics) AddFactRows(category string, n int) {
	if m != nil && n > 0 {
		m.FactRows.WithLabelValues(category).Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
