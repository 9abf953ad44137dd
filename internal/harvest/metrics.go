// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes counted by Metrics.
const (
	OutcomeStored  = "stored"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
	OutcomeInvalid = "invalid"
)

// Harvest phases timed by Metrics.
const (
	PhaseFetch    = "fetch"
	PhaseValidate = "validate"
	PhaseMap      = "map"
	PhaseStore    = "store"
)

// Metrics holds the Prometheus collectors for harvest runs. It uses its own
// registry so several runs in one process do not collide. A nil *Metrics
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Records       *prometheus.CounterVec
	Pages         *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	Progress      prometheus.Gauge
}

// NewMetrics registers the harvest collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_records_total",
			Help: "Records processed, by rule set and outcome (stored, failed, skipped, invalid)",
		}, []string{"rule_set", "outcome"}),
		Pages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_pages_total",
			Help: "Pages processed, by rule set and status (ok, failed)",
		}, []string{"rule_set", "status"}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_phase_duration_seconds",
			Help:    "Time spent per page in each harvest phase",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"rule_set", "phase"}),
		Progress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_progress_percent",
			Help: "Completion percentage of the current run",
		}),
	}
}

func (m *Metrics) record(ruleSet, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Records.WithLabelValues(ruleSet, outcome).Add(float64(n))
}

func (m *Metrics) page(ruleSet string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.Pages.WithLabelValues(ruleSet, status).Inc()
}

func (m *Metrics) observe(ruleSet, phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(ruleSet, phase).Observe(d.Seconds())
}

func (m *Metrics) progress(pct float64) {
	if m == nil {
		return
	}
	m.Progress.Set(pct)
}

// WriteFile writes the registry in the Prometheus text format, for the node
// exporter's textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
