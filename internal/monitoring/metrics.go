// Package monitoring exposes scan metrics to Prometheus, posts Slack alerts
// when a scan finds too many critical CIs, and tracks ServiceNow reachability.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sells-group/ownership-cli/internal/model"
)

const namespace = "ownership"

// Metrics holds the collectors updated by scans and assignments.
type Metrics struct {
	registry *prometheus.Registry

	scansTotal       *prometheus.CounterVec
	scanDuration     prometheus.Histogram
	staleCIs         *prometheus.GaugeVec
	evaluationErrors prometheus.Counter
	assignmentsTotal *prometheus.CounterVec
	serviceNowUp     prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed staleness scans by source.",
		}, []string{"source"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a staleness scan including retrieval.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		staleCIs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stale_cis",
			Help:      "Stale CIs found by the most recent scan, by risk level.",
		}, []string{"risk_level"}),
		evaluationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "CIs whose evaluation failed.",
		}),
		assignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Owner changes written to ServiceNow by kind (assign, undo).",
		}, []string{"kind"}),
		serviceNowUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "servicenow_up",
			Help:      "1 if the last ServiceNow connectivity check succeeded.",
		}),
	}
	m.registry.MustRegister(
		m.scansTotal, m.scanDuration, m.staleCIs,
		m.evaluationErrors, m.assignmentsTotal, m.serviceNowUp,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveScan records a finished scan.
func (m *Metrics) ObserveScan(source string, res *model.ScanResult, elapsed time.Duration) {
	if source == "" {
		source = "unknown"
	}
	m.scansTotal.WithLabelValues(source).Inc()
	m.scanDuration.Observe(elapsed.Seconds())
	if res == nil {
		return
	}
	m.staleCIs.WithLabelValues(string(model.RiskCritical)).Set(float64(res.Summary.CriticalRisk))
	m.staleCIs.WithLabelValues(string(model.RiskHigh)).Set(float64(res.Summary.HighRisk))
	m.staleCIs.WithLabelValues(string(model.RiskMedium)).Set(float64(res.Summary.MediumRisk))
	m.evaluationErrors.Add(float64(res.Summary.EvaluationErrors))
}

// ObserveAssignment counts an owner change.
func (m *Metrics) ObserveAssignment(isUndo bool) {
	kind := "assign"
	if isUndo {
		kind = "undo"
	}
	m.assignmentsTotal.WithLabelValues(kind).Inc()
}

// SetServiceNowUp records the outcome of a connectivity check.
func (m *Metrics) SetServiceNowUp(up bool) {
	if up {
		m.serviceNowUp.Set(1)
		return
	}
	m.serviceNowUp.Set(0)
}
