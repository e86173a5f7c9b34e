// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run statuses.
const (
	RunStatusOK        = "ok"
	RunStatusEmpty     = "empty"
	RunStatusCancelled = "cancelled"
)

// PipelineMetrics captures run health. A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	mergedRows      prometheus.Gauge
	sourceReads     *prometheus.CounterVec
	analyses        *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	writes          *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	lastRunUnixTime prometheus.Gauge
}

// New creates the collectors and registers them on registerer. A nil registerer uses the
// default one.
func New(registerer prometheus.Registerer) (*PipelineMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &PipelineMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solar_pipeline_runs_total",
			Help: "Pipeline runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "solar_pipeline_run_duration_seconds",
			Help:    "Wall time of a full pipeline run.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		mergedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solar_pipeline_merged_rows",
			Help: "Rows of the merged table of the last run.",
		}),
		sourceReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solar_source_reads_total",
			Help: "Source reads by source and outcome.",
		}, []string{"source", "status"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solar_analysis_results_total",
			Help: "Analysis results by analysis and outcome.",
		}, []string{"analysis", "status"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solar_alerts_raised_total",
			Help: "Alerts raised by type.",
		}, []string{"type"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solar_persistence_writes_total",
			Help: "Persistence writes by target and outcome.",
		}, []string{"target", "status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solar_notifications_total",
			Help: "Webhook deliveries by outcome.",
		}, []string{"status"}),
		lastRunUnixTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solar_pipeline_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.runs, m.runDuration, m.mergedRows, m.sourceReads, m.analyses,
		m.alerts, m.writes, m.notifications, m.lastRunUnixTime,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RunFinished records a completed run.
func (m *PipelineMetrics) RunFinished(status string, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.lastRunUnixTime.Set(float64(finished.Unix()))
}

// MergedRows records the size of the merged table.
func (m *PipelineMetrics) MergedRows(n int) {
	if m == nil {
		return
	}
	m.mergedRows.Set(float64(n))
}

// SourceRead records one source outcome.
func (m *PipelineMetrics) SourceRead(source, status string) {
	if m == nil {
		return
	}
	m.sourceReads.WithLabelValues(source, status).Inc()
}

// Analysis records one analysis outcome.
func (m *PipelineMetrics) Analysis(name, status string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(name, status).Inc()
}

// AlertRaised records one alert of alertType.
func (m *PipelineMetrics) AlertRaised(alertType string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(alertType).Inc()
}

// Write records one persistence write.
func (m *PipelineMetrics) Write(target string, err error) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(target, statusOf(err)).Inc()
}

// Notification records webhook delivery outcomes.
func (m *PipelineMetrics) Notification(delivered int, err error) {
	if m == nil {
		return
	}
	if delivered > 0 {
		m.notifications.WithLabelValues("ok").Add(float64(delivered))
	}
	if err != nil {
		m.notifications.WithLabelValues("error").Inc()
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
