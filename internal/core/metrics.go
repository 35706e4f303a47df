package core

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the analysis counters. Each instance owns its registry so
// tests can build processors without colliding registrations.
type Metrics struct {
	registry *prometheus.Registry

	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	runDuration   prometheus.Histogram
	filesAnalyzed *prometheus.CounterVec
	activeRuns    prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "report_analysis_runs_started_total",
			Help: "Analysis runs accepted by StartAnalysis.",
		}),
		runsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "report_analysis_runs_finished_total",
			Help: "Analysis runs that reached a terminal status.",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "report_analysis_run_duration_seconds",
			Help:    "Wall time of analysis runs from dispatch to terminal status.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		filesAnalyzed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "report_analysis_files_total",
			Help: "Per-file analyses by analysis type and outcome.",
		}, []string{"analysis_type", "outcome"}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "report_analysis_active_runs",
			Help: "Analysis runs executing in this process.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
