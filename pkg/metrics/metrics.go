// Package metrics exposes run statistics as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all redditdl metrics.
	Namespace = "redditdl"
)

// Metrics holds the Prometheus collectors updated by the scheduler.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	ListingsProcessed *prometheus.CounterVec
	AssetsDownloaded  *prometheus.CounterVec
	ListingsSkipped   *prometheus.CounterVec
	Errors            *prometheus.CounterVec

	JobsExecuted       *prometheus.CounterVec
	JobDurationSeconds *prometheus.HistogramVec
	JobsRunning        prometheus.Gauge
	WorkersActive      prometheus.Gauge
	PanicsRecovered    prometheus.Counter
}

// NewMetrics creates and registers all metrics on reg, or the default registerer when nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initStatsMetrics(factory)
	m.initJobMetrics(factory)

	return m
}

func (m *Metrics) initStatsMetrics(factory promauto.Factory) {
	m.ListingsProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "listings_processed_total",
			Help:      "Total number of listings processed",
		},
		[]string{"list"},
	)

	m.AssetsDownloaded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "assets_downloaded_total",
			Help:      "Total number of assets written to disk",
		},
		[]string{"list"},
	)

	m.ListingsSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "skipped_total",
			Help:      "Total number of listings and assets skipped by policy",
		},
		[]string{"list"},
	)

	m.Errors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of classified failures",
		},
		[]string{"list"},
	)
}

func (m *Metrics) initJobMetrics(factory promauto.Factory) {
	m.JobsExecuted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "jobs_executed_total",
			Help:      "Total number of subreddit jobs executed",
		},
		[]string{"status"},
	)

	m.JobDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of subreddit jobs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2h
		},
		[]string{"list"},
	)

	m.JobsRunning = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "jobs_running",
			Help:      "Number of subreddit jobs currently running",
		},
	)

	m.WorkersActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "workers_active",
			Help:      "Number of workers currently draining a queue",
		},
	)

	m.PanicsRecovered = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "panics_recovered_total",
			Help:      "Total number of worker panics recovered",
		},
	)
}

// RecordStats adds one job's totals to the per-list counters
func (m *Metrics) RecordStats(list string, processed, downloaded, skipped, errors int) {
	if m == nil {
		return
	}
	m.ListingsProcessed.WithLabelValues(list).Add(float64(processed))
	m.AssetsDownloaded.WithLabelValues(list).Add(float64(downloaded))
	m.ListingsSkipped.WithLabelValues(list).Add(float64(skipped))
	m.Errors.WithLabelValues(list).Add(float64(errors))
}

// RecordJobStarted increments the running job count
func (m *Metrics) RecordJobStarted() {
	if m == nil {
		return
	}
	m.JobsRunning.Inc()
}

// RecordJobFinished decrements the running job count and records the outcome
func (m *Metrics) RecordJobFinished(list, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.JobsRunning.Dec()
	m.JobsExecuted.WithLabelValues(status).Inc()
	m.JobDurationSeconds.WithLabelValues(list).Observe(durationSeconds)
}

// RecordWorkerStarted increments the active worker gauge
func (m *Metrics) RecordWorkerStarted() {
	if m == nil {
		return
	}
	m.WorkersActive.Inc()
}

// RecordWorkerStopped decrements the active worker gauge
func (m *Metrics) RecordWorkerStopped() {
	if m == nil {
		return
	}
	m.WorkersActive.Dec()
}

// RecordPanic counts a recovered worker panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsRecovered.Inc()
}
