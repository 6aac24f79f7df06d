package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BatchMetrics collects pipeline counters on a private registry.
// A nil *BatchMetrics is valid and records nothing, so wiring is optional.
type BatchMetrics struct {
	registry *prometheus.Registry

	jobsTotal       *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	commitsTotal    *prometheus.CounterVec
}

func NewBatchMetrics() *BatchMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchocr",
			Subsystem: "batch",
			Name:      "jobs_total",
			Help:      "Processed image jobs by terminal status.",
		},
		[]string{"status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatchocr",
			Subsystem: "batch",
			Name:      "job_process_duration_seconds",
			Help:      "Per-job extract+evaluate duration by terminal status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	commitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatchocr",
			Subsystem: "store",
			Name:      "commits_total",
			Help:      "Dispatch mutations by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(jobsTotal, processDuration, commitsTotal)
	return &BatchMetrics{
		registry:        registry,
		jobsTotal:       jobsTotal,
		processDuration: processDuration,
		commitsTotal:    commitsTotal,
	}
}

func (m *BatchMetrics) ObserveJob(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status).Inc()
	m.processDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *BatchMetrics) RecordCommit(succeeded bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !succeeded {
		outcome = "failed"
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the private registry, for mounting at /metrics.
func (m *BatchMetrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
