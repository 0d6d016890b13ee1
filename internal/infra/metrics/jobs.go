package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(insightJobsTotal, insightJobStepSeconds, insightJobsEnqueuedTotal) }

var (
	insightJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_jobs_total",
			Help: "Jobs that reached a terminal status.",
		},
		[]string{"status"}, // 'success', 'failed', 'cancelled'
	)

	insightJobStepSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insight_job_step_seconds",
			Help:    "Duration of each pipeline step.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"step", "success"},
	)

	insightJobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_jobs_enqueued_total",
			Help: "Jobs created, labeled by trigger.",
		},
		[]string{"trigger"}, // 'manual', 'scheduled'
	)
)

func IncJobFinished(status string) {
	insightJobsTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveJobStep(step string, d time.Duration, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	insightJobStepSeconds.WithLabelValues(norm(step), s).Observe(d.Seconds())
}

func IncJobEnqueued(manual bool) {
	trigger := "scheduled"
	if manual {
		trigger = "manual"
	}
	insightJobsEnqueuedTotal.WithLabelValues(trigger).Inc()
}
