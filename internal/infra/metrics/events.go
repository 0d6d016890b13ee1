package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		statusEventsPublishedTotal,
		statusEventsHandledTotal,
		schedulerSweepsTotal,
		schedulerJobsEnqueuedTotal,
	)
}

var (
	statusEventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_events_published_total",
			Help: "Status events published on the bus.",
		},
		[]string{"status", "result"},
	)

	statusEventsHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_events_handled_total",
			Help: "Status events consumed by the listener.",
		},
		[]string{"status", "result"}, // result: 'ok', 'error', 'skipped'
	)

	schedulerSweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_sweeps_total",
			Help: "Scheduler sweeps by outcome.",
		},
		[]string{"result"}, // 'ok', 'error', 'locked'
	)

	schedulerJobsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_enqueued_total",
			Help: "Jobs enqueued by scheduler sweeps.",
		},
	)
)

func IncStatusPublished(status, result string) {
	statusEventsPublishedTotal.WithLabelValues(norm(status), norm(result)).Inc()
}

func IncStatusHandled(status, result string) {
	statusEventsHandledTotal.WithLabelValues(norm(status), norm(result)).Inc()
}

func IncSchedulerSweep(result string) {
	schedulerSweepsTotal.WithLabelValues(norm(result)).Inc()
}

func AddSchedulerEnqueued(n int) {
	schedulerJobsEnqueuedTotal.Add(float64(n))
}
