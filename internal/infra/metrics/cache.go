package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(lockRequestsTotal) }

var lockRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_lock_requests_total",
		Help: "Distributed lock attempts by key prefix and outcome.",
	},
	[]string{"lock", "result"}, // result: 'acquired', 'busy', 'error'
)

func IncLockRequest(lockName, result string) {
	lockRequestsTotal.WithLabelValues(norm(lockName), norm(result)).Inc()
}
