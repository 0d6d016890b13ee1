package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(toolExecSeconds) }

var toolExecSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tdl_exec_seconds",
		Help:    "External export tool run time by command and result.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 13),
	},
	[]string{"command", "result"}, // result: 'ok', 'timeout', 'failed', 'parse_error', 'cancelled'
)

func ObserveToolExec(command, result string, d time.Duration) {
	toolExecSeconds.WithLabelValues(norm(command), norm(result)).Observe(d.Seconds())
}
