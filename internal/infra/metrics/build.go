package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo) }

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "insight_build_info",
		Help: "Always 1; labels carry the binary version, commit and role.",
	},
	[]string{"version", "commit", "role"},
)

// SetBuildInfo marks the running process; role is the cobra subcommand (bot, worker, scheduler).
func SetBuildInfo(version, commit, role string) {
	buildInfo.WithLabelValues(version, commit, norm(role)).Set(1)
}
