package contest

import "github.com/prometheus/client_golang/prometheus"

var (
	roundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agon_rounds_total",
			Help: "Total number of completed contest rounds.",
		},
	)

	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agon_submissions_total",
			Help: "Total number of agent solicitations by result.",
		},
		[]string{"result"},
	)

	roundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agon_round_duration_seconds",
			Help:    "End-to-end round duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	sandboxDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agon_sandbox_duration_seconds",
			Help:    "Sandbox execution duration per submission in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registeredAgents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agon_registered_agents",
			Help: "Number of registered agents.",
		},
	)
)

func init() {
	prometheus.MustRegister(roundsTotal)
	prometheus.MustRegister(submissionsTotal)
	prometheus.MustRegister(roundDuration)
	prometheus.MustRegister(sandboxDuration)
	prometheus.MustRegister(registeredAgents)
}
