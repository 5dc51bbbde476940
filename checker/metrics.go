package checker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fedbridge/bridge-node/entity"
)

var (
	postedChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "checker",
		Name:      "checks_posted_total",
	}, []string{"result"})
	challenges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "checker",
		Name:      "challenges_total",
	})
	resolvedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "checker",
		Name:      "events_resolved_total",
	}, []string{"resolution"})
)

func ObserveCheckPosted(result entity.CheckResult) {
	postedChecks.WithLabelValues(string(result)).Inc()
}

func ObserveChallenge() {
	challenges.Inc()
}

func ObserveEventResolved(resolution string) {
	resolvedEvents.WithLabelValues(resolution).Inc()
}
