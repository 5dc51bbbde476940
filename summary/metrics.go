package summary

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolvedRoots = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bridge",
	Subsystem: "summary",
	Name:      "roots_resolved_total",
}, []string{"outcome"})

var advancedSlots = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bridge",
	Subsystem: "summary",
	Name:      "slots_advanced_total",
})

func ObserveRootResolved(approved bool) {
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	resolvedRoots.WithLabelValues(outcome).Inc()
}

func ObserveSlotAdvanced() {
	advancedSlots.Inc()
}
