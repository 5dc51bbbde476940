package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "events",
		Name:      "processed_total",
	}, []string{"outcome"})
	selectedRanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "events",
		Name:      "ranges_selected_total",
	})
	approvedPartitions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "events",
		Name:      "partitions_approved_total",
	})
)

func ObserveEvent(accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	processedEvents.WithLabelValues(outcome).Inc()
}

func ObserveRangeSelected() {
	selectedRanges.Inc()
}

func ObservePartitionApproved() {
	approvedPartitions.Inc()
}
