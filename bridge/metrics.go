package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "requests",
		Name:      "published_total",
	})
	settledRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "requests",
		Name:      "settled_total",
	}, []string{"outcome"})
	replayedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "requests",
		Name:      "replayed_total",
	})
	activeConfirmations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "requests",
		Name:      "active_confirmations",
	})
)

func ObservePublishedRequest() {
	publishedRequests.Inc()
}

func ObserveSettledRequest(succeeded bool) {
	outcome := "failure"
	if succeeded {
		outcome = "success"
	}
	settledRequests.WithLabelValues(outcome).Inc()
}

func ObserveReplay() {
	replayedRequests.Inc()
}

func ObserveConfirmations(count uint) {
	activeConfirmations.Set(float64(count))
}
