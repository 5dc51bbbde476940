package sidecar

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "sidecar",
		Name:      "request_duration_seconds",
		Buckets:   []float64{0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
	}, []string{"method"})
	requestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "sidecar",
		Name:      "request_errors_total",
	}, []string{"method"})
)

func ObserveDuration(method string) func() time.Duration {
	return prometheus.NewTimer(requestDurations.WithLabelValues(method)).ObserveDuration
}

func ObserveError(method string) {
	requestErrors.WithLabelValues(method).Inc()
}
