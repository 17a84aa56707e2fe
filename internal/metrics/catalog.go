package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Catalog client Prometheus metrics.
var (
	TransportRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "transport_requests_total",
			Help:      "Outbound HTTP requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: "ok" or an error kind
	)

	TransportRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalog",
			Name:      "transport_request_duration_seconds",
			Help:      "Outbound HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	PoolSlotsBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "catalog",
			Name:      "pool_slots_busy",
			Help:      "Transport slots currently executing a request",
		},
	)

	PoolRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "pool_rejections_total",
			Help:      "Requests rejected because every transport slot was busy",
		},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "cache_lookups_total",
			Help:      "Artifact cache lookups",
		},
		[]string{"artifact", "result"}, // "hit" / "miss" / "corrupt"
	)

	FlowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "flows_total",
			Help:      "Completed catalog flows by flow and status",
		},
		[]string{"flow", "status"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		TransportRequestsTotal,
		TransportRequestDuration,
		PoolSlotsBusy,
		PoolRejectionsTotal,
		CacheLookupsTotal,
		FlowsTotal,
	}
}

// Register registers the catalog metrics on reg. Registering twice on the
// same registerer is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register metric: %w", err)
		}
	}
	return nil
}
