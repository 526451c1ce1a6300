// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_deliveries_total",
			Help: "Delivery attempts by platform and resulting target status.",
		},
		[]string{"platform", "status"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crosspost_delivery_duration_seconds",
			Help:    "Wall time of a single target delivery attempt.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"platform"},
	)

	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_upstream_requests_total",
			Help: "Outbound platform calls by outcome.",
		},
		[]string{"outcome"},
	)

	UpstreamRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crosspost_upstream_retries_total",
			Help: "Outbound platform calls that were retried after a transient failure.",
		},
	)

	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_token_refreshes_total",
			Help: "Access token refresh exchanges by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(Deliveries, DeliveryDuration, UpstreamRequests, UpstreamRetries, TokenRefreshes)
}
