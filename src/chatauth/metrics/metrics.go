package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Authentication outcomes by final state
	Authentications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatauth_authentications_total",
			Help: "Authentication requests by final state",
		},
		[]string{"state"},
	)

	ProvisioningFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatauth_provisioning_failures_total",
			Help: "Failed chat provisioning steps",
		},
		[]string{"step"},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatauth_external_call_duration_seconds",
			Help:    "Latency of ledger and chat backend calls",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"target", "op"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatauth_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

// ObserveCall records the duration of an external call started at start.
func ObserveCall(target, op string, start time.Time) {
	ExternalCallDuration.WithLabelValues(target, op).Observe(time.Since(start).Seconds())
}
