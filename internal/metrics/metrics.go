// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cryptopulse"

// Import line outcomes.
const (
	ResultAccepted = "accepted"
	ResultSkipped  = "skipped"
)

var (
	// ImportLines counts CSV data lines by outcome. Header lines are not counted.
	ImportLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "lines_total",
			Help:      "CSV lines processed by the import pipeline",
		},
		[]string{"result"},
	)

	RateLimitAllowed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "allowed_total",
		Help:      "API requests admitted by the per-client limiter",
	})

	RateLimitRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "rejected_total",
		Help:      "API requests rejected with 429",
	})

	// RateLimitClients is the number of client buckets currently retained.
	RateLimitClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ratelimit",
		Name:      "clients",
		Help:      "Client buckets held in memory",
	})
)
