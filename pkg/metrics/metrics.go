// Package metrics provides Prometheus metrics for the Arbor service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolverRequestsTotal tracks resolver queries by operation and outcome
	ResolverRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arbor",
			Subsystem: "resolver",
			Name:      "requests_total",
			Help:      "Total number of resolver queries by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ResolverRequestDuration tracks resolver query duration in seconds
	ResolverRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arbor",
			Subsystem: "resolver",
			Name:      "request_duration_seconds",
			Help:      "Duration of resolver queries in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// StatsCacheLookups tracks stats cache hits and misses
	StatsCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arbor",
			Subsystem: "stats_cache",
			Name:      "lookups_total",
			Help:      "Total number of stats cache lookups by result",
		},
		[]string{"result"},
	)

	// EventsIngested tracks endpoint events written to the store
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arbor",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of endpoint events ingested by kind",
		},
		[]string{"kind"},
	)

	// EventsDeadLettered tracks envelopes published to the dead letter topic
	EventsDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arbor",
			Subsystem: "ingest",
			Name:      "dead_lettered_total",
			Help:      "Total number of envelopes sent to the dead letter topic by reason",
		},
		[]string{"reason"},
	)
)
