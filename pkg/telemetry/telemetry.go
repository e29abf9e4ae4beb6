// Package telemetry exposes the engine's own operational metrics via
// github.com/prometheus/client_golang, the same dependency the teacher
// used on the query side against an external Prometheus; here it is
// used on the expose side since this engine has metrics of its own.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric this engine publishes. Construct one
// per process and wire it into each component that has something worth
// counting.
type Registry struct {
	registry *prometheus.Registry

	GraphMutations        *prometheus.CounterVec
	GraphNodeCount        prometheus.Gauge
	GraphEdgeCount        prometheus.Gauge
	CriticalityRecomputed prometheus.Counter

	CascadeRunsTotal   *prometheus.CounterVec
	CascadeRunDuration prometheus.Histogram
	CascadeQueueDepth  prometheus.Gauge

	IngestionAccepted *prometheus.CounterVec
	IngestionRejected *prometheus.CounterVec

	FanoutPublished *prometheus.CounterVec
	FanoutDropped   *prometheus.CounterVec
}

// New constructs a Registry and registers every metric against a fresh
// prometheus.Registry (not the global DefaultRegisterer, so multiple
// engine instances in one process — e.g. in tests — never collide on
// metric registration). namespace prefixes every metric name; an empty
// string defaults to "resilience".
func New(namespace string) *Registry {
	if namespace == "" {
		namespace = "resilience"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,

		GraphMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "mutations_total",
			Help:      "Graph store mutations by kind (add_node, update_node, remove_node, add_edge, remove_edge).",
		}, []string{"kind"}),

		GraphNodeCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Current node count in the graph store.",
		}),

		GraphEdgeCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "edges",
			Help:      "Current edge count in the graph store.",
		}),

		CriticalityRecomputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "criticality",
			Name:      "recomputed_total",
			Help:      "Number of times the criticality cache recomputed scores.",
		}),

		CascadeRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cascade",
			Name:      "runs_total",
			Help:      "Simulation jobs by outcome (succeeded, or the error kind of a failed dispatch), plus Monte-Carlo runs that needed a retry (retried).",
		}, []string{"outcome"}),

		CascadeRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cascade",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of a complete simulation job.",
			Buckets:   prometheus.DefBuckets,
		}),

		CascadeQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "coordinator",
			Name:      "queue_depth",
			Help:      "Jobs currently occupying a coordinator worker or queue slot.",
		}),

		IngestionAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "accepted_total",
			Help:      "Ingestion records accepted, by data type.",
		}, []string{"data_type"}),

		IngestionRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rejected_total",
			Help:      "Ingestion records rejected, by error kind.",
		}, []string{"reason"}),

		FanoutPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "published_total",
			Help:      "Events published, by topic.",
		}, []string{"topic"}),

		FanoutDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "dropped_total",
			Help:      "Events dropped from a full subscriber queue, by topic.",
		}, []string{"topic"}),
	}
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
