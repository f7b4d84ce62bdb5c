// Package gcmetrics exposes the collector's internals to Prometheus, a
// constructor wrapping a handful of counters and gauges that register
// themselves on a given registerer.
package gcmetrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every metric the collector updates while applying
// messages and running reclamation sweeps.
type Registry struct {
	MessagesApplied   *prometheus.CounterVec
	VerticesCreated   prometheus.Counter
	VerticesDestroyed prometheus.Counter
	FinalizerPanics   prometheus.Counter
	InvariantViolations *prometheus.CounterVec

	BackwardSweeps       prometheus.Counter
	BackwardSweepSize    prometheus.Histogram

	QueueDepth  prometheus.Gauge
	LiveVertices prometheus.Gauge
	LivePools    prometheus.Gauge
}

// New creates every metric and registers it on reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		MessagesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracegc",
			Name:      "messages_applied_total",
			Help:      "Messages applied by the collector worker, by kind.",
		}, []string{"kind"}),

		VerticesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracegc",
			Name:      "vertices_created_total",
			Help:      "Managed-block vertices registered with new-object.",
		}),

		VerticesDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracegc",
			Name:      "vertices_destroyed_total",
			Help:      "Managed-block vertices reclaimed.",
		}),

		FinalizerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracegc",
			Name:      "finalizer_panics_total",
			Help:      "Free-callback Destruct invocations that panicked and were recovered.",
		}),

		InvariantViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracegc",
			Name:      "invariant_violations_total",
			Help:      "Messages that referenced an unregistered slot address, by operation.",
		}, []string{"op"}),

		BackwardSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tracegc",
			Name:      "backward_sweeps_total",
			Help:      "Backward reachability sweeps run to resolve a potential cycle.",
		}),

		BackwardSweepSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tracegc",
			Name:      "backward_sweep_component_size",
			Help:      "Number of vertices visited per backward sweep.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tracegc",
			Name:      "queue_depth",
			Help:      "Messages currently queued for the collector worker.",
		}),

		LiveVertices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tracegc",
			Name:      "live_vertices",
			Help:      "Managed-block vertices currently reachable.",
		}),

		LivePools: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tracegc",
			Name:      "live_pools",
			Help:      "Backing memory pools currently allocated in the dynamic pool set.",
		}),
	}

	reg.MustRegister(
		r.MessagesApplied,
		r.VerticesCreated,
		r.VerticesDestroyed,
		r.FinalizerPanics,
		r.InvariantViolations,
		r.BackwardSweeps,
		r.BackwardSweepSize,
		r.QueueDepth,
		r.LiveVertices,
		r.LivePools,
	)

	return r
}
