// Package monitor exposes Prometheus metrics for the Pool Manager, Queue
// Manager, Quota Gate, Deployment Coordinator, and Slot Recovery Worker,
// grounded on the reference layout's promauto-based monitor package (same
// library, one var block per subsystem), generalized from that package's
// session/dispatcher/pool naming to this system's own components.
package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pool Manager metrics (§4.2).
var (
	PoolAcquisitionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "botfleet",
		Subsystem: "pool",
		Name:      "acquisition_latency_seconds",
		Help:      "Latency of Manager.Acquire, from request to a busy slot or nil",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	PoolOrchestratorErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "pool",
		Name:      "orchestrator_errors_total",
		Help:      "Total number of orchestrator adapter errors encountered while acquiring or releasing slots",
	})

	PoolSlotsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "pool",
		Name:      "slots_created_total",
		Help:      "Total number of new pool slots created, by platform",
	}, []string{"platform"})
)

// Queue Manager metrics (§4.3).
var (
	QueueEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "queue",
		Name:      "enqueued_total",
		Help:      "Total number of bots enqueued to the durable waiting set",
	})

	QueueDrainDeployedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "queue",
		Name:      "drain_deployed_total",
		Help:      "Total number of bots deployed off the queue during a drain pass",
	})

	QueueTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "queue",
		Name:      "timeouts_total",
		Help:      "Total number of queue entries expired and marked FATAL for queue timeout",
	})
)

// Quota Gate metrics (§4.6).
var (
	QuotaAllowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "quota",
		Name:      "allowed_total",
		Help:      "Total number of create-bot requests admitted by the quota gate",
	})

	QuotaDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "quota",
		Name:      "denied_total",
		Help:      "Total number of create-bot requests denied by the quota gate",
	})
)

// Deployment Coordinator metrics (§4.4).
var (
	DeployImmediateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "deploy",
		Name:      "immediate_total",
		Help:      "Total number of deploys that landed on a slot or local process immediately",
	})

	DeployQueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "deploy",
		Name:      "queued_total",
		Help:      "Total number of deploys that were enqueued instead of landing immediately",
	})

	DeployFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "deploy",
		Name:      "failed_total",
		Help:      "Total number of deploys that ended in a FATAL bot status",
	})
)

// Slot Recovery Worker metrics (§4.5).
var (
	RecoverySweepRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "recovery",
		Name:      "recovered_total",
		Help:      "Total number of slots reset to idle by the recovery sweep",
	})

	RecoverySweepFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "recovery",
		Name:      "failed_total",
		Help:      "Total number of slots whose recovery attempt failed and had recovery-attempts incremented",
	})

	RecoverySweepDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botfleet",
		Subsystem: "recovery",
		Name:      "deleted_total",
		Help:      "Total number of slots permanently deleted after exhausting recovery attempts",
	})
)
