// Package metrics exposes the Prometheus collectors instrumenting the
// oracle, storage service, and lock-cleanup path. Each RPC and cleanup
// action increments or observes one of these, the way the teacher's own
// storage engine and the wider TiKV-lineage clients in the corpus wire
// prometheus.CounterVec/HistogramVec pairs around their hot paths.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	oracleRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "percolator",
		Subsystem: "oracle",
		Name:      "requests_total",
		Help:      "Timestamp requests served by the oracle, by outcome.",
	}, []string{"outcome"})

	storageOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "percolator",
		Subsystem: "storage",
		Name:      "operations_total",
		Help:      "Storage service operations, by operation and outcome.",
	}, []string{"op", "outcome"})

	storageOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "percolator",
		Subsystem: "storage",
		Name:      "operation_duration_seconds",
		Help:      "Latency of storage service operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	lockCleanupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "percolator",
		Subsystem: "storage",
		Name:      "lock_cleanup_total",
		Help:      "Lock cleanup actions taken by back_off_maybe_clean_up_lock, by action.",
	}, []string{"action"})
)

func init() {
	prometheus.MustRegister(oracleRequestsTotal, storageOpsTotal, storageOpDuration, lockCleanupTotal)
}

// Collector is a thin handle onto the package's registered collectors,
// passed into the oracle and storage service so they don't reach for
// package-level globals directly. A nil *Collector is valid and a no-op,
// so components can be constructed without metrics in tests that don't
// care about them.
type Collector struct{}

// NewCollector returns a Collector wired to the package's Prometheus
// registrations.
func NewCollector() *Collector {
	return &Collector{}
}

// OracleRequest records one get_timestamp call with its outcome ("ok" or
// "error").
func (c *Collector) OracleRequest(outcome string) {
	if c == nil {
		return
	}
	oracleRequestsTotal.WithLabelValues(outcome).Inc()
}

// StorageOp records one storage RPC's outcome and latency. op is one of
// "get", "prewrite", "commit", "cleanup".
func (c *Collector) StorageOp(op, outcome string, seconds float64) {
	if c == nil {
		return
	}
	storageOpsTotal.WithLabelValues(op, outcome).Inc()
	storageOpDuration.WithLabelValues(op).Observe(seconds)
}

// LockCleanup records one back_off_maybe_clean_up_lock decision: one of
// "back_off", "roll_forward", "roll_back", "already_clean".
func (c *Collector) LockCleanup(action string) {
	if c == nil {
		return
	}
	lockCleanupTotal.WithLabelValues(action).Inc()
}
