// Package oracle implements the timestamp authority: the single source of
// strictly-monotonic 64-bit timestamps the rest of the protocol orders
// itself against.
package oracle

import (
	"sync/atomic"

	kverrors "github.com/kvperc/percolator/pkg/errors"
	"github.com/kvperc/percolator/pkg/metrics"
)

// Oracle issues strictly-increasing timestamps via an atomic counter. It
// holds no wall-clock dependency: ordering, not real time, is the only
// contract callers can rely on.
type Oracle struct {
	counter   atomic.Uint64
	failNext  atomic.Int64 // remaining calls to fail, for fault-injection tests
	collector *metrics.Collector
}

// New builds an Oracle whose first issued timestamp is 1 (0 is reserved so
// callers can use it as a "no version" sentinel).
func New(collector *metrics.Collector) *Oracle {
	o := &Oracle{collector: collector}
	o.counter.Store(0)
	return o
}

// FailNext arms the oracle's own fault-injection switch: the next n calls
// to GetTimestamp return a TransportError instead of issuing a value. This
// is not part of the protocol; it exists to exercise the client's Timeout
// path against the Oracle in isolation from Storage.
func (o *Oracle) FailNext(n int) {
	o.failNext.Store(int64(n))
}

// GetTimestamp returns a value strictly greater than every value this
// Oracle has previously returned. Concurrent calls are serialized by the
// atomic counter itself.
func (o *Oracle) GetTimestamp() (uint64, error) {
	if o.failNext.Load() > 0 {
		o.failNext.Add(-1)
		if o.collector != nil {
			o.collector.OracleRequest("error")
		}
		return 0, &kverrors.TransportError{Op: "get_timestamp", Err: errFaultInjected}
	}
	ts := o.counter.Add(1)
	if o.collector != nil {
		o.collector.OracleRequest("ok")
	}
	return ts, nil
}

var errFaultInjected = faultInjectedError{}

type faultInjectedError struct{}

func (faultInjectedError) Error() string { return "oracle: fault injected" }
