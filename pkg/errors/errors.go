// Package errors defines the typed failure kinds the Percolator protocol
// produces and consumes. Each kind is a small struct with an Error() method,
// discriminated by callers via errors.As, rather than a package of sentinel
// values -- the same shape the rest of this module's error types follow.
package errors

import (
	"fmt"
)

// WriteConflictError is returned by Prewrite when a committed version of the
// key already exists at or after the transaction's start_ts.
type WriteConflictError struct {
	Key     string
	StartTS uint64
	WriteTS uint64
}

func (e *WriteConflictError) Error() string {
	return fmt.Sprintf("write conflict on key %q: committed write at ts %d >= start_ts %d", e.Key, e.WriteTS, e.StartTS)
}

// KeyLockedError is returned by Prewrite when another in-flight transaction
// already holds a lock on the key.
type KeyLockedError struct {
	Key     string
	LockTS  uint64
	Primary string
}

func (e *KeyLockedError) Error() string {
	return fmt.Sprintf("key %q locked by transaction %d (primary %q)", e.Key, e.LockTS, e.Primary)
}

// LockNotFoundError is returned by Commit on the primary key when its own
// lock is gone, meaning a concurrent cleanup already rolled it back.
type LockNotFoundError struct {
	Key     string
	StartTS uint64
}

func (e *LockNotFoundError) Error() string {
	return fmt.Sprintf("lock not found for key %q at start_ts %d", e.Key, e.StartTS)
}

// TimeoutError is returned by the client after exhausting its retry budget
// against the Oracle or the Storage Get RPC.
type TimeoutError struct {
	Op       string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %d attempts", e.Op, e.Attempts)
}

// TransportError wraps an opaque failure surfaced by the RPC transport
// (dropped connection, fault injection, serialization failure). It is
// retried by the client the same way any other transport failure is.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
