// Package txnclient implements the Transaction Client: session state over
// one Percolator transaction (start_ts and a buffered write set) and the
// begin/set/get/commit orchestration of the two-phase commit protocol
// against the wire transport.
package txnclient

import (
	"context"
	"errors"

	"github.com/google/uuid"

	kverrors "github.com/kvperc/percolator/pkg/errors"
	"github.com/kvperc/percolator/pkg/wire"
)

// write is one buffered (key, value) pair awaiting prewrite.
type write struct {
	Key   []byte
	Value []byte
}

// Transaction is a client-side handle on one Percolator transaction. It is
// not safe for concurrent use by multiple goroutines -- like the protocol
// it implements, one transaction is one logical thread of control.
type Transaction struct {
	client    *wire.Client
	startTS   uint64
	sessionID uuid.UUID // log/metric correlation only; never sent over the wire

	writes   []write
	writeIdx map[string]int // UserKey -> index into writes, for Set's in-place dedupe
}

// timestampFetcher is the narrow capability Begin needs from a timestamp
// source: satisfied by *wire.Client (the production path) and by test
// doubles exercising the retry discipline in isolation.
type timestampFetcher interface {
	GetTimestamp() (uint64, error)
}

// Begin fetches a start_ts from the Oracle (via client) and mints a fresh
// session id, starting a new transaction.
func Begin(ctx context.Context, client *wire.Client) (*Transaction, error) {
	sessionID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	startTS, err := BeginTimestamp(ctx, client)
	if err != nil {
		return nil, err
	}

	return &Transaction{
		client:    client,
		startTS:   startTS,
		sessionID: sessionID,
		writeIdx:  make(map[string]int),
	}, nil
}

// BeginTimestamp runs the retry-governed get_timestamp fetch that Begin
// performs against any timestampFetcher, without requiring a full wire
// connection. It exists so the retry/backoff discipline can be exercised
// directly against an Oracle (or a fault-injecting stand-in) in tests.
func BeginTimestamp(ctx context.Context, clock timestampFetcher) (uint64, error) {
	return withRetry(ctx, "get_timestamp", clock.GetTimestamp)
}

// SessionID returns the transaction's debug session id, for log/metric
// correlation only.
func (t *Transaction) SessionID() uuid.UUID {
	return t.sessionID
}

// StartTS returns the transaction's snapshot timestamp.
func (t *Transaction) StartTS() uint64 {
	return t.startTS
}

// Set buffers key->value for this transaction's eventual commit. Setting
// the same key twice overwrites the previously buffered value in place,
// so a transaction never prewrites the same key twice (§9 open question).
func (t *Transaction) Set(key, value []byte) {
	k := string(key)
	if idx, ok := t.writeIdx[k]; ok {
		t.writes[idx].Value = value
		return
	}
	t.writeIdx[k] = len(t.writes)
	t.writes = append(t.writes, write{Key: key, Value: value})
}

// Get reads key as of this transaction's start_ts, retrying transport
// errors with exponential backoff. It does not see this transaction's own
// buffered writes (read-your-writes is an explicit non-goal).
func (t *Transaction) Get(ctx context.Context, key []byte) ([]byte, error) {
	return withRetry(ctx, "get", func() ([]byte, error) {
		return t.client.Get(t.startTS, key)
	})
}

// Commit executes the two-phase commit protocol (§4.4): prewrite every
// buffered write with writes[0] as primary, fetch a commit_ts, commit the
// primary, then best-effort commit the secondaries. It returns (true, nil)
// on success, (false, nil) on a clean abort, and a non-nil error only for
// transport-level failures surfaced to the caller (e.g. exhausting the
// commit_ts retry budget, or a fault-injection-visible primary-commit
// error that is not a protocol-level rejection).
func (t *Transaction) Commit(ctx context.Context) (bool, error) {
	if len(t.writes) == 0 {
		return true, nil
	}

	primary := t.writes[0]
	secondaries := t.writes[1:]

	if err := t.client.Prewrite(t.startTS, primary.Key, primary.Value, primary.Key); err != nil {
		return false, nil
	}
	for _, w := range secondaries {
		if err := t.client.Prewrite(t.startTS, w.Key, w.Value, primary.Key); err != nil {
			return false, nil
		}
	}

	commitTS, err := withRetry(ctx, "get_timestamp", func() (uint64, error) {
		return t.client.GetTimestamp()
	})
	if err != nil {
		return false, err
	}

	if err := t.client.Commit(true, t.startTS, commitTS, primary.Key); err != nil {
		var lockNotFound *kverrors.LockNotFoundError
		if errors.As(err, &lockNotFound) {
			return false, nil
		}
		// A fault-injection-visible or otherwise opaque failure here is
		// surfaced rather than silently folded into ok(false): the caller
		// genuinely doesn't know whether the primary committed.
		return false, err
	}

	for _, w := range secondaries {
		_ = t.client.Commit(false, t.startTS, commitTS, w.Key) // best-effort; cleanup finishes stragglers
	}

	return true, nil
}
