// Package storage implements the Percolator transactional protocol over a
// versioned KV table (pkg/kv): Get, Prewrite, Commit, and the lock-cleanup
// roll-forward/roll-back path readers trigger when they meet a stale lock.
package storage

import (
	"sync"
	"sync/atomic"
	"time"

	kverrors "github.com/kvperc/percolator/pkg/errors"
	"github.com/kvperc/percolator/pkg/kv"
	"github.com/kvperc/percolator/pkg/metrics"
)

// TimestampSource is the subset of the oracle's API the storage service
// depends on, to decide whether a lock has outlived MAX_LOCK_TTL.
type TimestampSource interface {
	GetTimestamp() (uint64, error)
}

// Write is one key/value pair a transaction wants to apply.
type Write struct {
	Key   []byte
	Value []byte
}

// Service is the single exclusive region owning a Table: every operation
// below takes tableMu for the duration of each atomic step the protocol
// names, and releases it before any sleep (back_off_maybe_clean_up_lock
// must never sleep holding the mutex, or lock expiration starves).
type Service struct {
	table   *kv.Table
	clock   TimestampSource
	opts    Options
	metrics *metrics.Collector

	tableMu sync.Mutex

	// commitPrimaryFail is the commit_primary_fail fault-injection switch:
	// armed, Commit on the primary key returns an error after inserting the
	// Write entry but before erasing the Lock (§4.2.3, §6.4).
	commitPrimaryFail atomic.Bool
}

// New builds a Service over a fresh Table, driven by clock for lock-TTL
// decisions.
func New(clock TimestampSource, collector *metrics.Collector, opts Options) *Service {
	return &Service{
		table:   kv.NewTable(),
		clock:   clock,
		opts:    opts,
		metrics: collector,
	}
}

// ArmCommitPrimaryFailure arms the commit_primary_fail fault-injection
// hook for the next primary commit only.
func (s *Service) ArmCommitPrimaryFailure() {
	s.commitPrimaryFail.Store(true)
}

// Get implements §4.2.1: snapshot read at startTS, cleaning up stale locks
// it encounters along the way.
func (s *Service) Get(startTS uint64, key []byte) ([]byte, error) {
	began := time.Now()
	for {
		s.tableMu.Lock()
		_, _, locked := s.table.ReadLock(key, kv.NoLowerBound, startTS)
		s.tableMu.Unlock()

		if locked {
			s.backOffMaybeCleanUpLock(startTS, key)
			continue
		}

		s.tableMu.Lock()
		writeStartTS, _, found := s.table.ReadWrite(key, kv.NoLowerBound, startTS)
		if !found {
			s.tableMu.Unlock()
			s.record("get", "ok", began)
			return nil, nil
		}

		value, _, ok := s.table.ReadData(key, writeStartTS, writeStartTS)
		s.tableMu.Unlock()
		if !ok {
			// I1 guarantees this can't happen; treat defensively as empty.
			value = nil
		}
		s.record("get", "ok", began)
		return value, nil
	}
}

// Prewrite implements §4.2.2.
func (s *Service) Prewrite(startTS uint64, w Write, primary []byte) error {
	began := time.Now()
	s.tableMu.Lock()
	defer s.tableMu.Unlock()

	if _, writeTS, ok := s.table.ReadWrite(w.Key, startTS, kv.NoUpperBound); ok {
		s.record("prewrite", "write_conflict", began)
		return &kverrors.WriteConflictError{Key: string(w.Key), StartTS: startTS, WriteTS: writeTS}
	}

	if primaryOfLock, lockTS, ok := s.table.ReadLock(w.Key, kv.NoLowerBound, kv.NoUpperBound); ok {
		s.record("prewrite", "key_locked", began)
		return &kverrors.KeyLockedError{Key: string(w.Key), LockTS: lockTS, Primary: string(primaryOfLock)}
	}

	s.table.WriteData(w.Key, startTS, w.Value)
	s.table.WriteLock(w.Key, startTS, primary)
	s.record("prewrite", "ok", began)
	return nil
}

// Commit implements §4.2.3. isPrimary selects the LockNotFound check; the
// commit_primary_fail hook fires between steps 2 and 3 when isPrimary and
// the switch is armed.
func (s *Service) Commit(isPrimary bool, startTS, commitTS uint64, key []byte) error {
	began := time.Now()
	s.tableMu.Lock()
	defer s.tableMu.Unlock()

	if isPrimary {
		if _, _, ok := s.table.ReadLock(key, startTS, startTS); !ok {
			s.record("commit", "lock_not_found", began)
			return &kverrors.LockNotFoundError{Key: string(key), StartTS: startTS}
		}
	}

	s.table.WriteWrite(key, commitTS, startTS)

	if isPrimary && s.commitPrimaryFail.CompareAndSwap(true, false) {
		s.record("commit", "fault_injected", began)
		return &kverrors.TransportError{Op: "commit", Err: errCommitPrimaryFault}
	}

	s.table.EraseLock(key, commitTS)
	s.record("commit", "ok", began)
	return nil
}

// backOffMaybeCleanUpLock implements §4.2.4. It re-reads the lock under a
// fresh acquisition of tableMu (the mutex must never be held across the
// sleep) and performs at most one roll-forward/roll-back step per call.
func (s *Service) backOffMaybeCleanUpLock(startTS uint64, key []byte) {
	s.tableMu.Lock()
	primary, lockTS, ok := s.table.ReadLock(key, kv.NoLowerBound, startTS)
	if !ok {
		s.tableMu.Unlock()
		s.recordCleanup("already_clean")
		return
	}

	now, err := s.clock.GetTimestamp()
	if err != nil {
		// Can't judge TTL without a timestamp; back off and let the caller
		// retry rather than guessing.
		s.tableMu.Unlock()
		s.recordCleanup("back_off")
		time.Sleep(s.opts.CleanupBackoff)
		return
	}

	if now-lockTS <= s.opts.MaxLockTTL {
		s.tableMu.Unlock()
		s.recordCleanup("back_off")
		time.Sleep(s.opts.CleanupBackoff)
		return
	}

	if _, _, primaryStillLocked := s.table.ReadLock(primary, lockTS, lockTS); primaryStillLocked {
		// Uncommitted: roll back every key this transaction touched.
		for _, k := range s.table.UncommittedKeys(lockTS, primary) {
			s.table.EraseData(k.UserKey, lockTS)
			s.table.EraseLock(k.UserKey, lockTS)
		}
		s.tableMu.Unlock()
		s.recordCleanup("roll_back")
		return
	}

	// Primary's lock is gone: it committed. Roll forward every secondary.
	commitTS, found := s.table.CommitTSOf(lockTS, primary)
	if !found {
		// Shouldn't happen per I3, but there's nothing safe to do without it.
		s.tableMu.Unlock()
		s.recordCleanup("already_clean")
		return
	}
	for _, k := range s.table.UncommittedKeys(lockTS, primary) {
		s.table.WriteWrite(k.UserKey, commitTS, lockTS)
		s.table.EraseLock(k.UserKey, commitTS)
	}
	s.tableMu.Unlock()
	s.recordCleanup("roll_forward")
}

func (s *Service) record(op, outcome string, began time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.StorageOp(op, outcome, time.Since(began).Seconds())
}

func (s *Service) recordCleanup(action string) {
	if s.metrics == nil {
		return
	}
	s.metrics.LockCleanup(action)
}

var errCommitPrimaryFault = plainError("storage: commit_primary_fail fault injected")

type plainError string

func (e plainError) Error() string { return string(e) }
