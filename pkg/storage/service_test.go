package storage_test

import (
	"bytes"
	"sync"
	"testing"
	"time"

	kverrors "github.com/kvperc/percolator/pkg/errors"
	"github.com/kvperc/percolator/pkg/oracle"
	"github.com/kvperc/percolator/pkg/storage"
)

func newTestService(t *testing.T) (*storage.Service, *oracle.Oracle) {
	t.Helper()
	o := oracle.New(nil)
	opts := storage.DefaultOptions()
	opts.CleanupBackoff = 5 * time.Millisecond
	opts.MaxLockTTL = 2
	return storage.New(o, nil, opts), o
}

func mustTS(t *testing.T, o *oracle.Oracle) uint64 {
	t.Helper()
	ts, err := o.GetTimestamp()
	if err != nil {
		t.Fatalf("GetTimestamp: %v", err)
	}
	return ts
}

func TestGetOnNeverWrittenKeyReturnsEmpty(t *testing.T) {
	svc, o := newTestService(t)
	startTS := mustTS(t, o)

	v, err := svc.Get(startTS, []byte("ghost"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(v) != 0 {
		t.Fatalf("Get on never-written key = %q, want empty", v)
	}
}

func TestPrewriteThenCommitMakesValueVisible(t *testing.T) {
	svc, o := newTestService(t)
	startTS := mustTS(t, o)

	key := []byte("k")
	if err := svc.Prewrite(startTS, storage.Write{Key: key, Value: []byte("v1")}, key); err != nil {
		t.Fatalf("Prewrite: %v", err)
	}

	commitTS := mustTS(t, o)
	if err := svc.Commit(true, startTS, commitTS, key); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	readTS := mustTS(t, o)
	v, err := svc.Get(readTS, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(v, []byte("v1")) {
		t.Fatalf("Get after commit = %q, want v1", v)
	}
}

func TestSnapshotIsolationHidesLaterCommits(t *testing.T) {
	svc, o := newTestService(t)

	key := []byte("k")
	t0Start := mustTS(t, o)
	if err := svc.Prewrite(t0Start, storage.Write{Key: key, Value: []byte("v0")}, key); err != nil {
		t.Fatalf("Prewrite T0: %v", err)
	}
	t0Commit := mustTS(t, o)
	if err := svc.Commit(true, t0Start, t0Commit, key); err != nil {
		t.Fatalf("Commit T0: %v", err)
	}

	t1Start := mustTS(t, o)

	t2Start := mustTS(t, o)
	if err := svc.Prewrite(t2Start, storage.Write{Key: key, Value: []byte("v2")}, key); err != nil {
		t.Fatalf("Prewrite T2: %v", err)
	}
	t2Commit := mustTS(t, o)
	if err := svc.Commit(true, t2Start, t2Commit, key); err != nil {
		t.Fatalf("Commit T2: %v", err)
	}

	v, err := svc.Get(t1Start, key)
	if err != nil {
		t.Fatalf("Get at t1Start: %v", err)
	}
	if !bytes.Equal(v, []byte("v0")) {
		t.Fatalf("T1 snapshot read = %q, want v0 (must not see T2's later commit)", v)
	}
}

func TestPrewriteWriteConflict(t *testing.T) {
	svc, o := newTestService(t)
	key := []byte("k")

	t0Start := mustTS(t, o)
	if err := svc.Prewrite(t0Start, storage.Write{Key: key, Value: []byte("v0")}, key); err != nil {
		t.Fatalf("Prewrite T0: %v", err)
	}
	t0Commit := mustTS(t, o)
	if err := svc.Commit(true, t0Start, t0Commit, key); err != nil {
		t.Fatalf("Commit T0: %v", err)
	}

	staleStart := t0Start // older than the committed write
	err := svc.Prewrite(staleStart, storage.Write{Key: key, Value: []byte("stale")}, key)
	if err == nil {
		t.Fatalf("Prewrite at a start_ts predating a committed write should fail")
	}
	if _, ok := err.(*kverrors.WriteConflictError); !ok {
		t.Fatalf("error = %T, want *errors.WriteConflictError", err)
	}
}

func TestPrewriteKeyLockedBySecondWriter(t *testing.T) {
	svc, o := newTestService(t)
	key := []byte("k")

	t1Start := mustTS(t, o)
	if err := svc.Prewrite(t1Start, storage.Write{Key: key, Value: []byte("v1")}, key); err != nil {
		t.Fatalf("Prewrite T1: %v", err)
	}

	t2Start := mustTS(t, o)
	err := svc.Prewrite(t2Start, storage.Write{Key: key, Value: []byte("v2")}, key)
	if err == nil {
		t.Fatalf("second concurrent Prewrite on same key should fail")
	}
	if _, ok := err.(*kverrors.KeyLockedError); !ok {
		t.Fatalf("error = %T, want *errors.KeyLockedError", err)
	}
}

func TestCommitPrimaryLockNotFound(t *testing.T) {
	svc, o := newTestService(t)
	key := []byte("k")
	startTS := mustTS(t, o)
	commitTS := mustTS(t, o)

	// No prewrite happened, so the primary's own lock can't be found.
	err := svc.Commit(true, startTS, commitTS, key)
	if err == nil {
		t.Fatalf("Commit without a prior Prewrite should fail")
	}
	if _, ok := err.(*kverrors.LockNotFoundError); !ok {
		t.Fatalf("error = %T, want *errors.LockNotFoundError", err)
	}
}

func TestExpiredLockIsCleanedUpAndRolledBack(t *testing.T) {
	svc, o := newTestService(t)
	key := []byte("k")

	startTS := mustTS(t, o)
	if err := svc.Prewrite(startTS, storage.Write{Key: key, Value: []byte("abandoned")}, key); err != nil {
		t.Fatalf("Prewrite: %v", err)
	}
	// Never committed: simulate a crashed client's abandoned lock. Advance
	// the clock past MaxLockTTL so the lock is seen as stale.
	for i := uint64(0); i < 5; i++ {
		mustTS(t, o)
	}

	readTS := mustTS(t, o)
	v, err := svc.Get(readTS, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(v) != 0 {
		t.Fatalf("Get after rollback of abandoned lock = %q, want empty", v)
	}
}

func TestExpiredLockIsRolledForwardWhenPrimaryCommitted(t *testing.T) {
	svc, o := newTestService(t)

	primary := []byte("p")
	secondary := []byte("s")
	startTS := mustTS(t, o)

	if err := svc.Prewrite(startTS, storage.Write{Key: primary, Value: []byte("pv")}, primary); err != nil {
		t.Fatalf("Prewrite primary: %v", err)
	}
	if err := svc.Prewrite(startTS, storage.Write{Key: secondary, Value: []byte("sv")}, primary); err != nil {
		t.Fatalf("Prewrite secondary: %v", err)
	}

	commitTS := mustTS(t, o)
	if err := svc.Commit(true, startTS, commitTS, primary); err != nil {
		t.Fatalf("Commit primary: %v", err)
	}
	// Secondary commit never happens (simulating commit_secondaries_fail).

	for i := uint64(0); i < 5; i++ {
		mustTS(t, o)
	}

	readTS := mustTS(t, o)
	v, err := svc.Get(readTS, secondary)
	if err != nil {
		t.Fatalf("Get secondary: %v", err)
	}
	if !bytes.Equal(v, []byte("sv")) {
		t.Fatalf("Get secondary after roll-forward = %q, want sv", v)
	}
}

func TestConcurrentPrewritesOnSameKeyOnlyOneWins(t *testing.T) {
	svc, o := newTestService(t)
	key := []byte("k")

	const writers = 20
	var wg sync.WaitGroup
	successes := make([]bool, writers)

	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			startTS := mustTS(t, o)
			err := svc.Prewrite(startTS, storage.Write{Key: key, Value: []byte("v")}, key)
			successes[i] = err == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("concurrent Prewrite on one key: %d writers succeeded, want exactly 1", count)
	}
}
