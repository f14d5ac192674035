package wire_test

import (
	"bytes"
	"errors"
	"testing"

	kverrors "github.com/kvperc/percolator/pkg/errors"
	"github.com/kvperc/percolator/pkg/metrics"
	"github.com/kvperc/percolator/pkg/oracle"
	"github.com/kvperc/percolator/pkg/storage"
	"github.com/kvperc/percolator/pkg/wire"
)

func newTestListener() *wire.Listener {
	o := oracle.New(metrics.NewCollector())
	svc := storage.New(o, metrics.NewCollector(), storage.DefaultOptions())
	return wire.NewListener(wire.Services{Oracle: o, Storage: svc})
}

func TestGetTimestampRoundTrip(t *testing.T) {
	l := newTestListener()
	client := l.Dial(nil)
	defer client.Close()

	ts1, err := client.GetTimestamp()
	if err != nil {
		t.Fatalf("GetTimestamp: %v", err)
	}
	ts2, err := client.GetTimestamp()
	if err != nil {
		t.Fatalf("GetTimestamp: %v", err)
	}
	if ts2 <= ts1 {
		t.Fatalf("GetTimestamp not monotonic over the wire: %d then %d", ts1, ts2)
	}
}

func TestPrewriteAndGetRoundTrip(t *testing.T) {
	l := newTestListener()
	client := l.Dial(nil)
	defer client.Close()

	startTS, _ := client.GetTimestamp()
	key := []byte("k")
	if err := client.Prewrite(startTS, key, bytes.Repeat([]byte("x"), 1024), key); err != nil {
		t.Fatalf("Prewrite: %v", err)
	}

	commitTS, _ := client.GetTimestamp()
	if err := client.Commit(true, startTS, commitTS, key); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	readTS, _ := client.GetTimestamp()
	v, err := client.Get(readTS, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := bytes.Repeat([]byte("x"), 1024)
	if !bytes.Equal(v, want) {
		t.Fatalf("Get returned %d bytes, want %d matching bytes", len(v), len(want))
	}
}

func TestTypedErrorSurvivesTheWire(t *testing.T) {
	l := newTestListener()
	client := l.Dial(nil)
	defer client.Close()

	startTS, _ := client.GetTimestamp()
	commitTS, _ := client.GetTimestamp()

	err := client.Commit(true, startTS, commitTS, []byte("never-prewritten"))
	if err == nil {
		t.Fatalf("Commit without Prewrite should fail")
	}

	var lockNotFound *kverrors.LockNotFoundError
	if !errors.As(err, &lockNotFound) {
		t.Fatalf("error = %v (%T), want *errors.LockNotFoundError reachable via errors.As", err, err)
	}
}

func TestSecondaryCommitFaultInjectorDropsLocally(t *testing.T) {
	l := newTestListener()
	fault := wire.NewFaultInjector()
	client := l.Dial(fault)
	defer client.Close()

	fault.ArmSecondaryCommitFailure()

	startTS, _ := client.GetTimestamp()
	commitTS, _ := client.GetTimestamp()

	err := client.Commit(false, startTS, commitTS, []byte("secondary-key"))
	if err == nil {
		t.Fatalf("secondary Commit with fault armed should fail")
	}

	var transportErr *kverrors.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v (%T), want *errors.TransportError", err, err)
	}
}
