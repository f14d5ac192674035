package errors

import "testing"

func TestErrors_ErrorMethod(t *testing.T) {
	errs := []error{
		&WriteConflictError{Key: "k1", StartTS: 5, WriteTS: 6},
		&KeyLockedError{Key: "k1", LockTS: 4, Primary: "k0"},
		&LockNotFoundError{Key: "k1", StartTS: 5},
		&TimeoutError{Op: "get_timestamp", Attempts: 3},
		&TransportError{Op: "get", Err: errString("connection reset")},
	}

	for _, e := range errs {
		if e.Error() == "" {
			t.Errorf("Error() returned empty string for %T", e)
		}
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	inner := errString("boom")
	e := &TransportError{Op: "prewrite", Err: inner}
	if e.Unwrap() != inner {
		t.Errorf("Unwrap() = %v, want %v", e.Unwrap(), inner)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
