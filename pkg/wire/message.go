package wire

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	kverrors "github.com/kvperc/percolator/pkg/errors"
)

// method identifies which RPC a request carries. The payload itself has no
// other routing information -- this is a request/response transport, not a
// service-discovery fabric.
type method uint8

const (
	methodGetTimestamp method = iota + 1
	methodGet
	methodPrewrite
	methodCommit
)

// request is the wire representation of every RPC this module exposes.
// Unused fields for a given method are left zero.
type request struct {
	Method    method
	StartTS   uint64
	CommitTS  uint64
	Key       []byte
	Value     []byte
	Primary   []byte
	IsPrimary bool
}

// errKind tags which pkg/errors struct, if any, a response's error
// reconstructs to on the client side.
type errKind uint8

const (
	errNone errKind = iota
	errWriteConflict
	errKeyLocked
	errLockNotFound
	errTransport
)

// response is the wire representation of every RPC's result.
type response struct {
	Value []byte
	TS    uint64

	ErrKind    errKind
	ErrMessage string
	ErrKey     string
	ErrStartTS uint64
	ErrWriteTS uint64
	ErrLockTS  uint64
	ErrPrimary string
}

func encodeResponseError(r *response, err error) {
	switch e := err.(type) {
	case *kverrors.WriteConflictError:
		r.ErrKind = errWriteConflict
		r.ErrKey, r.ErrStartTS, r.ErrWriteTS = e.Key, e.StartTS, e.WriteTS
	case *kverrors.KeyLockedError:
		r.ErrKind = errKeyLocked
		r.ErrKey, r.ErrLockTS, r.ErrPrimary = e.Key, e.LockTS, e.Primary
	case *kverrors.LockNotFoundError:
		r.ErrKind = errLockNotFound
		r.ErrKey, r.ErrStartTS = e.Key, e.StartTS
	default:
		r.ErrKind = errTransport
		r.ErrMessage = err.Error()
	}
}

// decodeResponseError reconstructs the typed pkg/errors value a response
// carries, or nil if the call succeeded.
func decodeResponseError(r *response) error {
	switch r.ErrKind {
	case errNone:
		return nil
	case errWriteConflict:
		return &kverrors.WriteConflictError{Key: r.ErrKey, StartTS: r.ErrStartTS, WriteTS: r.ErrWriteTS}
	case errKeyLocked:
		return &kverrors.KeyLockedError{Key: r.ErrKey, LockTS: r.ErrLockTS, Primary: r.ErrPrimary}
	case errLockNotFound:
		return &kverrors.LockNotFoundError{Key: r.ErrKey, StartTS: r.ErrStartTS}
	default:
		return &kverrors.TransportError{Op: "wire", Err: plainError(r.ErrMessage)}
	}
}

type plainError string

func (e plainError) Error() string { return string(e) }

// encodeMessage/decodeMessage carry request/response structs over the wire
// as BSON documents -- the same serialization the teacher's storage engine
// uses for its row values, repurposed here for RPC payloads instead of
// on-disk documents.
func encodeMessage(v interface{}) ([]byte, error) {
	return bson.Marshal(v)
}

func decodeMessage(data []byte, v interface{}) error {
	return bson.Unmarshal(data, v)
}
