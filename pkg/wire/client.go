package wire

import (
	"net"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	kverrors "github.com/kvperc/percolator/pkg/errors"
)

// Client is the Transaction Client's handle onto one in-process connection
// carrying Oracle and Storage RPCs. Calls are synchronous: one frame out,
// one frame back. The server echoes the request's sequence number, but
// the Client does not compare it: it never pipelines requests on its own
// connection, so the next frame read is taken as the reply.
type Client struct {
	conn  net.Conn
	fault *FaultInjector
	seq   atomic.Uint64
}

func newClient(conn net.Conn, fault *FaultInjector) *Client {
	return &Client{conn: conn, fault: fault}
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetTimestamp calls the Oracle's get_timestamp RPC.
func (c *Client) GetTimestamp() (uint64, error) {
	resp, err := c.call(&request{Method: methodGetTimestamp})
	if err != nil {
		return 0, err
	}
	return resp.TS, nil
}

// Get calls Storage.get.
func (c *Client) Get(startTS uint64, key []byte) ([]byte, error) {
	resp, err := c.call(&request{Method: methodGet, StartTS: startTS, Key: key})
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// Prewrite calls Storage.prewrite.
func (c *Client) Prewrite(startTS uint64, key, value, primary []byte) error {
	_, err := c.call(&request{Method: methodPrewrite, StartTS: startTS, Key: key, Value: value, Primary: primary})
	return err
}

// Commit calls Storage.commit. When isPrimary is false and this client's
// FaultInjector has commit_secondaries_fail armed, the RPC never reaches
// the wire at all -- it fails locally, the same observable effect as a
// dropped packet.
func (c *Client) Commit(isPrimary bool, startTS, commitTS uint64, key []byte) error {
	if !isPrimary && c.fault.secondaryCommitsShouldDrop() {
		return &kverrors.TransportError{Op: "commit", Err: errSecondaryCommitDropped}
	}
	_, err := c.call(&request{Method: methodCommit, IsPrimary: isPrimary, StartTS: startTS, CommitTS: commitTS, Key: key})
	return err
}

func (c *Client) call(req *request) (*response, error) {
	seq := c.seq.Add(1)

	payload, err := encodeMessage(req)
	if err != nil {
		return nil, errors.Wrap(&kverrors.TransportError{Op: "encode", Err: err}, "wire: client call")
	}

	compressed, kind := maybeCompress(payload)
	if err := writeFrame(c.conn, &frame{Seq: seq, Kind: kind, Payload: compressed}); err != nil {
		return nil, errors.Wrap(&kverrors.TransportError{Op: "write", Err: err}, "wire: client call")
	}

	f, err := readFrame(c.conn)
	if err != nil {
		return nil, errors.Wrap(&kverrors.TransportError{Op: "read", Err: err}, "wire: client call")
	}

	respPayload, err := maybeDecompress(f.Payload, f.Kind)
	if err != nil {
		return nil, errors.Wrap(&kverrors.TransportError{Op: "decompress", Err: err}, "wire: client call")
	}

	var resp response
	if err := decodeMessage(respPayload, &resp); err != nil {
		return nil, errors.Wrap(&kverrors.TransportError{Op: "decode", Err: err}, "wire: client call")
	}

	if typedErr := decodeResponseError(&resp); typedErr != nil {
		return nil, errors.Wrap(typedErr, "wire: rpc error")
	}

	return &resp, nil
}

var errSecondaryCommitDropped = plainError("wire: secondary commit dropped by fault injector")
