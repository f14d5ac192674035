package wire

import (
	"io"
	"net"

	"github.com/kvperc/percolator/pkg/oracle"
	"github.com/kvperc/percolator/pkg/storage"
)

// Services bundles the two RPC targets a Listener dispatches requests to.
type Services struct {
	Oracle  *oracle.Oracle
	Storage *storage.Service
}

// Listener hands out in-process connections backed by net.Pipe, each
// served by its own goroutine -- the minimal transport described in
// §6.2: no service discovery, just a request/response boundary real
// enough to carry actual (de)serialization and an opaque transport error.
type Listener struct {
	services Services
}

// NewListener builds a Listener dispatching to the given services.
func NewListener(services Services) *Listener {
	return &Listener{services: services}
}

// Dial opens a fresh in-process connection and returns a Client bound to
// it. fault, if non-nil, is shared with the returned Client so a test can
// arm commit_secondaries_fail on it.
func (l *Listener) Dial(fault *FaultInjector) *Client {
	clientSide, serverSide := net.Pipe()
	go l.serve(serverSide)
	return newClient(clientSide, fault)
}

func (l *Listener) serve(conn net.Conn) {
	defer conn.Close()
	for {
		f, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				// Connection torn down (e.g. Client closed it); nothing to
				// report to, since there is no out-of-band error channel.
			}
			return
		}

		payload, err := maybeDecompress(f.Payload, f.Kind)
		if err != nil {
			return
		}

		var req request
		if err := decodeMessage(payload, &req); err != nil {
			return
		}

		resp := l.dispatch(&req)

		respPayload, err := encodeMessage(resp)
		if err != nil {
			return
		}
		compressed, kind := maybeCompress(respPayload)
		if err := writeFrame(conn, &frame{Seq: f.Seq, Kind: kind, Payload: compressed}); err != nil {
			return
		}
	}
}

func (l *Listener) dispatch(req *request) *response {
	resp := &response{}

	switch req.Method {
	case methodGetTimestamp:
		ts, err := l.services.Oracle.GetTimestamp()
		if err != nil {
			encodeResponseError(resp, err)
			return resp
		}
		resp.TS = ts

	case methodGet:
		value, err := l.services.Storage.Get(req.StartTS, req.Key)
		if err != nil {
			encodeResponseError(resp, err)
			return resp
		}
		resp.Value = value

	case methodPrewrite:
		err := l.services.Storage.Prewrite(req.StartTS, storage.Write{Key: req.Key, Value: req.Value}, req.Primary)
		if err != nil {
			encodeResponseError(resp, err)
			return resp
		}

	case methodCommit:
		err := l.services.Storage.Commit(req.IsPrimary, req.StartTS, req.CommitTS, req.Key)
		if err != nil {
			encodeResponseError(resp, err)
			return resp
		}
	}

	return resp
}
