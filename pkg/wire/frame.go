// Package wire is the minimal in-process transport that carries Oracle and
// Storage RPCs between a Transaction Client and the services it drives. It
// frames each request/response with the same 24-byte header and CRC32-
// Castagnoli checksum discipline the teacher repository used for its
// write-ahead log entries, repurposed here as wire framing rather than
// durable logging: the header shape and checksum helper are carried over
// verbatim, only the meaning of "entry type" changes (raw vs. compressed
// payload instead of insert/update/delete/begin/commit/abort).
package wire

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

const (
	headerSize      = 24
	protocolVersion = 1

	frameMagic uint32 = 0xFEEDC0DE
)

// payloadKind occupies the header's message-type byte, distinguishing a
// raw BSON payload from one compressed with zstd.
type payloadKind uint8

const (
	payloadRaw        payloadKind = 1
	payloadCompressed payloadKind = 2
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

func checksum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// frameHeader is the 24-byte fixed header preceding every frame's payload:
// magic(4) version(1) kind(1) reserved(2) seq(8) payloadLen(4) crc32(4).
type frameHeader struct {
	Magic      uint32
	Version    uint8
	Kind       payloadKind
	Reserved   uint16
	Seq        uint64
	PayloadLen uint32
	CRC32      uint32
}

func (h *frameHeader) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = uint8(h.Kind)
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.Seq)
	binary.LittleEndian.PutUint32(buf[16:20], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[20:24], h.CRC32)
}

func (h *frameHeader) decode(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.Kind = payloadKind(buf[5])
	h.Reserved = binary.LittleEndian.Uint16(buf[6:8])
	h.Seq = binary.LittleEndian.Uint64(buf[8:16])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[16:20])
	h.CRC32 = binary.LittleEndian.Uint32(buf[20:24])
}

// frame is one length-prefixed, checksummed unit on the wire.
type frame struct {
	Seq     uint64
	Kind    payloadKind
	Payload []byte
}

func writeFrame(w io.Writer, f *frame) error {
	h := frameHeader{
		Magic:      frameMagic,
		Version:    protocolVersion,
		Kind:       f.Kind,
		Seq:        f.Seq,
		PayloadLen: uint32(len(f.Payload)),
		CRC32:      checksum(f.Payload),
	}

	buf := acquireBuffer()
	defer releaseBuffer(buf)
	*buf = append((*buf)[:0], make([]byte, headerSize)...)
	h.encode(*buf)

	if _, err := w.Write(*buf); err != nil {
		return err
	}
	if len(f.Payload) == 0 {
		return nil
	}
	_, err := w.Write(f.Payload)
	return err
}

func readFrame(r io.Reader) (*frame, error) {
	headerBuf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, err
	}

	var h frameHeader
	h.decode(headerBuf)
	if h.Magic != frameMagic {
		return nil, errInvalidMagic
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	if !validChecksum(payload, h.CRC32) {
		return nil, errChecksumMismatch
	}

	return &frame{Seq: h.Seq, Kind: h.Kind, Payload: payload}, nil
}

func validChecksum(data []byte, want uint32) bool {
	return checksum(data) == want
}
