package wire

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// compressThreshold is the payload size at or above which a frame is
// transparently zstd-compressed before framing. Chosen generously above typical test
// payloads so small RPCs (a handful of bytes) stay uncompressed.
const compressThreshold = 256

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder

	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func getEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	})
	return encoder
}

func getDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil)
	})
	return decoder
}

// maybeCompress compresses payload when it crosses compressThreshold,
// reporting the frame kind the caller should advertise.
func maybeCompress(payload []byte) ([]byte, payloadKind) {
	if len(payload) < compressThreshold {
		return payload, payloadRaw
	}
	compressed := getEncoder().EncodeAll(payload, make([]byte, 0, len(payload)))
	return compressed, payloadCompressed
}

// maybeDecompress reverses maybeCompress based on the frame's advertised
// kind.
func maybeDecompress(payload []byte, kind payloadKind) ([]byte, error) {
	if kind != payloadCompressed {
		return payload, nil
	}
	return getDecoder().DecodeAll(payload, nil)
}
