package wire

import "sync"

// bufferPool reuses the scratch buffers used to encode frame headers, the
// same allocation-avoidance idiom the teacher's
// WAL package used for its header/serialization buffers.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, 0, headerSize+4096)
		return &buf
	},
}

func acquireBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

func releaseBuffer(buf *[]byte) {
	*buf = (*buf)[:0]
	bufferPool.Put(buf)
}
