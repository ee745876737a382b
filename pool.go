package mqtt3

import (
	"io"
	"slices"
	"sync"
)

const (
	// maxPooledBuffer keeps oversized buffers out of the pool.
	maxPooledBuffer = 65536

	// fillChunk bounds how far a packet body grows ahead of the bytes
	// actually received.
	fillChunk = 32 * 1024
)

// Buffer pools for reducing allocations in hot paths.
var (
	// bytesReaderPool for packet decoding
	bytesReaderPool = sync.Pool{
		New: func() any {
			return &bytesReader{}
		},
	}

	// bytesBufferPool for packet bodies in both directions
	bytesBufferPool = sync.Pool{
		New: func() any {
			return &bytesBuffer{}
		},
	}
)

// bytesReader reads a packet body that is already in memory.
type bytesReader struct {
	data []byte
	pos  int
}

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// Len returns the number of unread bytes.
func (r *bytesReader) Len() int {
	return len(r.data) - r.pos
}

// bytesBuffer is a simple append-only buffer.
type bytesBuffer struct {
	data []byte
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// fill replaces the buffer contents with exactly n bytes read from r. The
// buffer grows at most fillChunk bytes past what has arrived, so a forged
// remaining length cannot allocate memory the peer never sends.
func (b *bytesBuffer) fill(r io.Reader, n int) ([]byte, error) {
	b.data = b.data[:0]
	for len(b.data) < n {
		start := len(b.data)
		end := start + min(n-start, fillChunk)
		b.data = slices.Grow(b.data, end-start)[:end]

		if _, err := io.ReadFull(r, b.data[start:end]); err != nil {
			b.data = b.data[:start]
			return nil, err
		}
	}
	return b.data, nil
}

// getBytesReader returns a pooled bytesReader.
func getBytesReader(data []byte) *bytesReader {
	r := bytesReaderPool.Get().(*bytesReader)
	r.data = data
	r.pos = 0
	return r
}

// putBytesReader returns a bytesReader to the pool.
func putBytesReader(r *bytesReader) {
	if r == nil {
		return
	}
	r.data = nil
	r.pos = 0
	bytesReaderPool.Put(r)
}

// getBytesBuffer returns a pooled bytesBuffer.
func getBytesBuffer() *bytesBuffer {
	b := bytesBufferPool.Get().(*bytesBuffer)
	b.data = b.data[:0]
	return b
}

// putBytesBuffer returns a bytesBuffer to the pool.
func putBytesBuffer(b *bytesBuffer) {
	if b == nil {
		return
	}
	if cap(b.data) <= maxPooledBuffer {
		b.data = b.data[:0]
		bytesBufferPool.Put(b)
	}
}
