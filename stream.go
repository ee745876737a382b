package mqtt3

import (
	"errors"
	"io"
	"sync"
)

// ErrStreamClosed is returned when offering data to a closed StreamBuffer.
var ErrStreamClosed = errors.New("mqtt3: stream closed")

// StreamBuffer turns pushed chunks of bytes into a blocking io.Reader.
//
// Producers call Offer (or Write) from any goroutine as data arrives; a single
// consumer reads with ordinary sequential reads. Read blocks until at least
// one byte is buffered or the buffer is closed. Bytes buffered before Close
// are still returned, then Read reports io.EOF or the close error.
type StreamBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    ring[byte]
	closed bool
	err    error
}

// NewStreamBuffer creates an empty, open stream buffer.
func NewStreamBuffer() *StreamBuffer {
	s := &StreamBuffer{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Offer appends a copy of p and wakes a blocked reader.
func (s *StreamBuffer) Offer(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if len(p) == 0 {
		return nil
	}

	s.buf.push(p...)
	s.cond.Signal()
	return nil
}

// Write implements io.Writer on top of Offer.
func (s *StreamBuffer) Write(p []byte) (int, error) {
	if err := s.Offer(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read blocks until data is available or the buffer is closed, then drains
// up to len(p) bytes.
func (s *StreamBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.buf.Len() == 0 && !s.closed {
		s.cond.Wait()
	}

	if s.buf.Len() == 0 {
		return 0, s.err
	}

	return s.buf.pop(p), nil
}

// Buffered returns the number of bytes waiting to be read.
func (s *StreamBuffer) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Close marks the end of the stream. Readers see io.EOF once drained.
func (s *StreamBuffer) Close() error {
	return s.CloseWithError(nil)
}

// CloseWithError marks the end of the stream. Readers see err once drained;
// a nil err means io.EOF. Only the first close takes effect.
func (s *StreamBuffer) CloseWithError(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if err == nil {
		err = io.EOF
	}
	s.closed = true
	s.err = err
	s.cond.Broadcast()
	return nil
}
