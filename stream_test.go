package mqtt3

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamBufferOfferRead(t *testing.T) {
	s := NewStreamBuffer()

	require.NoError(t, s.Offer([]byte("hello ")))
	n, err := s.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 11, s.Buffered())

	buf := make([]byte, 4)
	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hell", string(buf[:n]))

	rest := make([]byte, 32)
	n, err = s.Read(rest)
	require.NoError(t, err)
	assert.Equal(t, "o world", string(rest[:n]))
	assert.Zero(t, s.Buffered())
}

func TestStreamBufferEmptyOffer(t *testing.T) {
	s := NewStreamBuffer()
	require.NoError(t, s.Offer(nil))
	assert.Zero(t, s.Buffered())

	n, err := s.Read(nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestStreamBufferReadBlocks(t *testing.T) {
	s := NewStreamBuffer()

	type result struct {
		data string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, 8)
		n, err := s.Read(buf)
		done <- result{string(buf[:n]), err}
	}()

	select {
	case <-done:
		t.Fatal("read returned before data arrived")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, s.Offer([]byte("abc")))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "abc", r.data)
	case <-time.After(time.Second):
		t.Fatal("read not woken")
	}
}

func TestStreamBufferClose(t *testing.T) {
	t.Run("drains before eof", func(t *testing.T) {
		s := NewStreamBuffer()
		require.NoError(t, s.Offer([]byte("ab")))
		require.NoError(t, s.Close())

		data, err := io.ReadAll(s)
		require.NoError(t, err)
		assert.Equal(t, "ab", string(data))

		assert.ErrorIs(t, s.Offer([]byte("c")), ErrStreamClosed)
		_, err = s.Write([]byte("c"))
		assert.ErrorIs(t, err, ErrStreamClosed)
	})

	t.Run("with error", func(t *testing.T) {
		s := NewStreamBuffer()
		cause := errors.New("socket reset")
		require.NoError(t, s.Offer([]byte("x")))
		require.NoError(t, s.CloseWithError(cause))

		// only the first close counts
		require.NoError(t, s.Close())

		buf := make([]byte, 4)
		n, err := s.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = s.Read(buf)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("wakes blocked reader", func(t *testing.T) {
		s := NewStreamBuffer()
		done := make(chan error, 1)
		go func() {
			_, err := s.Read(make([]byte, 1))
			done <- err
		}()

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, s.Close())

		select {
		case err := <-done:
			assert.Equal(t, io.EOF, err)
		case <-time.After(time.Second):
			t.Fatal("reader not woken by close")
		}
	})
}

func TestStreamBufferWithEngine(t *testing.T) {
	s := NewStreamBuffer()
	frame := []byte{0x30, 0x07, 0x00, 0x03, 'a', '/', 'b', 'h', 'i'}

	// split across chunk boundaries the way websocket frames arrive
	go func() {
		_ = s.Offer(frame[:1])
		_ = s.Offer(frame[1:4])
		_ = s.Offer(frame[4:])
		_ = s.Close()
	}()

	e := NewEngine(0)
	pkt, err := e.ReadPacket(s)
	require.NoError(t, err)
	pub := pkt.(*PublishPacket)
	assert.Equal(t, "a/b", pub.Topic)
	assert.Equal(t, []byte("hi"), pub.Payload)

	_, err = e.ReadPacket(s)
	assert.Equal(t, io.EOF, err)
}
