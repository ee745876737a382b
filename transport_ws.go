package mqtt3

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketSubprotocol is the MQTT WebSocket subprotocol.
const WebSocketSubprotocol = "mqtt"

const wsCloseTimeout = time.Second

// NewWSDialer creates a WebSocket dialer that negotiates the mqtt
// subprotocol. Either argument may be nil.
func NewWSDialer(tlsConfig *tls.Config, proxy *ProxyDialer) *websocket.Dialer {
	d := &websocket.Dialer{
		Subprotocols:     []string{WebSocketSubprotocol},
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 45 * time.Second,
		TLSClientConfig:  tlsConfig,
	}
	if proxy != nil {
		d.NetDialContext = proxy.DialContext
	}
	return d
}

// WSTransport carries MQTT over WebSocket binary messages. Message
// boundaries carry no meaning: frames are pushed into a StreamBuffer and
// decoded from the resulting byte stream.
type WSTransport struct {
	dialer *websocket.Dialer
	header http.Header

	mu     sync.Mutex
	conn   *websocket.Conn
	stream *StreamBuffer
	cancel context.CancelFunc
	closed bool

	writeMu sync.Mutex
}

// NewWSTransport creates a WebSocket transport. A nil dialer uses
// NewWSDialer(nil, nil).
func NewWSTransport(dialer *websocket.Dialer, header http.Header) *WSTransport {
	if dialer == nil {
		dialer = NewWSDialer(nil, nil)
	}
	return &WSTransport{
		dialer: dialer,
		header: header,
		stream: NewStreamBuffer(),
	}
}

// Connect performs the WebSocket handshake with address ("ws://..." or
// "wss://...") in the background.
func (t *WSTransport) Connect(ctx context.Context, address string, l TransportListener) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	dialCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(dialCtx, cancel, address, l)
}

func (t *WSTransport) run(ctx context.Context, cancel context.CancelFunc, address string, l TransportListener) {
	conn, resp, err := t.dialer.DialContext(ctx, address, t.header)
	cancel()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		t.closed = true
		t.mu.Unlock()
		l.OnClosedWithError(err)
		return
	}
	t.conn = conn
	t.mu.Unlock()

	l.OnConnected()

	go t.pump(conn)
	t.decode(l)
	t.Close()
}

// pump moves binary messages into the stream buffer until the socket fails.
func (t *WSTransport) pump(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.stream.CloseWithError(err)
			return
		}
		if messageType != websocket.BinaryMessage {
			t.stream.CloseWithError(fmt.Errorf("%w: websocket message type %d", ErrProtocolViolation, messageType))
			return
		}
		if err := t.stream.Offer(data); err != nil {
			return
		}
	}
}

func (t *WSTransport) decode(l TransportListener) {
	for {
		err := l.OnMessage(t.stream)
		if err == nil {
			continue
		}
		if t.isClosed() {
			return
		}

		var closeErr *websocket.CloseError
		switch {
		case errors.As(err, &closeErr):
			l.OnClosed(closeErr.Code, closeErr.Text)
		case errors.Is(err, io.EOF):
			l.OnClosed(CloseNormal, "EOF")
		default:
			l.OnClosedWithError(err)
		}
		return
	}
}

func (t *WSTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Send writes frame as one binary message.
func (t *WSTransport) Send(frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Close sends a normal close frame when connected and releases the socket.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	if t.closed && t.conn == nil {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn, cancel := t.conn, t.cancel
	t.conn, t.cancel = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.stream.Close()

	if conn == nil {
		return nil
	}

	t.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseTimeout))
	t.writeMu.Unlock()

	return conn.Close()
}
