package mqtt3

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// CloseNormal is the close code reported for an orderly shutdown.
const CloseNormal = 1000

// Transport carries MQTT frames to a broker. One Transport value is used for
// a single connection attempt and is discarded after it closes.
type Transport interface {
	// Connect starts connecting to address and returns immediately. The
	// outcome is reported through l.
	Connect(ctx context.Context, address string, l TransportListener)

	// Send writes one complete frame.
	Send(frame []byte) error

	// Close tears the transport down. No callbacks follow a Close.
	Close() error
}

// TransportListener receives the events of a Transport.
type TransportListener interface {
	// OnConnected is called once the byte stream is open.
	OnConnected()

	// OnMessage is called from the transport's read goroutine and consumes
	// exactly one packet from r. A non-nil error closes the transport; io.EOF
	// means the stream ended cleanly on a packet boundary.
	OnMessage(r io.Reader) error

	// OnClosed reports an orderly close.
	OnClosed(code int, reason string)

	// OnClosedWithError reports a failed connect or a broken stream.
	OnClosedWithError(err error)
}

// TransportFactory creates a fresh Transport for each connection attempt.
type TransportFactory func() Transport

// Dialer opens a byte stream to a broker.
type Dialer interface {
	// Dial connects to the address with the given context.
	Dial(ctx context.Context, address string) (net.Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, address string) (net.Conn, error)

// Dial calls f(ctx, address).
func (f DialerFunc) Dial(ctx context.Context, address string) (net.Conn, error) {
	return f(ctx, address)
}

// TCPDialer connects to MQTT brokers over TCP.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration

	// Proxy tunnels the connection when set.
	Proxy *ProxyDialer
}

// Dial connects to the address.
func (d *TCPDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	if d.Proxy != nil {
		return d.Proxy.DialContext(ctx, "tcp", address)
	}

	var dialer net.Dialer
	if d.Timeout > 0 {
		dialer.Timeout = d.Timeout
	}
	return dialer.DialContext(ctx, "tcp", address)
}

// TLSDialer connects to MQTT brokers over TLS.
type TLSDialer struct {
	// Config is the TLS configuration.
	Config *tls.Config

	// Timeout is the maximum time to wait for a connection.
	// Zero means no timeout.
	Timeout time.Duration

	// Proxy tunnels the connection when set; TLS runs inside the tunnel.
	Proxy *ProxyDialer
}

// Dial connects to the address.
func (d *TLSDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	config := d.Config
	if config == nil {
		config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if d.Proxy != nil {
		conn, err := d.Proxy.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, err
		}

		if config.ServerName == "" {
			config = config.Clone()
			config.ServerName, _, _ = net.SplitHostPort(address)
		}

		tlsConn := tls.Client(conn, config)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{
			Timeout: d.Timeout,
		},
		Config: config,
	}
	return dialer.DialContext(ctx, "tcp", address)
}

// StreamTransport runs MQTT over a net.Conn opened by a Dialer. It serves
// TCP, TLS, Unix sockets, QUIC streams and proxied connections alike.
type StreamTransport struct {
	dialer Dialer

	mu     sync.Mutex
	conn   net.Conn
	cancel context.CancelFunc
	closed bool

	writeMu sync.Mutex
}

// NewStreamTransport creates a transport that dials with d.
func NewStreamTransport(d Dialer) *StreamTransport {
	return &StreamTransport{dialer: d}
}

// Connect dials in the background, then reads packets until the stream ends.
func (t *StreamTransport) Connect(ctx context.Context, address string, l TransportListener) {
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

func (t *StreamTransport) run(ctx context.Context, cancel context.CancelFunc, address string, l TransportListener) {
	conn, err := t.dialer.Dial(ctx, address)
	cancel()

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

	serve(bufio.NewReader(conn), l, t.isClosed)
	t.Close()
}

func (t *StreamTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Send writes frame to the connection. Writes are serialised.
func (t *StreamTransport) Send(frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_, err := conn.Write(frame)
	return err
}

// Close cancels a pending dial and closes the connection, which unblocks
// the read goroutine.
func (t *StreamTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn, cancel := t.conn, t.cancel
	t.conn, t.cancel = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// serve hands r to l one packet at a time until OnMessage fails, then
// reports how the stream ended. Nothing is reported once closed is true.
func serve(r io.Reader, l TransportListener, closed func() bool) {
	for {
		err := l.OnMessage(r)
		if err == nil {
			continue
		}
		if closed() {
			return
		}
		if errors.Is(err, io.EOF) {
			l.OnClosed(CloseNormal, "EOF")
			return
		}
		l.OnClosedWithError(err)
		return
	}
}
