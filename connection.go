package mqtt3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// State is the lifecycle state of a client connection.
type State int32

// Connection states.
const (
	StateIdle State = iota
	StateConnecting
	StateConnected
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateConnecting: "connecting",
	StateConnected:  "connected",
}

// String returns the string representation of the state.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

var errStaleHandle = errors.New("mqtt3: stale transport")

// connection drives one broker session at a time through
// Idle -> Connecting -> Connected -> Idle. Connected means the transport is
// up; accepted is set once the broker's CONNACK grants the session. All
// transitions and all sends happen under mu; decoding happens outside it on
// the transport's read goroutine.
type connection struct {
	mu sync.Mutex

	state    State
	accepted bool
	handle   Transport
	address string
	cancel  context.CancelFunc

	engine        *Engine
	maxPacketSize uint32
	tokens        map[uint16]*Token
	connTok       *Token
	pingSent      bool

	template ConnectPacket
	listener Listener
	executor Executor
	logger   Logger
	metrics  *connMetrics
}

func newConnection(template ConnectPacket, l Listener, e Executor, logger Logger, metrics *connMetrics, maxPacketSize uint32) *connection {
	return &connection{
		engine:        NewEngine(maxPacketSize),
		maxPacketSize: maxPacketSize,
		tokens:        make(map[uint16]*Token),
		template:      template,
		listener:      l,
		executor:      e,
		logger:        logger,
		metrics:       metrics,
	}
}

// handleListener binds transport callbacks to the handle they came from and
// to the engine of that attempt, so a superseded transport never decodes
// against the identifier store of its successor.
type handleListener struct {
	c      *connection
	handle Transport
	engine *Engine
}

func (h *handleListener) OnConnected() { h.c.onConnected(h.handle) }
func (h *handleListener) OnMessage(r io.Reader) error {
	return h.c.onMessage(h.handle, h.engine, r)
}
func (h *handleListener) OnClosed(code int, reason string) {
	h.c.onClosed(h.handle, code, reason)
}
func (h *handleListener) OnClosedWithError(err error) { h.c.onClosedWithError(h.handle, err) }

func (c *connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// established reports whether the broker has accepted the current session.
func (c *connection) established() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected && c.accepted
}

// connect starts a connection attempt over a transport from factory. The
// returned token completes when the broker accepts the connection or the
// attempt fails.
func (c *connection) connect(ctx context.Context, factory TransportFactory, address string) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return nil, fmt.Errorf("%w: connect while %s", ErrIllegalState, c.state)
	}

	handle := factory()
	if handle == nil {
		return nil, fmt.Errorf("%w: transport factory returned nil for %s", ErrIllegalState, address)
	}

	engine := NewEngine(c.maxPacketSize)

	c.handle = handle
	c.engine = engine
	c.address = address
	c.connTok = newToken(PacketCONNECT, 0)
	c.setStateLocked(StateConnecting)
	c.metrics.connectAttempt()

	handle.Connect(ctx, address, &handleListener{c: c, handle: handle, engine: engine})
	return c.connTok, nil
}

// abort fails the attempt tok belongs to if it is still waiting for CONNACK.
func (c *connection) abort(tok *Token, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connTok != tok || c.handle == nil {
		return
	}
	c.teardownLocked(NewConnectionLostError(err), err)
}

// disconnect ends the current session from any state.
func (c *connection) disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return ErrNotConnected
	}

	if c.state == StateConnected {
		if frame, err := c.engine.Encode(&DisconnectPacket{}); err == nil {
			if err := c.handle.Send(frame); err != nil {
				c.logger.Debug("failed to send DISCONNECT", LogFields{LogFieldError: err.Error()})
			} else {
				c.metrics.packetSent(PacketDISCONNECT, len(frame))
			}
		}
	}

	c.teardownLocked(nil, ErrClientClosed)
	return nil
}

// send encodes p and writes it. The token completes on acknowledgement, or
// immediately for packets that are not acknowledged.
func (c *connection) send(p OutboundPacket) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return nil, ErrNotConnected
	}

	frame, err := c.engine.Encode(p)
	if err != nil {
		return nil, err
	}

	ip, pending := awaitsAck(p)
	if !pending {
		if err := c.writeFrameLocked(p.Type(), frame); err != nil {
			return nil, err
		}
		return completedToken(p.Type()), nil
	}

	id := ip.GetPacketID()
	tok := newToken(p.Type(), id)
	tok.sent = time.Now()
	c.tokens[id] = tok

	if err := c.writeFrameLocked(p.Type(), frame); err != nil {
		delete(c.tokens, id)
		c.engine.Release(id)
		return nil, err
	}

	c.metrics.inflight(len(c.tokens))
	c.logger.Debug("action pending", LogFields{
		LogFieldPacketType: p.Type().String(),
		LogFieldPacketID:   id,
	})
	return tok, nil
}

// ping sends PINGREQ. The answer is reported through Listener.OnPong.
func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingLocked()
}

func (c *connection) pingLocked() error {
	if c.state != StateConnected {
		return ErrNotConnected
	}

	frame, err := c.engine.Encode(&PingreqPacket{})
	if err != nil {
		return err
	}
	if err := c.writeFrameLocked(PacketPINGREQ, frame); err != nil {
		return err
	}

	c.pingSent = true
	return nil
}

func (c *connection) writeFrameLocked(t PacketType, frame []byte) error {
	if err := c.handle.Send(frame); err != nil {
		return NewConnectionLostError(err)
	}
	c.metrics.packetSent(t, len(frame))
	return nil
}

func (c *connection) writeLocked(p OutboundPacket) error {
	frame, err := c.engine.Encode(p)
	if err != nil {
		return err
	}
	return c.writeFrameLocked(p.Type(), frame)
}

func (c *connection) onConnected(handle Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(handle, "connected") {
		return
	}
	if c.state != StateConnecting {
		return
	}

	c.setStateLocked(StateConnected)

	pkt := c.template
	if err := c.writeLocked(&pkt); err != nil {
		c.logger.Error("failed to send CONNECT", LogFields{
			LogFieldAddress: c.address,
			LogFieldError:   err.Error(),
		})
		c.teardownLocked(NewConnectionLostError(err), nil)
		return
	}

	c.logger.Debug("CONNECT sent", LogFields{LogFieldAddress: c.address})
}

// onMessage decodes one packet outside the lock with the engine of the
// attempt handle belongs to and applies it under the lock.
func (c *connection) onMessage(handle Transport, engine *Engine, r io.Reader) error {
	pkt, err := engine.ReadPacket(r)
	if err != nil {
		if !errors.Is(err, io.EOF) && c.isCurrent(handle) {
			c.metrics.decodeError()
			c.logger.Warn("failed to read packet", LogFields{
				LogFieldAddress: c.address,
				LogFieldError:   err.Error(),
			})
		}
		return err
	}
	if pkt == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(handle, "message") {
		return errStaleHandle
	}

	c.metrics.packetReceived(pkt.Type())

	s := deliveryStep(pkt)
	if s.connack != nil {
		return c.onConnackLocked(handle, s.connack)
	}

	if !c.accepted {
		return fmt.Errorf("%w: %s before CONNACK", ErrProtocolViolation, pkt.Type())
	}

	if msg := s.deliver; msg != nil {
		c.metrics.messageReceived(msg.QoS)
		c.execute(func() { c.listener.OnMessage(msg) })
	}

	if s.reply != nil {
		if err := c.writeLocked(s.reply); err != nil {
			return err
		}
	}

	if s.complete != 0 {
		if s.release {
			c.engine.Release(s.complete)
		}
		c.completeLocked(s.complete, s.suback)
	}

	if s.pong {
		c.pingSent = false
		c.execute(c.listener.OnPong)
	}

	return nil
}

func (c *connection) onConnackLocked(handle Transport, connack *ConnackPacket) error {
	if c.state != StateConnected || c.accepted {
		return fmt.Errorf("%w: unexpected CONNACK while %s", ErrProtocolViolation, c.state)
	}

	if !connack.Accepted() {
		code := connack.ReturnCode
		c.logger.Warn("connection refused", LogFields{
			LogFieldAddress:    c.address,
			LogFieldReturnCode: code.String(),
		})
		c.execute(func() { c.listener.OnConnectionFailed(code) })
		err := NewConnectError(code)
		c.teardownLocked(err, err)
		return err
	}

	c.accepted = true
	c.metrics.connected()

	if keepAlive := c.template.KeepAlive; keepAlive > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go c.keepAlive(ctx, handle, time.Duration(keepAlive)*time.Second)
	}

	if c.connTok != nil {
		c.connTok.complete(nil)
		c.connTok = nil
	}

	sessionPresent := connack.SessionPresent
	c.execute(func() { c.listener.OnConnected(sessionPresent) })
	return nil
}

func (c *connection) completeLocked(id uint16, suback *SubackPacket) {
	tok, ok := c.tokens[id]
	if !ok {
		return
	}
	delete(c.tokens, id)

	if suback != nil {
		tok.completeSubscribe(suback)
	} else {
		tok.complete(nil)
	}

	c.metrics.acked(time.Since(tok.sent))
	c.metrics.inflight(len(c.tokens))
	c.execute(func() { c.listener.OnActionComplete(tok) })
}

func (c *connection) onClosed(handle Transport, code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(handle, "closed") {
		return
	}

	c.logger.Info("transport closed", LogFields{
		LogFieldAddress: c.address,
		LogFieldCode:    code,
	})

	var event error
	switch {
	case !c.accepted:
		event = NewConnectionLostError(fmt.Errorf("closed before CONNACK (%d %s)", code, reason))
	case code != CloseNormal:
		event = NewConnectionLostError(fmt.Errorf("closed with code %d: %s", code, reason))
	}

	c.teardownLocked(event, NewConnectionLostError(nil))
}

func (c *connection) onClosedWithError(handle Transport, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(handle, "closed with error") {
		return
	}

	c.logger.Warn("connection lost", LogFields{
		LogFieldAddress: c.address,
		LogFieldState:   c.state.String(),
		LogFieldError:   err.Error(),
	})

	lost := NewConnectionLostError(err)
	c.teardownLocked(lost, lost)
}

// failLocked closes a live session because of a local failure.
func (c *connection) failLocked(err error) {
	c.logger.Warn("closing connection", LogFields{
		LogFieldAddress: c.address,
		LogFieldError:   err.Error(),
	})

	var lost *ConnectionLostError
	if !errors.As(err, &lost) {
		lost = NewConnectionLostError(err)
	}
	c.teardownLocked(lost, lost)
}

// teardownLocked returns to Idle. event is passed to OnDisconnected and
// pending actions fail with tokenErr, or with event when tokenErr is nil.
func (c *connection) teardownLocked(event, tokenErr error) {
	if tokenErr == nil {
		tokenErr = event
	}
	if tokenErr == nil {
		tokenErr = ErrClientClosed
	}

	handle := c.handle
	c.handle = nil
	c.setStateLocked(StateIdle)
	c.accepted = false
	c.pingSent = false

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if handle != nil {
		if err := handle.Close(); err != nil {
			c.logger.Debug("transport close failed", LogFields{LogFieldError: err.Error()})
		}
	}

	c.engine.Reset()
	for id, tok := range c.tokens {
		tok.complete(tokenErr)
		delete(c.tokens, id)
	}
	if c.connTok != nil {
		c.connTok.complete(tokenErr)
		c.connTok = nil
	}

	c.metrics.disconnected()
	c.execute(func() { c.listener.OnDisconnected(event) })
}

// currentLocked reports whether handle is the live transport; callbacks
// from superseded transports are dropped.
func (c *connection) currentLocked(handle Transport, event string) bool {
	if handle == c.handle && handle != nil {
		return true
	}
	c.logger.Debug("dropping callback from stale transport", LogFields{"event": event})
	return false
}

func (c *connection) isCurrent(handle Transport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return handle == c.handle
}

func (c *connection) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("state changed", LogFields{
		LogFieldAddress: c.address,
		LogFieldState:   s.String(),
	})
	c.state = s
}

func (c *connection) execute(task func()) {
	c.executor.Execute(task)
}
