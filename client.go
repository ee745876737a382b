package mqtt3

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Default broker ports per URL scheme.
const (
	DefaultPort     = "1883"
	DefaultTLSPort  = "8883"
	DefaultWSPort   = "80"
	DefaultWSSPort  = "443"
	DefaultQUICPort = "14567"
)

const generatedIDPrefix = "mqtt3-"

// Client is an MQTT 3.1/3.1.1 client. It holds at most one connection at a
// time; Connect after a disconnect starts a new, clean engine state.
type Client struct {
	options    *clientOptions
	clientID   string
	conn       *connection
	dispatcher *dispatcher
	logger     Logger

	serverIndex atomic.Uint32
	closed      atomic.Bool
}

// NewClient creates a client. No connection is made until Connect.
func NewClient(opts ...Option) (*Client, error) {
	options := applyOptions(opts...)

	if !options.protocolVersion.Valid() {
		return nil, ErrInvalidProtocolVersion
	}

	clientID := options.clientID
	if clientID == "" {
		clientID = generateClientID(options.protocolVersion)
	}

	c := &Client{
		options:  options,
		clientID: clientID,
		logger:   options.logger.WithFields(LogFields{LogFieldClientID: clientID}),
	}

	executor := options.executor
	if executor == nil {
		c.dispatcher = newDispatcher()
		executor = c.dispatcher
	}

	listener := options.listener
	if listener == nil {
		listener = &ListenerFuncs{}
	}

	template := ConnectPacket{
		ProtocolVersion: options.protocolVersion,
		ClientID:        clientID,
		CleanSession:    options.cleanSession,
		KeepAlive:       options.keepAlive,
		Username:        options.username,
		Password:        options.password,
		WillTopic:       options.willTopic,
		WillMessage:     options.willPayload,
		WillQoS:         options.willQoS,
		WillRetain:      options.willRetain,
	}
	if err := template.Validate(); err != nil {
		c.close()
		return nil, packetError(PacketCONNECT, err)
	}

	c.conn = newConnection(template, listener, executor, c.logger, newConnMetrics(options.metrics), options.maxPacketSize)
	return c, nil
}

// generateClientID returns "mqtt3-" followed by a random UUID without
// dashes, cut to the 23 bytes MQTT 3.1 allows.
func generateClientID(v ProtocolVersion) string {
	id := generatedIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if v == ProtocolVersion31 && len(id) > maxClientIDLen31 {
		id = id[:maxClientIDLen31]
	}
	return id
}

// ClientID returns the client identifier sent in CONNECT.
func (c *Client) ClientID() string {
	return c.clientID
}

// State returns the connection state.
func (c *Client) State() State {
	return c.conn.State()
}

// IsConnected reports whether the broker has accepted the connection.
func (c *Client) IsConnected() bool {
	return c.conn.established()
}

// Connect connects to the next configured server and blocks until the
// broker answers CONNACK, the attempt fails or ctx is done. A refused
// connection returns a *ConnectError.
func (c *Client) Connect(ctx context.Context) error {
	addr, err := c.nextServer(ctx)
	if err != nil {
		return err
	}
	return c.ConnectTo(ctx, addr)
}

// ConnectTo connects to brokerURL, e.g. "tcp://broker:1883",
// "wss://broker/mqtt", "unix:///run/mqtt.sock" or "quic://broker:14567".
func (c *Client) ConnectTo(ctx context.Context, brokerURL string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	factory, address, err := c.resolveTransport(brokerURL)
	if err != nil {
		return err
	}

	if _, ok := ctx.Deadline(); !ok && c.options.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.connectTimeout)
		defer cancel()
	}

	c.logger.Info("connecting", LogFields{LogFieldAddress: brokerURL})

	tok, err := c.conn.connect(ctx, factory, address)
	if err != nil {
		return err
	}

	if err := tok.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			c.conn.abort(tok, ctxErr)
		}
		c.logger.Warn("connect failed", LogFields{
			LogFieldAddress: brokerURL,
			LogFieldError:   err.Error(),
		})
		return err
	}

	c.logger.Info("connected", LogFields{LogFieldAddress: brokerURL})
	return nil
}

// nextServer returns the next server address to try using round-robin
// selection. The resolver is asked first, the static servers are the fallback.
func (c *Client) nextServer(ctx context.Context) (string, error) {
	var servers []string

	if c.options.serverResolver != nil {
		resolved, err := c.options.serverResolver(ctx)
		if err != nil {
			c.logger.Warn("server resolver failed", LogFields{LogFieldError: err.Error()})
		}
		if err == nil && len(resolved) > 0 {
			servers = resolved
		}
	}

	if len(servers) == 0 {
		servers = c.options.servers
	}

	if len(servers) == 0 {
		return "", ErrNoServers
	}

	index := c.serverIndex.Add(1) - 1
	return servers[index%uint32(len(servers))], nil
}

// resolveTransport maps a broker URL to a transport factory and the address
// that transport dials.
func (c *Client) resolveTransport(brokerURL string) (TransportFactory, string, error) {
	if c.options.transport != nil {
		return c.options.transport(brokerURL)
	}

	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid address: %w", err)
	}

	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "tcp", "mqtt":
			host = net.JoinHostPort(u.Hostname(), DefaultPort)
		case "ssl", "tls", "mqtts":
			host = net.JoinHostPort(u.Hostname(), DefaultTLSPort)
		case "ws":
			host = net.JoinHostPort(u.Hostname(), DefaultWSPort)
		case "wss":
			host = net.JoinHostPort(u.Hostname(), DefaultWSSPort)
		case "quic":
			host = net.JoinHostPort(u.Hostname(), DefaultQUICPort)
		}
	}

	var proxy *ProxyDialer
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
		proxy, err = c.resolveProxy(brokerURL)
		if err != nil {
			return nil, "", fmt.Errorf("proxy configuration error: %w", err)
		}
	}

	switch u.Scheme {
	case "tcp", "mqtt":
		d := &TCPDialer{Proxy: proxy}
		return func() Transport { return NewStreamTransport(d) }, host, nil

	case "ssl", "tls", "mqtts":
		d := &TLSDialer{Config: c.options.tlsConfig, Proxy: proxy}
		return func() Transport { return NewStreamTransport(d) }, host, nil

	case "ws", "wss":
		header := c.options.wsHeader
		dialer := NewWSDialer(c.options.tlsConfig, proxy)
		return func() Transport { return NewWSTransport(dialer, header) }, brokerURL, nil

	case "unix":
		// unix:///path/to/socket or unix://localhost/path/to/socket
		socketPath := u.Path
		if socketPath == "" {
			socketPath = u.Host + u.Path
		}
		d := NewUnixDialer()
		return func() Transport { return NewStreamTransport(d) }, socketPath, nil

	case "quic":
		d := NewQUICDialer(c.options.tlsConfig, c.options.quicConfig)
		return func() Transport { return NewStreamTransport(d) }, host, nil

	default:
		return nil, "", fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
}

// resolveProxy returns the proxy dialer for brokerURL, or nil for a direct
// connection.
func (c *Client) resolveProxy(brokerURL string) (*ProxyDialer, error) {
	if cfg := c.options.proxyConfig; cfg != nil {
		return NewProxyDialer(cfg.URL, cfg.Username, cfg.Password)
	}

	if c.options.proxyFromEnv {
		proxyURL, err := ProxyFromEnvironment(brokerURL)
		if err != nil {
			return nil, err
		}
		if proxyURL != nil {
			return NewProxyDialer(proxyURL.String(), "", "")
		}
	}

	return nil, nil
}

// Publish sends an application message. For QoS 0 the returned token is
// already complete; for QoS 1 and 2 it completes on PUBACK or PUBCOMP.
// With a publish rate limit configured, Publish first waits for a slot.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos QoS, retain bool) (*Token, error) {
	return c.publish(ctx, &PublishPacket{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
	})
}

// PublishMessage sends msg. Topic, Payload, QoS, Retain and Duplicate are
// used; the packet identifier is always allocated by the client. Duplicate
// on a QoS 0 message is rejected.
func (c *Client) PublishMessage(ctx context.Context, msg *Message) (*Token, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrProtocolViolation)
	}
	return c.publish(ctx, &PublishPacket{
		Topic:   msg.Topic,
		Payload: msg.Payload,
		QoS:     msg.QoS,
		Retain:  msg.Retain,
		DUP:     msg.Duplicate,
	})
}

func (c *Client) publish(ctx context.Context, pkt *PublishPacket) (*Token, error) {
	if limiter := c.options.publishLimiter; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.conn.send(pkt)
}

// Subscribe subscribes to filters and waits for SUBACK.
//
// Filters the broker refuses are reported as a *SubscribeError; the
// returned Subscription still holds the filters that were granted, and is
// nil only when nothing was granted.
func (c *Client) Subscribe(ctx context.Context, filters ...TopicFilter) (*Subscription, error) {
	if len(filters) == 0 {
		return nil, ErrEmptySubscription
	}

	tok, err := c.conn.send(&SubscribePacket{Topics: filters})
	if err != nil {
		return nil, err
	}

	if err := tok.Wait(ctx); err != nil {
		var subErr *SubscribeError
		if !errors.As(err, &subErr) || len(tok.Granted()) == 0 {
			return nil, err
		}
		return newSubscription(c, tok), err
	}

	c.logger.Debug("subscribed", LogFields{LogFieldTopic: topicNames(filters)})
	return newSubscription(c, tok), nil
}

// SubscribeAsync sends SUBSCRIBE and returns without waiting for SUBACK.
func (c *Client) SubscribeAsync(filters ...TopicFilter) (*Token, error) {
	if len(filters) == 0 {
		return nil, ErrEmptySubscription
	}
	return c.conn.send(&SubscribePacket{Topics: filters})
}

// Unsubscribe removes the topic filters and waits for UNSUBACK.
func (c *Client) Unsubscribe(ctx context.Context, filters ...string) error {
	tok, err := c.UnsubscribeAsync(filters...)
	if err != nil {
		return err
	}
	return tok.Wait(ctx)
}

// UnsubscribeAsync sends UNSUBSCRIBE and returns without waiting for UNSUBACK.
func (c *Client) UnsubscribeAsync(filters ...string) (*Token, error) {
	if len(filters) == 0 {
		return nil, ErrEmptySubscription
	}
	return c.conn.send(&UnsubscribePacket{Topics: filters})
}

// Ping sends PINGREQ. The answer is reported through Listener.OnPong.
func (c *Client) Ping() error {
	return c.conn.ping()
}

// Disconnect sends DISCONNECT and closes the transport. Pending actions
// fail with ErrClientClosed. The client can connect again afterwards.
func (c *Client) Disconnect() error {
	err := c.conn.disconnect()
	if err == nil {
		c.logger.Info("disconnected", nil)
	}
	return err
}

// Close disconnects and stops the callback goroutine. A closed client
// cannot connect again.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	if err := c.conn.disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		c.close()
		return err
	}

	c.close()
	return nil
}

func (c *Client) close() {
	if c.dispatcher != nil {
		c.dispatcher.Close()
	}
}

func topicNames(filters []TopicFilter) []string {
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.Filter
	}
	return names
}
