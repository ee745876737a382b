package mqtt3

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"golang.org/x/time/rate"
)

// ServerResolver returns broker addresses. It is called before each
// connection attempt to enable dynamic service discovery.
// The addresses are URLs: scheme://host:port (e.g., "tcp://broker:1883").
type ServerResolver func(ctx context.Context) ([]string, error)

// TransportResolver picks the transport for a broker URL. It returns the
// factory and the address handed to Transport.Connect.
type TransportResolver func(brokerURL string) (TransportFactory, string, error)

// clientOptions holds configuration for a Client.
type clientOptions struct {
	// CONNECT contents
	clientID        string
	username        string
	password        []byte
	keepAlive       uint16
	cleanSession    bool
	protocolVersion ProtocolVersion

	// Will message
	willTopic   string
	willPayload []byte
	willRetain  bool
	willQoS     QoS

	// Transports
	tlsConfig    *tls.Config
	quicConfig   *quic.Config
	proxyConfig  *ProxyConfig
	proxyFromEnv bool
	wsHeader     http.Header
	transport    TransportResolver

	// Timeouts and limits
	connectTimeout time.Duration
	maxPacketSize  uint32
	publishLimiter *rate.Limiter

	// Servers
	servers        []string
	serverResolver ServerResolver

	// Callbacks and observability
	listener Listener
	executor Executor
	logger   Logger
	metrics  Metrics
}

// DefaultMaxPacketSize is the remaining length limit a Client applies in
// both directions unless WithMaxPacketSize overrides it.
const DefaultMaxPacketSize = 1 << 20

// defaultOptions returns options with sensible defaults.
func defaultOptions() *clientOptions {
	return &clientOptions{
		keepAlive:       60,
		cleanSession:    true,
		protocolVersion: ProtocolVersion311,
		connectTimeout:  10 * time.Second,
		maxPacketSize:   DefaultMaxPacketSize,
		logger:          NewNoOpLogger(),
		metrics:         &NoOpMetrics{},
	}
}

// Option configures a Client.
type Option func(*clientOptions)

// WithClientID sets the client identifier. An empty identifier is replaced
// by a generated one.
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.clientID = id
	}
}

// WithCredentials sets the username and password for authentication.
// An empty password is not sent.
func WithCredentials(username, password string) Option {
	return func(o *clientOptions) {
		o.username = username
		o.password = nil
		if password != "" {
			o.password = []byte(password)
		}
	}
}

// WithKeepAlive sets the keep-alive interval in seconds. Zero disables
// pinging.
func WithKeepAlive(seconds uint16) Option {
	return func(o *clientOptions) {
		o.keepAlive = seconds
	}
}

// WithCleanSession sets whether the broker discards session state.
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.cleanSession = clean
	}
}

// WithProtocolVersion selects MQTT 3.1 or 3.1.1.
func WithProtocolVersion(v ProtocolVersion) Option {
	return func(o *clientOptions) {
		o.protocolVersion = v
	}
}

// WithWill sets the message the broker publishes when the client goes away
// without sending DISCONNECT.
func WithWill(topic string, payload []byte, qos QoS, retain bool) Option {
	return func(o *clientOptions) {
		o.willTopic = topic
		o.willPayload = payload
		o.willQoS = qos
		o.willRetain = retain
	}
}

// WithTLS sets the TLS configuration for ssl, tls, mqtts, wss and quic URLs.
func WithTLS(config *tls.Config) Option {
	return func(o *clientOptions) {
		o.tlsConfig = config
	}
}

// WithQUICConfig sets the QUIC configuration for quic URLs.
func WithQUICConfig(config *quic.Config) Option {
	return func(o *clientOptions) {
		o.quicConfig = config
	}
}

// WithProxy tunnels TCP, TLS and WebSocket connections through a proxy.
func WithProxy(config ProxyConfig) Option {
	return func(o *clientOptions) {
		o.proxyConfig = &config
	}
}

// WithProxyFromEnvironment reads the proxy from HTTP_PROXY, HTTPS_PROXY
// and NO_PROXY when no explicit proxy is configured.
func WithProxyFromEnvironment(enabled bool) Option {
	return func(o *clientOptions) {
		o.proxyFromEnv = enabled
	}
}

// WithWebSocketHeader sets the HTTP header sent with the WebSocket handshake.
func WithWebSocketHeader(header http.Header) Option {
	return func(o *clientOptions) {
		o.wsHeader = header
	}
}

// WithTransport replaces the URL scheme based transport selection.
func WithTransport(resolver TransportResolver) Option {
	return func(o *clientOptions) {
		o.transport = resolver
	}
}

// WithConnectTimeout bounds Connect when the caller's context has no deadline.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.connectTimeout = d
	}
}

// WithMaxPacketSize limits the remaining length of packets in both
// directions. The default is DefaultMaxPacketSize; zero leaves only the
// protocol limit.
func WithMaxPacketSize(size uint32) Option {
	return func(o *clientOptions) {
		o.maxPacketSize = size
	}
}

// WithPublishRateLimit limits publishing to perSecond messages per second
// with the given burst. Publish waits for a slot. A perSecond of zero or
// less removes the limit.
func WithPublishRateLimit(perSecond float64, burst int) Option {
	return func(o *clientOptions) {
		if perSecond <= 0 {
			o.publishLimiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.publishLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithServers sets the broker URLs. Connect tries them round-robin, one per
// call.
func WithServers(servers ...string) Option {
	return func(o *clientOptions) {
		o.servers = append(o.servers, servers...)
	}
}

// WithServerResolver sets a dynamic server resolver for service discovery.
// If the resolver fails or returns nothing, the static servers are used.
func WithServerResolver(resolver ServerResolver) Option {
	return func(o *clientOptions) {
		o.serverResolver = resolver
	}
}

// WithListener sets the receiver of client events.
func WithListener(l Listener) Option {
	return func(o *clientOptions) {
		o.listener = l
	}
}

// WithExecutor runs listener callbacks on e instead of the client's own
// delivery goroutine. e must preserve submission order.
func WithExecutor(e Executor) Option {
	return func(o *clientOptions) {
		o.executor = e
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) Option {
	return func(o *clientOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// applyOptions applies all options to the default options.
func applyOptions(opts ...Option) *clientOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}
