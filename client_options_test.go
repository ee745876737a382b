package mqtt3

import (
	"context"
	"crypto/tls"
	"net/http"
	"testing"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	o := applyOptions()

	assert.Equal(t, uint16(60), o.keepAlive)
	assert.True(t, o.cleanSession)
	assert.Equal(t, ProtocolVersion311, o.protocolVersion)
	assert.Equal(t, 10*time.Second, o.connectTimeout)
	assert.Equal(t, uint32(DefaultMaxPacketSize), o.maxPacketSize)
	assert.IsType(t, &NoOpLogger{}, o.logger)
	assert.IsType(t, &NoOpMetrics{}, o.metrics)
	assert.Nil(t, o.publishLimiter)
	assert.Empty(t, o.servers)
}

func TestOptions(t *testing.T) {
	tlsConfig := &tls.Config{ServerName: "broker", MinVersion: tls.VersionTLS13}
	quicConfig := &quic.Config{MaxIdleTimeout: time.Minute}
	header := http.Header{"Authorization": {"Bearer x"}}
	listener := &ListenerFuncs{}
	logger := NewStdLogger(nil, LogLevelInfo)
	metrics := NewMemoryMetrics()
	resolver := func(context.Context) ([]string, error) { return nil, nil }

	o := applyOptions(
		WithClientID("c1"),
		WithCredentials("user", "pass"),
		WithKeepAlive(5),
		WithCleanSession(false),
		WithProtocolVersion(ProtocolVersion31),
		WithWill("will/topic", []byte("gone"), QoS2, true),
		WithTLS(tlsConfig),
		WithQUICConfig(quicConfig),
		WithProxy(ProxyConfig{URL: "socks5://proxy:1080"}),
		WithProxyFromEnvironment(true),
		WithWebSocketHeader(header),
		WithConnectTimeout(time.Second),
		WithMaxPacketSize(4096),
		WithPublishRateLimit(100, 10),
		WithServers("tcp://a"),
		WithServers("tcp://b"),
		WithServerResolver(resolver),
		WithListener(listener),
		WithExecutor(inlineExecutor),
		WithLogger(logger),
		WithMetrics(metrics),
	)

	assert.Equal(t, "c1", o.clientID)
	assert.Equal(t, "user", o.username)
	assert.Equal(t, []byte("pass"), o.password)
	assert.Equal(t, uint16(5), o.keepAlive)
	assert.False(t, o.cleanSession)
	assert.Equal(t, ProtocolVersion31, o.protocolVersion)
	assert.Equal(t, "will/topic", o.willTopic)
	assert.Equal(t, []byte("gone"), o.willPayload)
	assert.Equal(t, QoS2, o.willQoS)
	assert.True(t, o.willRetain)
	assert.Same(t, tlsConfig, o.tlsConfig)
	assert.Same(t, quicConfig, o.quicConfig)
	require.NotNil(t, o.proxyConfig)
	assert.Equal(t, "socks5://proxy:1080", o.proxyConfig.URL)
	assert.True(t, o.proxyFromEnv)
	assert.Equal(t, header, o.wsHeader)
	assert.Equal(t, time.Second, o.connectTimeout)
	assert.Equal(t, uint32(4096), o.maxPacketSize)
	require.NotNil(t, o.publishLimiter)
	assert.Equal(t, 10, o.publishLimiter.Burst())
	assert.Equal(t, []string{"tcp://a", "tcp://b"}, o.servers)
	assert.NotNil(t, o.serverResolver)
	assert.Same(t, listener, o.listener)
	assert.NotNil(t, o.executor)
	assert.Same(t, logger, o.logger)
	assert.Same(t, metrics, o.metrics)
}

func TestWithCredentials(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		expected []byte
	}{
		{"with password", "user", "pass", []byte("pass")},
		{"empty password", "user", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := applyOptions(WithCredentials("old", "old"), WithCredentials(tt.username, tt.password))
			assert.Equal(t, tt.username, o.username)
			assert.Equal(t, tt.expected, o.password)
		})
	}
}

func TestWithPublishRateLimit(t *testing.T) {
	t.Run("burst at least one", func(t *testing.T) {
		o := applyOptions(WithPublishRateLimit(5, 0))
		require.NotNil(t, o.publishLimiter)
		assert.Equal(t, 1, o.publishLimiter.Burst())
	})

	t.Run("disabled", func(t *testing.T) {
		o := applyOptions(WithPublishRateLimit(5, 1), WithPublishRateLimit(0, 1))
		assert.Nil(t, o.publishLimiter)
	})
}

func TestWithNilLoggerAndMetrics(t *testing.T) {
	o := applyOptions(WithLogger(nil), WithMetrics(nil))
	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.metrics)
}
