package mqtt3

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSBroker starts a WebSocket endpoint that runs handle for each
// upgraded connection.
func newWSBroker(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()

	upgrader := websocket.Upgrader{Subprotocols: []string{WebSocketSubprotocol}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn, r)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestNewWSDialer(t *testing.T) {
	d := NewWSDialer(nil, nil)
	assert.Equal(t, []string{"mqtt"}, d.Subprotocols)
	assert.Nil(t, d.NetDialContext)

	p, err := NewProxyDialer("http://proxy:8080", "", "")
	require.NoError(t, err)
	assert.NotNil(t, NewWSDialer(nil, p).NetDialContext)
}

func TestWSTransport(t *testing.T) {
	type handshake struct {
		subprotocol string
		token       string
		clientID    string
	}
	got := make(chan handshake, 1)

	url := newWSBroker(t, func(conn *websocket.Conn, r *http.Request) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		cp, err := packets.ReadPacket(bytes.NewReader(data))
		if err != nil {
			return
		}
		connect, ok := cp.(*packets.ConnectPacket)
		if !ok {
			return
		}
		got <- handshake{
			subprotocol: conn.Subprotocol(),
			token:       r.Header.Get("X-Token"),
			clientID:    connect.ClientIdentifier,
		}

		// CONNACK split over two messages, then two PINGRESPs in one
		_ = conn.WriteMessage(websocket.BinaryMessage, connackAccepted[:2])
		_ = conn.WriteMessage(websocket.BinaryMessage, connackAccepted[2:])
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0xD0, 0x00, 0xD0, 0x00})

		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		_, _, _ = conn.ReadMessage()
	})

	events := newTransportEvents()
	tr := NewWSTransport(nil, http.Header{"X-Token": []string{"abc"}})
	tr.Connect(context.Background(), url, events)
	defer tr.Close()

	waitFor(t, events.connected)
	require.NoError(t, tr.Send(encodeConnect(t, "ws-client")))

	hs := waitFor(t, got)
	assert.Equal(t, WebSocketSubprotocol, hs.subprotocol)
	assert.Equal(t, "abc", hs.token)
	assert.Equal(t, "ws-client", hs.clientID)

	_, ok := waitFor(t, events.packets).(*ConnackPacket)
	assert.True(t, ok)
	_, ok = waitFor(t, events.packets).(*PingrespPacket)
	assert.True(t, ok)
	_, ok = waitFor(t, events.packets).(*PingrespPacket)
	assert.True(t, ok)

	assert.Equal(t, websocket.CloseGoingAway, waitFor(t, events.closed))
}

func TestWSTransportTextMessage(t *testing.T) {
	url := newWSBroker(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		_, _, _ = conn.ReadMessage()
	})

	events := newTransportEvents()
	tr := NewWSTransport(nil, nil)
	tr.Connect(context.Background(), url, events)
	defer tr.Close()

	waitFor(t, events.connected)
	assert.ErrorIs(t, waitFor(t, events.failed), ErrProtocolViolation)
}

func TestWSTransportHandshakeFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	events := newTransportEvents()
	tr := NewWSTransport(nil, nil)
	tr.Connect(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"), events)

	assert.ErrorIs(t, waitFor(t, events.failed), websocket.ErrBadHandshake)
	assert.ErrorIs(t, tr.Send([]byte{0xC0, 0x00}), ErrNotConnected)
}

func TestWSTransportClose(t *testing.T) {
	url := newWSBroker(t, func(conn *websocket.Conn, _ *http.Request) {
		_, _, _ = conn.ReadMessage()
	})

	events := newTransportEvents()
	tr := NewWSTransport(nil, nil)
	tr.Connect(context.Background(), url, events)
	waitFor(t, events.connected)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Send([]byte{0xC0, 0x00}), ErrNotConnected)
	assert.Empty(t, events.closed)
	assert.Empty(t, events.failed)
}
