package mqtt3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQoS(t *testing.T) {
	tests := []struct {
		qos   QoS
		valid bool
		str   string
	}{
		{QoS0, true, "at most once"},
		{QoS1, true, "at least once"},
		{QoS2, true, "exactly once"},
		{QoS(3), false, "invalid(3)"},
		{QoS(0x80), false, "invalid(128)"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.qos.Valid())
			assert.Equal(t, tt.str, tt.qos.String())
		})
	}

	assert.Equal(t, QoS0, AtMostOnce)
	assert.Equal(t, QoS1, AtLeastOnce)
	assert.Equal(t, QoS2, ExactlyOnce)
}

func TestDeliveryStep(t *testing.T) {
	connack := &ConnackPacket{ReturnCode: ConnectAccepted}
	suback := &SubackPacket{PacketID: 4}

	tests := []struct {
		name     string
		packet   InboundPacket
		expected step
	}{
		{
			name:     "connack",
			packet:   connack,
			expected: step{connack: connack},
		},
		{
			name:     "publish qos 0",
			packet:   &PublishPacket{Topic: "a", Payload: []byte("x")},
			expected: step{deliver: &Message{Topic: "a", Payload: []byte("x")}},
		},
		{
			name:   "publish qos 1",
			packet: &PublishPacket{Topic: "a", QoS: QoS1, PacketID: 7},
			expected: step{
				deliver: &Message{Topic: "a", QoS: QoS1, PacketID: 7},
				reply:   &PubackPacket{PacketID: 7},
			},
		},
		{
			name:   "publish qos 2 redelivered",
			packet: &PublishPacket{Topic: "a", QoS: QoS2, PacketID: 8, DUP: true, Retain: true},
			expected: step{
				deliver: &Message{Topic: "a", QoS: QoS2, PacketID: 8, Duplicate: true, Retain: true},
				reply:   &PubrecPacket{PacketID: 8},
			},
		},
		{
			name:     "puback",
			packet:   &PubackPacket{PacketID: 1},
			expected: step{complete: 1},
		},
		{
			name:     "pubrec",
			packet:   &PubrecPacket{PacketID: 2},
			expected: step{reply: &PubrelPacket{PacketID: 2}},
		},
		{
			name:     "pubrel",
			packet:   &PubrelPacket{PacketID: 3},
			expected: step{reply: &PubcompPacket{PacketID: 3}},
		},
		{
			name:     "pubcomp",
			packet:   &PubcompPacket{PacketID: 2},
			expected: step{complete: 2, release: true},
		},
		{
			name:     "suback",
			packet:   suback,
			expected: step{complete: 4, suback: suback},
		},
		{
			name:     "unsuback",
			packet:   &UnsubackPacket{PacketID: 5},
			expected: step{complete: 5},
		},
		{
			name:     "pingresp",
			packet:   &PingrespPacket{},
			expected: step{pong: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, deliveryStep(tt.packet))
		})
	}
}

func TestAwaitsAck(t *testing.T) {
	tests := []struct {
		name   string
		packet OutboundPacket
		awaits bool
	}{
		{"publish qos 0", &PublishPacket{Topic: "a"}, false},
		{"publish qos 1", &PublishPacket{Topic: "a", QoS: QoS1}, true},
		{"publish qos 2", &PublishPacket{Topic: "a", QoS: QoS2}, true},
		{"subscribe", &SubscribePacket{}, true},
		{"unsubscribe", &UnsubscribePacket{}, true},
		{"connect", &ConnectPacket{}, false},
		{"puback", &PubackPacket{PacketID: 1}, false},
		{"pubrel", &PubrelPacket{PacketID: 1}, false},
		{"pingreq", &PingreqPacket{}, false},
		{"disconnect", &DisconnectPacket{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, awaits := awaitsAck(tt.packet)
			assert.Equal(t, tt.awaits, awaits)
			if awaits {
				require.NotNil(t, ip)
				assert.Equal(t, tt.packet.Type(), ip.Type())
			}
		})
	}
}
