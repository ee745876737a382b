package mqtt3

import (
	"bytes"
	"testing"

	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Frames written by the engine must parse with an independent codec, and
// frames written by that codec must parse with the engine.

func pahoRead(t *testing.T, frame []byte) packets.ControlPacket {
	t.Helper()

	r := bytes.NewReader(frame)
	cp, err := packets.ReadPacket(r)
	require.NoError(t, err)
	assert.Zero(t, r.Len(), "frame fully consumed")
	return cp
}

func pahoFrame(t *testing.T, cp packets.ControlPacket) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, cp.Write(&buf))
	return buf.Bytes()
}

func TestConformanceConnect(t *testing.T) {
	tests := []struct {
		name   string
		packet ConnectPacket
	}{
		{
			name:   "3.1.1 minimal",
			packet: ConnectPacket{ClientID: "client-1", CleanSession: true, KeepAlive: 30},
		},
		{
			name: "3.1 with will and credentials",
			packet: ConnectPacket{
				ProtocolVersion: ProtocolVersion31,
				ClientID:        "legacy",
				KeepAlive:       60,
				Username:        "user",
				Password:        []byte("secret"),
				WillTopic:       "status/legacy",
				WillMessage:     []byte("offline"),
				WillQoS:         QoS2,
				WillRetain:      true,
			},
		},
		{
			name:   "3.1.1 empty client id",
			packet: ConnectPacket{CleanSession: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewEngine(0).Encode(&tt.packet)
			require.NoError(t, err)

			cp, ok := pahoRead(t, frame).(*packets.ConnectPacket)
			require.True(t, ok)

			version := tt.packet.version()
			assert.Equal(t, version.Name(), cp.ProtocolName)
			assert.Equal(t, byte(version), cp.ProtocolVersion)
			assert.Equal(t, tt.packet.ClientID, cp.ClientIdentifier)
			assert.Equal(t, tt.packet.CleanSession, cp.CleanSession)
			assert.Equal(t, tt.packet.KeepAlive, cp.Keepalive)
			assert.Equal(t, tt.packet.hasWill(), cp.WillFlag)
			assert.Equal(t, byte(tt.packet.WillQoS), cp.WillQos)
			assert.Equal(t, tt.packet.WillRetain, cp.WillRetain)
			assert.Equal(t, tt.packet.WillTopic, cp.WillTopic)
			assert.Equal(t, tt.packet.Username != "", cp.UsernameFlag)
			assert.Equal(t, tt.packet.Username, cp.Username)
			assert.Equal(t, tt.packet.Password != nil, cp.PasswordFlag)
			assert.Zero(t, cp.ReservedBit)

			if tt.packet.hasWill() {
				assert.Equal(t, tt.packet.WillMessage, cp.WillMessage)
			}
			if tt.packet.Password != nil {
				assert.Equal(t, tt.packet.Password, cp.Password)
			}
			assert.Equal(t, byte(packets.Accepted), cp.Validate())
		})
	}
}

func TestConformancePublishOutbound(t *testing.T) {
	tests := []struct {
		name   string
		packet PublishPacket
	}{
		{"qos 0", PublishPacket{Topic: "a/b", Payload: []byte("hello")}},
		{"qos 1 retained", PublishPacket{Topic: "a/b", Payload: []byte{0, 1, 2}, QoS: QoS1, Retain: true}},
		{"qos 2 empty payload", PublishPacket{Topic: "x", QoS: QoS2}},
		{"qos 1 redelivery", PublishPacket{Topic: "x/y/z", Payload: []byte("again"), QoS: QoS1, DUP: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := tt.packet
			frame, err := NewEngine(0).Encode(&pub)
			require.NoError(t, err)

			cp, ok := pahoRead(t, frame).(*packets.PublishPacket)
			require.True(t, ok)

			assert.Equal(t, pub.Topic, cp.TopicName)
			assert.Equal(t, byte(pub.QoS), cp.Qos)
			assert.Equal(t, pub.Retain, cp.Retain)
			assert.Equal(t, pub.DUP, cp.Dup)
			assert.Equal(t, pub.PacketID, cp.MessageID)
			assert.Equal(t, len(pub.Payload), len(cp.Payload))
			if len(pub.Payload) > 0 {
				assert.Equal(t, pub.Payload, cp.Payload)
			}
		})
	}
}

func TestConformanceSubscribeOutbound(t *testing.T) {
	sub := &SubscribePacket{Topics: []TopicFilter{
		{Filter: "sensors/+/temp", QoS: QoS1},
		{Filter: "alerts/#", QoS: QoS2},
		{Filter: "#", QoS: QoS0},
	}}
	frame, err := NewEngine(0).Encode(sub)
	require.NoError(t, err)

	cp, ok := pahoRead(t, frame).(*packets.SubscribePacket)
	require.True(t, ok)
	assert.Equal(t, byte(1), cp.Qos, "SUBSCRIBE carries flags 0010")
	assert.Equal(t, sub.PacketID, cp.MessageID)
	assert.Equal(t, []string{"sensors/+/temp", "alerts/#", "#"}, cp.Topics)
	assert.Equal(t, []byte{1, 2, 0}, cp.Qoss)
}

func TestConformanceUnsubscribeOutbound(t *testing.T) {
	unsub := &UnsubscribePacket{Topics: []string{"a/+", "b"}}
	frame, err := NewEngine(0).Encode(unsub)
	require.NoError(t, err)

	cp, ok := pahoRead(t, frame).(*packets.UnsubscribePacket)
	require.True(t, ok)
	assert.Equal(t, byte(1), cp.Qos)
	assert.Equal(t, unsub.PacketID, cp.MessageID)
	assert.Equal(t, []string{"a/+", "b"}, cp.Topics)
}

func TestConformanceControlOutbound(t *testing.T) {
	tests := []struct {
		name   string
		packet OutboundPacket
		check  func(t *testing.T, cp packets.ControlPacket)
	}{
		{"puback", &PubackPacket{PacketID: 11}, func(t *testing.T, cp packets.ControlPacket) {
			assert.Equal(t, uint16(11), cp.(*packets.PubackPacket).MessageID)
		}},
		{"pubrec", &PubrecPacket{PacketID: 12}, func(t *testing.T, cp packets.ControlPacket) {
			assert.Equal(t, uint16(12), cp.(*packets.PubrecPacket).MessageID)
		}},
		{"pubrel", &PubrelPacket{PacketID: 13}, func(t *testing.T, cp packets.ControlPacket) {
			p := cp.(*packets.PubrelPacket)
			assert.Equal(t, uint16(13), p.MessageID)
			assert.Equal(t, byte(1), p.Qos)
		}},
		{"pubcomp", &PubcompPacket{PacketID: 14}, func(t *testing.T, cp packets.ControlPacket) {
			assert.Equal(t, uint16(14), cp.(*packets.PubcompPacket).MessageID)
		}},
		{"pingreq", &PingreqPacket{}, func(t *testing.T, cp packets.ControlPacket) {
			assert.IsType(t, &packets.PingreqPacket{}, cp)
		}},
		{"disconnect", &DisconnectPacket{}, func(t *testing.T, cp packets.ControlPacket) {
			assert.IsType(t, &packets.DisconnectPacket{}, cp)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewEngine(0).Encode(tt.packet)
			require.NoError(t, err)
			tt.check(t, pahoRead(t, frame))
		})
	}
}

func TestConformanceConnackInbound(t *testing.T) {
	for _, code := range []byte{packets.Accepted, packets.ErrRefusedIDRejected, packets.ErrRefusedNotAuthorised} {
		ca := packets.NewControlPacket(packets.Connack).(*packets.ConnackPacket)
		ca.SessionPresent = code == packets.Accepted
		ca.ReturnCode = code

		pkt, err := NewEngine(0).ReadPacket(bytes.NewReader(pahoFrame(t, ca)))
		require.NoError(t, err)

		connack, ok := pkt.(*ConnackPacket)
		require.True(t, ok)
		assert.Equal(t, ConnectReturnCode(code), connack.ReturnCode)
		assert.Equal(t, ca.SessionPresent, connack.SessionPresent)
	}
}

func TestConformancePublishInbound(t *testing.T) {
	tests := []struct {
		name   string
		qos    byte
		id     uint16
		dup    bool
		retain bool
	}{
		{"qos 0", 0, 0, false, false},
		{"qos 1", 1, 100, false, true},
		{"qos 2 redelivery", 2, 65535, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := packets.NewControlPacket(packets.Publish).(*packets.PublishPacket)
			pp.TopicName = "devices/7/state"
			pp.Qos = tt.qos
			pp.MessageID = tt.id
			pp.Dup = tt.dup
			pp.Retain = tt.retain
			pp.Payload = []byte(`{"on":true}`)

			pkt, err := NewEngine(0).ReadPacket(bytes.NewReader(pahoFrame(t, pp)))
			require.NoError(t, err)

			pub, ok := pkt.(*PublishPacket)
			require.True(t, ok)
			assert.Equal(t, "devices/7/state", pub.Topic)
			assert.Equal(t, QoS(tt.qos), pub.QoS)
			assert.Equal(t, tt.id, pub.PacketID)
			assert.Equal(t, tt.dup, pub.DUP)
			assert.Equal(t, tt.retain, pub.Retain)
			assert.Equal(t, []byte(`{"on":true}`), pub.Payload)
		})
	}
}

func TestConformanceAcksInbound(t *testing.T) {
	e := NewEngine(0)

	qos1 := &PublishPacket{Topic: "a", QoS: QoS1}
	qos2 := &PublishPacket{Topic: "b", QoS: QoS2}
	sub := &SubscribePacket{Topics: []TopicFilter{{Filter: "c", QoS: QoS1}, {Filter: "d", QoS: QoS2}}}
	unsub := &UnsubscribePacket{Topics: []string{"c"}}
	for _, p := range []OutboundPacket{qos1, qos2, sub, unsub} {
		_, err := e.Encode(p)
		require.NoError(t, err)
	}

	read := func(cp packets.ControlPacket) InboundPacket {
		pkt, err := e.ReadPacket(bytes.NewReader(pahoFrame(t, cp)))
		require.NoError(t, err)
		return pkt
	}

	puback := packets.NewControlPacket(packets.Puback).(*packets.PubackPacket)
	puback.MessageID = qos1.PacketID
	assert.Same(t, qos1, read(puback).(*PubackPacket).Publish)

	pubrec := packets.NewControlPacket(packets.Pubrec).(*packets.PubrecPacket)
	pubrec.MessageID = qos2.PacketID
	assert.Same(t, qos2, read(pubrec).(*PubrecPacket).Publish)

	pubcomp := packets.NewControlPacket(packets.Pubcomp).(*packets.PubcompPacket)
	pubcomp.MessageID = qos2.PacketID
	assert.Same(t, qos2, read(pubcomp).(*PubcompPacket).Publish)
	e.Release(qos2.PacketID)

	suback := packets.NewControlPacket(packets.Suback).(*packets.SubackPacket)
	suback.MessageID = sub.PacketID
	suback.ReturnCodes = []byte{0x01, 0x80}
	got := read(suback).(*SubackPacket)
	assert.Equal(t, []TopicFilter{{Filter: "c", QoS: QoS1}}, got.Granted)
	assert.Equal(t, []string{"d"}, got.Rejected)

	unsuback := packets.NewControlPacket(packets.Unsuback).(*packets.UnsubackPacket)
	unsuback.MessageID = unsub.PacketID
	assert.Same(t, unsub, read(unsuback).(*UnsubackPacket).Unsubscribe)

	pubrel := packets.NewControlPacket(packets.Pubrel).(*packets.PubrelPacket)
	pubrel.MessageID = 900
	assert.Equal(t, uint16(900), read(pubrel).(*PubrelPacket).PacketID)

	assert.IsType(t, &PingrespPacket{}, read(packets.NewControlPacket(packets.Pingresp)))
	assert.Zero(t, e.Store().Len())
}
