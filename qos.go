package mqtt3

import "fmt"

// QoS is the MQTT quality of service level. The value is wire significant.
type QoS byte

// QoS levels.
const (
	QoS0 QoS = 0
	QoS1 QoS = 1
	QoS2 QoS = 2
)

// Named aliases for the QoS levels.
const (
	AtMostOnce  = QoS0
	AtLeastOnce = QoS1
	ExactlyOnce = QoS2
)

// Valid returns true for QoS 0, 1 and 2.
func (q QoS) Valid() bool {
	return q <= QoS2
}

// String returns the string representation of the QoS level.
func (q QoS) String() string {
	switch q {
	case QoS0:
		return "at most once"
	case QoS1:
		return "at least once"
	case QoS2:
		return "exactly once"
	default:
		return fmt.Sprintf("invalid(%d)", byte(q))
	}
}

// step is what a single inbound packet asks of the connection.
// The message is queued for the application before the reply is written,
// so every message is delivered before it is acknowledged.
type step struct {
	// deliver is the application message carried by an inbound PUBLISH.
	deliver *Message

	// reply is the protocol follow-up sent on the decode goroutine.
	reply OutboundPacket

	// complete is the identifier of the action that finished, 0 for none.
	complete uint16

	// release drops complete from the store; PUBCOMP only peeks on decode.
	release bool

	suback  *SubackPacket
	connack *ConnackPacket
	pong    bool
}

// deliveryStep runs one inbound packet through the QoS flows.
//
//	outbound QoS 1: PUBLISH -> PUBACK completes
//	outbound QoS 2: PUBLISH -> PUBREC, reply PUBREL -> PUBCOMP completes
//	inbound  QoS 1: PUBLISH delivered, reply PUBACK
//	inbound  QoS 2: PUBLISH delivered, reply PUBREC; PUBREL, reply PUBCOMP
func deliveryStep(pkt InboundPacket) step {
	switch p := pkt.(type) {
	case *ConnackPacket:
		return step{connack: p}

	case *PublishPacket:
		s := step{deliver: newMessage(p)}
		switch p.QoS {
		case QoS1:
			s.reply = &PubackPacket{PacketID: p.PacketID}
		case QoS2:
			s.reply = &PubrecPacket{PacketID: p.PacketID}
		}
		return s

	case *PubackPacket:
		return step{complete: p.PacketID}

	case *PubrecPacket:
		return step{reply: &PubrelPacket{PacketID: p.PacketID}}

	case *PubrelPacket:
		return step{reply: &PubcompPacket{PacketID: p.PacketID}}

	case *PubcompPacket:
		return step{complete: p.PacketID, release: true}

	case *SubackPacket:
		return step{complete: p.PacketID, suback: p}

	case *UnsubackPacket:
		return step{complete: p.PacketID}

	case *PingrespPacket:
		return step{pong: true}
	}

	return step{}
}

// awaitsAck reports whether p needs a packet identifier and stays pending
// until the broker acknowledges it. A QoS 0 PUBLISH completes on send.
func awaitsAck(p OutboundPacket) (IdentifiedPacket, bool) {
	switch p := p.(type) {
	case *PublishPacket:
		return p, p.QoS > QoS0
	case *SubscribePacket:
		return p, true
	case *UnsubscribePacket:
		return p, true
	}
	return nil, false
}
