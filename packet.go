package mqtt3

import "io"

// Packet is the interface that all MQTT control packets implement.
type Packet interface {
	// Type returns the control packet type.
	Type() PacketType
}

// OutboundPacket is a packet sent by the client.
// The set of implementations is closed to this package.
type OutboundPacket interface {
	Packet

	// Flags returns the four fixed header flag bits.
	Flags() byte

	// Validate checks the packet before it is encoded.
	Validate() error

	// encodeBody writes the variable header and payload.
	encodeBody(w io.Writer) (int, error)
}

// InboundPacket is a packet received from the broker.
// The set of implementations is closed to this package.
type InboundPacket interface {
	Packet

	// decode fills the packet from exactly header.RemainingLength bytes.
	// Acknowledgements resolve their linked outbound packet through store.
	decode(r io.Reader, header FixedHeader, store *PacketIDStore) error
}

// IdentifiedPacket is an outbound packet that carries a packet identifier.
type IdentifiedPacket interface {
	OutboundPacket

	// GetPacketID returns the packet identifier, 0 while unassigned.
	GetPacketID() uint16

	// assignPacketID sets the identifier; it may only happen once.
	assignPacketID(id uint16) error
}

// TopicFilter is a topic with the requested or granted QoS.
type TopicFilter struct {
	Filter string
	QoS    QoS
}

// Validate checks the topic filter and its QoS.
func (f TopicFilter) Validate() error {
	if err := ValidateTopicFilter(f.Filter); err != nil {
		return err
	}
	if !f.QoS.Valid() {
		return ErrInvalidQoS
	}
	return nil
}

// Message is an application message delivered to the client.
type Message struct {
	// Topic is the topic name the message was published to.
	Topic string

	// Payload is the application message payload.
	Payload []byte

	// QoS is the delivery QoS used by the broker.
	QoS QoS

	// Retain is set when the broker delivers a retained message.
	Retain bool

	// Duplicate is set when the broker marks a redelivery.
	Duplicate bool

	// PacketID is the broker-assigned identifier; 0 for QoS 0.
	PacketID uint16
}

// Clone creates a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}

	clone := *m
	if m.Payload != nil {
		clone.Payload = make([]byte, len(m.Payload))
		copy(clone.Payload, m.Payload)
	}
	return &clone
}

// newMessage builds the delivered message from an inbound PUBLISH.
func newMessage(p *PublishPacket) *Message {
	return &Message{
		Topic:     p.Topic,
		Payload:   p.Payload,
		QoS:       p.QoS,
		Retain:    p.Retain,
		Duplicate: p.DUP,
		PacketID:  p.PacketID,
	}
}
