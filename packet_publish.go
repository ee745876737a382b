package mqtt3

import (
	"fmt"
	"io"
)

// PUBLISH packet errors.
var (
	ErrPublishDUPWithQoS0 = fmt.Errorf("%w: DUP flag set on QoS 0 PUBLISH", ErrProtocolViolation)
	ErrPublishPayload     = fmt.Errorf("%w: PUBLISH payload length", ErrMalformedPacket)
)

// PublishPacket represents an MQTT PUBLISH packet.
// It is sent by the client and received from the broker.
// MQTT v3.1.1 spec: Section 3.3
type PublishPacket struct {
	// Topic is the topic name.
	Topic string

	// Payload is the application message.
	Payload []byte

	// QoS is the delivery guarantee.
	QoS QoS

	// Retain asks the broker to keep the message for future subscribers.
	Retain bool

	// DUP marks a redelivery.
	DUP bool

	// PacketID is present for QoS 1 and 2.
	PacketID uint16
}

// Type returns the packet type.
func (p *PublishPacket) Type() PacketType { return PacketPUBLISH }

// Flags returns the fixed header flags.
func (p *PublishPacket) Flags() byte { return publishFlags(p.DUP, p.QoS, p.Retain) }

// GetPacketID returns the packet identifier.
func (p *PublishPacket) GetPacketID() uint16 { return p.PacketID }

func (p *PublishPacket) assignPacketID(id uint16) error {
	if p.PacketID != 0 {
		return ErrPacketIDAssigned
	}
	p.PacketID = id
	return nil
}

// Validate validates the packet contents.
func (p *PublishPacket) Validate() error {
	if err := ValidateTopicName(p.Topic); err != nil {
		return err
	}
	if !p.QoS.Valid() {
		return ErrInvalidQoS
	}
	if p.QoS == QoS0 && p.DUP {
		return ErrPublishDUPWithQoS0
	}
	return nil
}

func (p *PublishPacket) encodeBody(w io.Writer) (int, error) {
	total, err := encodeString(w, p.Topic)
	if err != nil {
		return total, err
	}

	if p.QoS > QoS0 {
		if p.PacketID == 0 {
			return total, ErrPacketIDRequired
		}
		n, err := encodeUint16(w, p.PacketID)
		total += n
		if err != nil {
			return total, err
		}
	}

	n, err := w.Write(p.Payload)
	return total + n, err
}

func (p *PublishPacket) decode(r io.Reader, header FixedHeader, _ *PacketIDStore) error {
	if err := header.ValidateFlags(); err != nil {
		return err
	}

	p.DUP = header.DUP()
	p.QoS = header.QoS()
	p.Retain = header.Retain()

	topic, consumed, err := decodeString(r)
	if err != nil {
		return err
	}
	p.Topic = topic

	if p.QoS > QoS0 {
		id, n, err := decodeUint16(r)
		consumed += n
		if err != nil {
			return err
		}
		if id == 0 {
			return ErrPacketIDRequired
		}
		p.PacketID = id
	}

	size := int(header.RemainingLength) - consumed
	if size < 0 {
		return ErrPublishPayload
	}

	p.Payload = make([]byte, size)
	_, err = io.ReadFull(r, p.Payload)
	return err
}
