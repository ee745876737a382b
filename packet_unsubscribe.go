package mqtt3

import "io"

// UnsubscribePacket represents an MQTT UNSUBSCRIBE packet.
// MQTT v3.1.1 spec: Section 3.10
type UnsubscribePacket struct {
	PacketID uint16
	Topics   []string
}

// Type returns the packet type.
func (p *UnsubscribePacket) Type() PacketType { return PacketUNSUBSCRIBE }

// Flags returns the fixed header flags.
func (p *UnsubscribePacket) Flags() byte { return 0x02 }

// GetPacketID returns the packet identifier.
func (p *UnsubscribePacket) GetPacketID() uint16 { return p.PacketID }

func (p *UnsubscribePacket) assignPacketID(id uint16) error {
	if p.PacketID != 0 {
		return ErrPacketIDAssigned
	}
	p.PacketID = id
	return nil
}

// Validate validates the packet contents.
func (p *UnsubscribePacket) Validate() error {
	if len(p.Topics) == 0 {
		return ErrEmptySubscription
	}
	for _, topic := range p.Topics {
		if err := ValidateTopicFilter(topic); err != nil {
			return err
		}
	}
	return nil
}

func (p *UnsubscribePacket) encodeBody(w io.Writer) (int, error) {
	if p.PacketID == 0 {
		return 0, ErrPacketIDRequired
	}

	total, err := encodeUint16(w, p.PacketID)
	if err != nil {
		return total, err
	}

	for _, topic := range p.Topics {
		n, err := encodeString(w, topic)
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// UnsubackPacket represents an MQTT UNSUBACK packet.
// MQTT v3.1.1 spec: Section 3.11
type UnsubackPacket struct {
	PacketID uint16

	// Unsubscribe is the request being acknowledged.
	Unsubscribe *UnsubscribePacket
}

// Type returns the packet type.
func (p *UnsubackPacket) Type() PacketType { return PacketUNSUBACK }

func (p *UnsubackPacket) decode(r io.Reader, header FixedHeader, store *PacketIDStore) error {
	id, err := decodeAck(r, header)
	if err != nil {
		return err
	}
	p.PacketID = id

	p.Unsubscribe, err = resolveLinked[*UnsubscribePacket](store, id, true, nil)
	return err
}
