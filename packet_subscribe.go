package mqtt3

import "io"

// SubscribePacket represents an MQTT SUBSCRIBE packet.
// MQTT v3.1.1 spec: Section 3.8
type SubscribePacket struct {
	PacketID uint16
	Topics   []TopicFilter
}

// Type returns the packet type.
func (p *SubscribePacket) Type() PacketType { return PacketSUBSCRIBE }

// Flags returns the fixed header flags.
func (p *SubscribePacket) Flags() byte { return 0x02 }

// GetPacketID returns the packet identifier.
func (p *SubscribePacket) GetPacketID() uint16 { return p.PacketID }

func (p *SubscribePacket) assignPacketID(id uint16) error {
	if p.PacketID != 0 {
		return ErrPacketIDAssigned
	}
	p.PacketID = id
	return nil
}

// Validate validates the packet contents.
func (p *SubscribePacket) Validate() error {
	if len(p.Topics) == 0 {
		return ErrEmptySubscription
	}
	for _, topic := range p.Topics {
		if err := topic.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p *SubscribePacket) encodeBody(w io.Writer) (int, error) {
	if p.PacketID == 0 {
		return 0, ErrPacketIDRequired
	}

	total, err := encodeUint16(w, p.PacketID)
	if err != nil {
		return total, err
	}

	for _, topic := range p.Topics {
		n, err := encodeString(w, topic.Filter)
		total += n
		if err != nil {
			return total, err
		}

		n, err = w.Write([]byte{byte(topic.QoS)})
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}
