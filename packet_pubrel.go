package mqtt3

import "io"

// PubrelPacket represents an MQTT PUBREL packet.
// An outbound PUBREL reuses the identifier of the PUBREC it answers.
// MQTT v3.1.1 spec: Section 3.6
type PubrelPacket struct {
	PacketID uint16
}

// Type returns the packet type.
func (p *PubrelPacket) Type() PacketType { return PacketPUBREL }

// Flags returns the fixed header flags.
func (p *PubrelPacket) Flags() byte { return 0x02 }

// GetPacketID returns the packet identifier.
func (p *PubrelPacket) GetPacketID() uint16 { return p.PacketID }

func (p *PubrelPacket) assignPacketID(id uint16) error {
	if p.PacketID != 0 {
		return ErrPacketIDAssigned
	}
	p.PacketID = id
	return nil
}

// Validate validates the packet contents.
func (p *PubrelPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	return nil
}

func (p *PubrelPacket) encodeBody(w io.Writer) (int, error) {
	return encodeAck(w, p.PacketID)
}

// decode reads a broker PUBREL. Its identifier belongs to the broker's
// QoS 2 flow and is not looked up in the store.
func (p *PubrelPacket) decode(r io.Reader, header FixedHeader, _ *PacketIDStore) error {
	id, err := decodeAck(r, header)
	if err != nil {
		return err
	}
	p.PacketID = id
	return nil
}
