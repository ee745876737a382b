package mqtt3

import "io"

// PubrecPacket represents an MQTT PUBREC packet.
// MQTT v3.1.1 spec: Section 3.5
type PubrecPacket struct {
	PacketID uint16

	// Publish is the QoS 2 PUBLISH being acknowledged. The store entry stays
	// alive until the matching PUBCOMP. Only set on received packets.
	Publish *PublishPacket
}

// Type returns the packet type.
func (p *PubrecPacket) Type() PacketType { return PacketPUBREC }

// Flags returns the fixed header flags.
func (p *PubrecPacket) Flags() byte { return 0 }

// Validate validates the packet contents.
func (p *PubrecPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	return nil
}

func (p *PubrecPacket) encodeBody(w io.Writer) (int, error) {
	return encodeAck(w, p.PacketID)
}

func (p *PubrecPacket) decode(r io.Reader, header FixedHeader, store *PacketIDStore) error {
	id, err := decodeAck(r, header)
	if err != nil {
		return err
	}
	p.PacketID = id

	p.Publish, err = resolveLinked(store, id, false, publishWithQoS(QoS2))
	return err
}
