package mqtt3

import "io"

// PubackPacket represents an MQTT PUBACK packet.
// MQTT v3.1.1 spec: Section 3.4
type PubackPacket struct {
	PacketID uint16

	// Publish is the QoS 1 PUBLISH this acknowledgement completes.
	// Only set on received packets.
	Publish *PublishPacket
}

// Type returns the packet type.
func (p *PubackPacket) Type() PacketType { return PacketPUBACK }

// Flags returns the fixed header flags.
func (p *PubackPacket) Flags() byte { return 0 }

// Validate validates the packet contents.
func (p *PubackPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	return nil
}

func (p *PubackPacket) encodeBody(w io.Writer) (int, error) {
	return encodeAck(w, p.PacketID)
}

func (p *PubackPacket) decode(r io.Reader, header FixedHeader, store *PacketIDStore) error {
	id, err := decodeAck(r, header)
	if err != nil {
		return err
	}
	p.PacketID = id

	p.Publish, err = resolveLinked(store, id, true, publishWithQoS(QoS1))
	return err
}
