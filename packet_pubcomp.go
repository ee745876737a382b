package mqtt3

import "io"

// PubcompPacket represents an MQTT PUBCOMP packet.
// MQTT v3.1.1 spec: Section 3.7
type PubcompPacket struct {
	PacketID uint16

	// Publish is the QoS 2 PUBLISH this packet completes.
	// Only set on received packets.
	Publish *PublishPacket
}

// Type returns the packet type.
func (p *PubcompPacket) Type() PacketType { return PacketPUBCOMP }

// Flags returns the fixed header flags.
func (p *PubcompPacket) Flags() byte { return 0 }

// Validate validates the packet contents.
func (p *PubcompPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}
	return nil
}

func (p *PubcompPacket) encodeBody(w io.Writer) (int, error) {
	return encodeAck(w, p.PacketID)
}

// decode peeks the linked PUBLISH; the delivery step releases the
// identifier once the exchange is complete.
func (p *PubcompPacket) decode(r io.Reader, header FixedHeader, store *PacketIDStore) error {
	id, err := decodeAck(r, header)
	if err != nil {
		return err
	}
	p.PacketID = id

	p.Publish, err = resolveLinked(store, id, false, publishWithQoS(QoS2))
	return err
}
