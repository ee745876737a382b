package mqtt3

import "io"

// PingreqPacket represents an MQTT PINGREQ packet.
// MQTT v3.1.1 spec: Section 3.12
type PingreqPacket struct{}

// Type returns the packet type.
func (p *PingreqPacket) Type() PacketType { return PacketPINGREQ }

// Flags returns the fixed header flags.
func (p *PingreqPacket) Flags() byte { return 0 }

// Validate validates the packet contents.
func (p *PingreqPacket) Validate() error { return nil }

func (p *PingreqPacket) encodeBody(io.Writer) (int, error) { return 0, nil }

// PingrespPacket represents an MQTT PINGRESP packet.
// MQTT v3.1.1 spec: Section 3.13
type PingrespPacket struct{}

// Type returns the packet type.
func (p *PingrespPacket) Type() PacketType { return PacketPINGRESP }

func (p *PingrespPacket) decode(_ io.Reader, header FixedHeader, _ *PacketIDStore) error {
	if err := header.ValidateFlags(); err != nil {
		return err
	}
	if header.RemainingLength != 0 {
		return ErrRemainingLength
	}
	return nil
}
