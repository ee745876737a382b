package mqtt3

import "io"

// DisconnectPacket represents an MQTT DISCONNECT packet.
// MQTT v3.1.1 spec: Section 3.14
type DisconnectPacket struct{}

// Type returns the packet type.
func (p *DisconnectPacket) Type() PacketType { return PacketDISCONNECT }

// Flags returns the fixed header flags.
func (p *DisconnectPacket) Flags() byte { return 0 }

// Validate validates the packet contents.
func (p *DisconnectPacket) Validate() error { return nil }

func (p *DisconnectPacket) encodeBody(io.Writer) (int, error) { return 0, nil }
