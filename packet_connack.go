package mqtt3

import (
	"fmt"
	"io"
)

// ConnectReturnCode is the CONNACK return code.
type ConnectReturnCode byte

// CONNACK return codes.
const (
	ConnectAccepted             ConnectReturnCode = 0x00
	ConnectUnacceptableProtocol ConnectReturnCode = 0x01
	ConnectIdentifierRejected   ConnectReturnCode = 0x02
	ConnectServerUnavailable    ConnectReturnCode = 0x03
	ConnectBadCredentials       ConnectReturnCode = 0x04
	ConnectNotAuthorized        ConnectReturnCode = 0x05
)

// String returns the description of the return code.
func (c ConnectReturnCode) String() string {
	switch c {
	case ConnectAccepted:
		return "connection accepted"
	case ConnectUnacceptableProtocol:
		return "unacceptable protocol version"
	case ConnectIdentifierRejected:
		return "identifier rejected"
	case ConnectServerUnavailable:
		return "server unavailable"
	case ConnectBadCredentials:
		return "bad user name or password"
	case ConnectNotAuthorized:
		return "not authorized"
	default:
		return fmt.Sprintf("unknown return code %d", byte(c))
	}
}

// Known returns true for the return codes defined by the protocol.
func (c ConnectReturnCode) Known() bool {
	return c <= ConnectNotAuthorized
}

// ConnackPacket represents an MQTT CONNACK packet.
// MQTT v3.1.1 spec: Section 3.2
type ConnackPacket struct {
	// SessionPresent indicates whether the broker resumed a stored session.
	SessionPresent bool

	// ReturnCode is the result of the connection attempt.
	ReturnCode ConnectReturnCode
}

// Type returns the packet type.
func (p *ConnackPacket) Type() PacketType { return PacketCONNACK }

// Accepted returns true when the broker accepted the connection.
func (p *ConnackPacket) Accepted() bool { return p.ReturnCode == ConnectAccepted }

func (p *ConnackPacket) decode(r io.Reader, header FixedHeader, _ *PacketIDStore) error {
	if header.RemainingLength != 2 {
		return ErrRemainingLength
	}

	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}

	p.SessionPresent = buf[0]&0x01 != 0
	p.ReturnCode = ConnectReturnCode(buf[1])
	return nil
}
