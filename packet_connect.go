package mqtt3

import (
	"fmt"
	"io"
)

// ProtocolVersion is the protocol level sent in CONNECT.
type ProtocolVersion byte

// Supported protocol versions.
const (
	ProtocolVersion31  ProtocolVersion = 3
	ProtocolVersion311 ProtocolVersion = 4
)

// Name returns the protocol name carried in the CONNECT variable header.
func (v ProtocolVersion) Name() string {
	if v == ProtocolVersion31 {
		return "MQIsdp"
	}
	return "MQTT"
}

// String returns the human readable version.
func (v ProtocolVersion) String() string {
	switch v {
	case ProtocolVersion31:
		return "3.1"
	case ProtocolVersion311:
		return "3.1.1"
	default:
		return fmt.Sprintf("unknown(%d)", byte(v))
	}
}

// Valid returns true for the versions this package speaks.
func (v ProtocolVersion) Valid() bool {
	return v == ProtocolVersion31 || v == ProtocolVersion311
}

// Connect flag bit positions.
const (
	connectFlagCleanSession = 0x02
	connectFlagWill         = 0x04
	connectFlagWillRetain   = 0x20
	connectFlagPassword     = 0x40
	connectFlagUsername     = 0x80
	connectWillQoSShift     = 3
)

// Client identifiers in MQTT 3.1 are limited to 23 bytes.
const maxClientIDLen31 = 23

// CONNECT packet errors.
var (
	ErrInvalidProtocolVersion = fmt.Errorf("%w: unsupported protocol version", ErrProtocolViolation)
	ErrInvalidConnectFlags    = fmt.Errorf("%w: invalid connect flags", ErrProtocolViolation)
	ErrClientIDTooLong        = fmt.Errorf("%w: client ID too long", ErrProtocolViolation)
	ErrClientIDRequired       = fmt.Errorf("%w: client ID required", ErrProtocolViolation)
)

// ConnectPacket represents an MQTT CONNECT packet.
// MQTT v3.1.1 spec: Section 3.1
type ConnectPacket struct {
	// ProtocolVersion selects 3.1 or 3.1.1; zero means 3.1.1.
	ProtocolVersion ProtocolVersion

	// ClientID is the client identifier.
	ClientID string

	// CleanSession asks the broker to discard any previous session.
	CleanSession bool

	// KeepAlive is the keep alive interval in seconds.
	KeepAlive uint16

	// Username for authentication. Empty means no username.
	Username string

	// Password for authentication. Nil means no password.
	Password []byte

	// Will message. The will is present when WillTopic is set.
	WillTopic   string
	WillMessage []byte
	WillQoS     QoS
	WillRetain  bool
}

// Type returns the packet type.
func (p *ConnectPacket) Type() PacketType { return PacketCONNECT }

// Flags returns the fixed header flags.
func (p *ConnectPacket) Flags() byte { return 0 }

func (p *ConnectPacket) version() ProtocolVersion {
	if p.ProtocolVersion == 0 {
		return ProtocolVersion311
	}
	return p.ProtocolVersion
}

func (p *ConnectPacket) hasWill() bool {
	return p.WillTopic != "" || p.WillMessage != nil
}

// connectFlags packs the connect flags byte.
func (p *ConnectPacket) connectFlags() byte {
	var flags byte
	if p.CleanSession {
		flags |= connectFlagCleanSession
	}
	if p.hasWill() {
		flags |= connectFlagWill
		flags |= byte(p.WillQoS) << connectWillQoSShift
		if p.WillRetain {
			flags |= connectFlagWillRetain
		}
	}
	if p.Username != "" {
		flags |= connectFlagUsername
	}
	if p.Password != nil {
		flags |= connectFlagPassword
	}
	return flags
}

// Validate validates the packet contents.
func (p *ConnectPacket) Validate() error {
	version := p.version()
	if !version.Valid() {
		return ErrInvalidProtocolVersion
	}

	if p.ClientID == "" && (!p.CleanSession || version == ProtocolVersion31) {
		return ErrClientIDRequired
	}
	if version == ProtocolVersion31 && len(p.ClientID) > maxClientIDLen31 {
		return ErrClientIDTooLong
	}

	if p.WillTopic != "" && p.WillMessage == nil {
		return ErrWillIncomplete
	}
	if p.WillMessage != nil && p.WillTopic == "" {
		return ErrWillIncomplete
	}
	if p.WillQoS > QoS2 {
		return ErrInvalidConnectFlags
	}
	if !p.hasWill() && (p.WillRetain || p.WillQoS != QoS0) {
		return ErrInvalidConnectFlags
	}

	if p.Password != nil && p.Username == "" {
		return ErrPasswordNoUser
	}

	return nil
}

func (p *ConnectPacket) encodeBody(w io.Writer) (int, error) {
	version := p.version()

	total, err := encodeString(w, version.Name())
	if err != nil {
		return total, err
	}

	n, err := w.Write([]byte{byte(version), p.connectFlags()})
	total += n
	if err != nil {
		return total, err
	}

	n, err = encodeUint16(w, p.KeepAlive)
	total += n
	if err != nil {
		return total, err
	}

	n, err = encodeString(w, p.ClientID)
	total += n
	if err != nil {
		return total, err
	}

	if p.hasWill() {
		n, err = encodeString(w, p.WillTopic)
		total += n
		if err != nil {
			return total, err
		}

		n, err = encodeBinary(w, p.WillMessage)
		total += n
		if err != nil {
			return total, err
		}
	}

	if p.Username != "" {
		n, err = encodeString(w, p.Username)
		total += n
		if err != nil {
			return total, err
		}
	}

	if p.Password != nil {
		n, err = encodeBinary(w, p.Password)
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}
