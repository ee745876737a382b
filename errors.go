package mqtt3

import (
	"errors"
	"fmt"
)

// Error categories. Every decode and protocol error returned by this package
// matches exactly one of them with errors.Is.
var (
	// ErrMalformedPacket reports bytes that do not form a valid packet.
	// The connection is closed because framing cannot be recovered.
	ErrMalformedPacket = errors.New("mqtt3: malformed packet")

	// ErrProtocolViolation reports a well-formed packet that breaks the protocol,
	// such as an acknowledgement nobody asked for.
	ErrProtocolViolation = errors.New("mqtt3: protocol violation")

	// ErrIllegalState reports an operation that is not valid in the current
	// connection state. It has no side effects.
	ErrIllegalState = errors.New("mqtt3: illegal state")
)

// Packet level errors.
var (
	ErrRemainingLength   = fmt.Errorf("%w: remaining length mismatch", ErrMalformedPacket)
	ErrPacketTooLarge    = fmt.Errorf("%w: packet exceeds maximum size", ErrMalformedPacket)
	ErrInvalidQoS        = fmt.Errorf("%w: invalid QoS", ErrMalformedPacket)
	ErrUnknownPacketID   = fmt.Errorf("%w: acknowledgement for unknown packet identifier", ErrProtocolViolation)
	ErrUnexpectedAck     = fmt.Errorf("%w: acknowledgement does not match its request", ErrProtocolViolation)
	ErrSubackMismatch    = fmt.Errorf("%w: SUBACK return codes do not match SUBSCRIBE topics", ErrProtocolViolation)
	ErrPacketIDRequired  = fmt.Errorf("%w: packet identifier required", ErrProtocolViolation)
	ErrPacketIDAssigned  = fmt.Errorf("%w: packet identifier already assigned", ErrProtocolViolation)
	ErrWillIncomplete    = fmt.Errorf("%w: will topic and will message must be set together", ErrProtocolViolation)
	ErrPasswordNoUser    = fmt.Errorf("%w: password set without username", ErrProtocolViolation)
	ErrEmptySubscription = fmt.Errorf("%w: at least one topic is required", ErrProtocolViolation)
)

// packetError annotates err with the packet type it was raised for.
func packetError(t PacketType, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", t, err)
}
