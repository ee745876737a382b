package mqtt3

import (
	"fmt"
	"io"
)

// encodeAck writes the two byte packet identifier body shared by
// PUBACK, PUBREC, PUBREL, PUBCOMP and UNSUBACK.
func encodeAck(w io.Writer, id uint16) (int, error) {
	if id == 0 {
		return 0, ErrPacketIDRequired
	}
	return encodeUint16(w, id)
}

// decodeAck reads the packet identifier of an acknowledgement.
func decodeAck(r io.Reader, header FixedHeader) (uint16, error) {
	if err := header.ValidateFlags(); err != nil {
		return 0, err
	}
	if header.RemainingLength != 2 {
		return 0, ErrRemainingLength
	}

	id, _, err := decodeUint16(r)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrPacketIDRequired
	}
	return id, nil
}

// resolveLinked looks up the outbound packet an acknowledgement refers to.
// The entry is only removed once it is known to match.
func resolveLinked[T IdentifiedPacket](store *PacketIDStore, id uint16, remove bool, accept func(T) bool) (T, error) {
	var zero T

	if store == nil {
		return zero, fmt.Errorf("%w: %d", ErrUnknownPacketID, id)
	}

	pkt, ok := store.Get(id, false)
	if !ok {
		return zero, fmt.Errorf("%w: %d", ErrUnknownPacketID, id)
	}

	linked, ok := pkt.(T)
	if !ok || (accept != nil && !accept(linked)) {
		return zero, fmt.Errorf("%w: %s for packet %d", ErrUnexpectedAck, pkt.Type(), id)
	}

	if remove {
		store.Get(id, true)
	}
	return linked, nil
}

func publishWithQoS(qos QoS) func(*PublishPacket) bool {
	return func(p *PublishPacket) bool { return p.QoS == qos }
}
