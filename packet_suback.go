package mqtt3

import "io"

// SubackFailure is the return code for a rejected topic filter.
const SubackFailure byte = 0x80

// SubackPacket represents an MQTT SUBACK packet.
// MQTT v3.1.1 spec: Section 3.9
type SubackPacket struct {
	PacketID uint16

	// ReturnCodes holds one code per requested topic, in request order.
	ReturnCodes []byte

	// Subscribe is the request being acknowledged.
	Subscribe *SubscribePacket

	// Granted pairs each accepted topic with its granted QoS, in request order.
	Granted []TopicFilter

	// Rejected lists the topic filters the broker refused.
	Rejected []string
}

// Type returns the packet type.
func (p *SubackPacket) Type() PacketType { return PacketSUBACK }

func (p *SubackPacket) decode(r io.Reader, header FixedHeader, store *PacketIDStore) error {
	if err := header.ValidateFlags(); err != nil {
		return err
	}
	if header.RemainingLength < 3 {
		return ErrRemainingLength
	}

	id, _, err := decodeUint16(r)
	if err != nil {
		return err
	}
	p.PacketID = id

	p.ReturnCodes = make([]byte, header.RemainingLength-2)
	if _, err := io.ReadFull(r, p.ReturnCodes); err != nil {
		return err
	}

	p.Subscribe, err = resolveLinked[*SubscribePacket](store, id, false, nil)
	if err != nil {
		return err
	}
	if len(p.Subscribe.Topics) != len(p.ReturnCodes) {
		return ErrSubackMismatch
	}
	store.Get(id, true)

	for i, code := range p.ReturnCodes {
		topic := p.Subscribe.Topics[i]
		qos := QoS(code)
		if !qos.Valid() {
			p.Rejected = append(p.Rejected, topic.Filter)
			continue
		}
		p.Granted = append(p.Granted, TopicFilter{Filter: topic.Filter, QoS: qos})
	}

	return nil
}
