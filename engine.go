package mqtt3

import (
	"errors"
	"io"
)

// Engine turns outbound packets into frames and inbound bytes into packets.
// It owns the packet identifier store of one connection.
type Engine struct {
	store         *PacketIDStore
	maxPacketSize uint32
}

// NewEngine creates an engine with an empty identifier store.
// A maxPacketSize of 0 leaves the remaining length limited only by the
// protocol; Client applies DefaultMaxPacketSize unless told otherwise.
// Either way inbound bodies are buffered as their bytes arrive.
func NewEngine(maxPacketSize uint32) *Engine {
	return &Engine{
		store:         NewPacketIDStore(),
		maxPacketSize: maxPacketSize,
	}
}

// Store returns the identifier store used for correlation.
func (e *Engine) Store() *PacketIDStore {
	return e.store
}

// Encode validates p, assigns its packet identifier when it awaits an
// acknowledgement, and returns the complete frame.
func (e *Engine) Encode(p OutboundPacket) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, packetError(p.Type(), err)
	}

	var registered uint16
	if ip, ok := awaitsAck(p); ok {
		id, err := e.store.Register(ip)
		if err != nil {
			return nil, packetError(p.Type(), err)
		}
		registered = id
	}

	frame, err := e.frame(p)
	if err != nil {
		if registered != 0 {
			e.store.Get(registered, true)
		}
		return nil, packetError(p.Type(), err)
	}

	return frame, nil
}

func (e *Engine) frame(p OutboundPacket) ([]byte, error) {
	body := getBytesBuffer()
	defer putBytesBuffer(body)

	if _, err := p.encodeBody(body); err != nil {
		return nil, err
	}

	if e.maxPacketSize > 0 && uint32(len(body.data)) > e.maxPacketSize {
		return nil, ErrPacketTooLarge
	}
	if len(body.data) > maxVarint {
		return nil, ErrVarintTooLarge
	}

	header := FixedHeader{
		PacketType:      p.Type(),
		Flags:           p.Flags(),
		RemainingLength: uint32(len(body.data)),
	}

	frame := &bytesBuffer{data: make([]byte, 0, header.Size()+len(body.data))}
	if _, err := header.Encode(frame); err != nil {
		return nil, err
	}
	_, _ = frame.Write(body.data)

	return frame.data, nil
}

// WritePacket encodes p and writes the frame to w.
func (e *Engine) WritePacket(w io.Writer, p OutboundPacket) (int, error) {
	frame, err := e.Encode(p)
	if err != nil {
		return 0, err
	}
	return w.Write(frame)
}

// ReadPacket reads exactly one packet from r.
//
// Packets a broker never sends to a client (CONNECT, SUBSCRIBE, UNSUBSCRIBE,
// PINGREQ, DISCONNECT) are consumed and reported as a nil packet with a nil
// error. io.EOF is returned only when r ends on a packet boundary.
func (e *Engine) ReadPacket(r io.Reader) (InboundPacket, error) {
	var header FixedHeader
	n, err := header.Decode(r)
	if err != nil {
		if n > 0 && errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	if e.maxPacketSize > 0 && header.RemainingLength > e.maxPacketSize {
		return nil, packetError(header.PacketType, ErrPacketTooLarge)
	}

	buf := getBytesBuffer()
	defer putBytesBuffer(buf)

	body, err := buf.fill(r, int(header.RemainingLength))
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	pkt := newInboundPacket(header.PacketType)
	if pkt == nil {
		return nil, nil
	}

	br := getBytesReader(body)
	defer putBytesReader(br)

	if err := pkt.decode(br, header, e.store); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrRemainingLength
		}
		return nil, packetError(header.PacketType, err)
	}

	if br.Len() != 0 {
		return nil, packetError(header.PacketType, ErrRemainingLength)
	}

	return pkt, nil
}

// Release drops a finished identifier from the store.
func (e *Engine) Release(id uint16) {
	e.store.Get(id, true)
}

// Reset clears every pending identifier and restarts allocation at 1.
func (e *Engine) Reset() {
	e.store.Reset()
}

// newInboundPacket returns an empty packet for the control type, or nil when
// the type is only ever sent by clients.
func newInboundPacket(t PacketType) InboundPacket {
	switch t {
	case PacketCONNACK:
		return &ConnackPacket{}
	case PacketPUBLISH:
		return &PublishPacket{}
	case PacketPUBACK:
		return &PubackPacket{}
	case PacketPUBREC:
		return &PubrecPacket{}
	case PacketPUBREL:
		return &PubrelPacket{}
	case PacketPUBCOMP:
		return &PubcompPacket{}
	case PacketSUBACK:
		return &SubackPacket{}
	case PacketUNSUBACK:
		return &UnsubackPacket{}
	case PacketPINGRESP:
		return &PingrespPacket{}
	default:
		return nil
	}
}
