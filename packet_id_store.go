package mqtt3

import (
	"errors"
	"sync"
)

var ErrPacketIDExhausted = errors.New("mqtt3: no available packet IDs")

const maxPacketIDs = 65535

// PacketIDStore allocates packet identifiers (1-65535) and remembers the
// outbound packet each pending identifier belongs to. One store is owned by
// one connection.
type PacketIDStore struct {
	mu      sync.Mutex
	pending map[uint16]IdentifiedPacket
	next    uint16
}

// NewPacketIDStore creates an empty store whose first identifier is 1.
func NewPacketIDStore() *PacketIDStore {
	return &PacketIDStore{
		pending: make(map[uint16]IdentifiedPacket),
		next:    1,
	}
}

// Allocate returns the next identifier that is not pending.
// The counter wraps from 65535 back to 1.
func (s *PacketIDStore) Allocate() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.allocateLocked()
}

func (s *PacketIDStore) allocateLocked() (uint16, error) {
	if len(s.pending) >= maxPacketIDs {
		return 0, ErrPacketIDExhausted
	}

	for {
		id := s.next
		s.next++
		if s.next == 0 {
			s.next = 1
		}
		if _, ok := s.pending[id]; !ok {
			return id, nil
		}
	}
}

// Register allocates an identifier, assigns it to pkt and stores pkt under it.
func (s *PacketIDStore) Register(pkt IdentifiedPacket) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.allocateLocked()
	if err != nil {
		return 0, err
	}

	if err := pkt.assignPacketID(id); err != nil {
		return 0, err
	}

	s.pending[id] = pkt
	return id, nil
}

// Put associates pkt with id, replacing any previous entry.
func (s *PacketIDStore) Put(id uint16, pkt IdentifiedPacket) {
	s.mu.Lock()
	s.pending[id] = pkt
	s.mu.Unlock()
}

// Get returns the packet stored under id. With remove set the entry is popped.
func (s *PacketIDStore) Get(id uint16, remove bool) (IdentifiedPacket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkt, ok := s.pending[id]
	if ok && remove {
		delete(s.pending, id)
	}
	return pkt, ok
}

// Len returns the number of pending identifiers.
func (s *PacketIDStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Reset drops every entry and restarts allocation at 1.
func (s *PacketIDStore) Reset() {
	s.mu.Lock()
	clear(s.pending)
	s.next = 1
	s.mu.Unlock()
}
