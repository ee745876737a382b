package mqtt3

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketIDStoreAllocate(t *testing.T) {
	s := NewPacketIDStore()

	for want := uint16(1); want <= 5; want++ {
		id, err := s.Allocate()
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	// Allocate alone does not reserve the identifier.
	assert.Zero(t, s.Len())
}

func TestPacketIDStoreWrap(t *testing.T) {
	s := NewPacketIDStore()
	s.next = 65535

	id, err := s.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), id)

	id, err = s.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id, "identifier 0 is never used")
}

func TestPacketIDStoreSkipsPending(t *testing.T) {
	s := NewPacketIDStore()
	s.Put(1, &PublishPacket{PacketID: 1})
	s.Put(2, &PublishPacket{PacketID: 2})
	s.Put(4, &PublishPacket{PacketID: 4})

	id, err := s.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(3), id)

	id, err = s.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(5), id)
}

func TestPacketIDStoreExhausted(t *testing.T) {
	s := NewPacketIDStore()
	for id := 1; id <= maxPacketIDs; id++ {
		s.Put(uint16(id), &PublishPacket{PacketID: uint16(id)})
	}
	require.Equal(t, maxPacketIDs, s.Len())

	_, err := s.Allocate()
	assert.ErrorIs(t, err, ErrPacketIDExhausted)

	_, err = s.Register(&PublishPacket{Topic: "a", QoS: QoS1})
	assert.ErrorIs(t, err, ErrPacketIDExhausted)

	s.Get(300, true)
	id, err := s.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(300), id)
}

func TestPacketIDStoreRegister(t *testing.T) {
	s := NewPacketIDStore()

	pub := &PublishPacket{Topic: "a", QoS: QoS1}
	id, err := s.Register(pub)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id)
	assert.Equal(t, id, pub.PacketID)

	stored, ok := s.Get(id, false)
	require.True(t, ok)
	assert.Same(t, pub, stored)

	_, err = s.Register(pub)
	assert.ErrorIs(t, err, ErrPacketIDAssigned)
	assert.Equal(t, 1, s.Len())
}

func TestPacketIDStoreGet(t *testing.T) {
	s := NewPacketIDStore()
	sub := &SubscribePacket{PacketID: 10}
	s.Put(10, sub)

	got, ok := s.Get(10, false)
	require.True(t, ok)
	assert.Same(t, sub, got)
	assert.Equal(t, 1, s.Len())

	got, ok = s.Get(10, true)
	require.True(t, ok)
	assert.Same(t, sub, got)
	assert.Zero(t, s.Len())

	_, ok = s.Get(10, true)
	assert.False(t, ok)
}

func TestPacketIDStorePutReplaces(t *testing.T) {
	s := NewPacketIDStore()
	first := &PublishPacket{PacketID: 3}
	second := &UnsubscribePacket{PacketID: 3}

	s.Put(3, first)
	s.Put(3, second)

	got, ok := s.Get(3, false)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, s.Len())
}

func TestPacketIDStoreReset(t *testing.T) {
	s := NewPacketIDStore()
	for range 10 {
		_, err := s.Register(&PublishPacket{Topic: "a", QoS: QoS1})
		require.NoError(t, err)
	}

	s.Reset()
	assert.Zero(t, s.Len())

	id, err := s.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id)
}

func TestPacketIDStoreConcurrentRegister(t *testing.T) {
	s := NewPacketIDStore()

	const workers = 8
	const perWorker = 200

	ids := make(chan uint16, workers*perWorker)
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range perWorker {
				id, err := s.Register(&PublishPacket{Topic: "a", QoS: QoS1})
				if err != nil {
					t.Error(err)
					return
				}
				ids <- id
			}
		})
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint16]bool)
	for id := range ids {
		assert.False(t, seen[id], "identifier %d issued twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, workers*perWorker, s.Len())
}
