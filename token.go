package mqtt3

import (
	"context"
	"sync"
	"time"
)

// Token tracks an action that is complete once the broker acknowledges it:
// a QoS 1 or 2 publish, a subscribe or an unsubscribe.
type Token struct {
	packetType PacketType
	packetID   uint16
	sent       time.Time

	once     sync.Once
	done     chan struct{}
	err      error
	granted  []TopicFilter
	rejected []string
}

func newToken(t PacketType, id uint16) *Token {
	return &Token{
		packetType: t,
		packetID:   id,
		done:       make(chan struct{}),
	}
}

// completedToken returns a token that is already done, used for QoS 0.
func completedToken(t PacketType) *Token {
	tok := newToken(t, 0)
	tok.complete(nil)
	return tok
}

// PacketID returns the identifier the action was sent with; 0 for QoS 0.
func (t *Token) PacketID() uint16 { return t.packetID }

// PacketType returns the type of the packet that started the action.
func (t *Token) PacketType() PacketType { return t.packetType }

// Done is closed when the action completes or fails.
func (t *Token) Done() <-chan struct{} { return t.done }

// Err returns the failure, nil while pending or on success.
func (t *Token) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the action completes or ctx is done.
func (t *Token) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Granted returns the accepted topic filters of a subscribe action, in
// request order, with the QoS the broker granted.
func (t *Token) Granted() []TopicFilter {
	<-t.done
	return t.granted
}

// Rejected returns the topic filters the broker refused.
func (t *Token) Rejected() []string {
	<-t.done
	return t.rejected
}

// complete resolves the token once; later calls are ignored.
func (t *Token) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

func (t *Token) completeSubscribe(suback *SubackPacket) {
	t.once.Do(func() {
		t.granted = suback.Granted
		t.rejected = suback.Rejected
		if len(suback.Rejected) > 0 {
			t.err = &SubscribeError{Topics: suback.Rejected}
		}
		close(t.done)
	})
}
