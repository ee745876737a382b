package mqtt3

import (
	"context"
	"sync"
)

// Subscription is the set of topic filters one Subscribe call was granted.
type Subscription struct {
	client  *Client
	token   *Token
	granted []TopicFilter

	mu       sync.Mutex
	canceled bool
}

func newSubscription(c *Client, tok *Token) *Subscription {
	return &Subscription{
		client:  c,
		token:   tok,
		granted: tok.Granted(),
	}
}

// Filters returns the granted topic filters with their granted QoS.
func (s *Subscription) Filters() []TopicFilter {
	return s.granted
}

// Token returns the token of the SUBSCRIBE action.
func (s *Subscription) Token() *Token {
	return s.token
}

// Cancel unsubscribes the granted filters and waits for UNSUBACK.
// Calling Cancel again after a successful cancel is a no-op.
func (s *Subscription) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canceled {
		return nil
	}

	if err := s.client.Unsubscribe(ctx, topicNames(s.granted)...); err != nil {
		return err
	}

	s.canceled = true
	return nil
}
