package mqtt3

import (
	"context"
	"time"
)

// keepAlive pings the broker every interval while handle is the live
// transport. A PINGREQ still unanswered at the next tick closes the
// connection with ErrKeepAliveTimeout.
func (c *connection) keepAlive(ctx context.Context, handle Transport, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.keepAliveTick(handle) {
				return
			}
		}
	}
}

func (c *connection) keepAliveTick(handle Transport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != handle || c.state != StateConnected {
		return false
	}

	if c.pingSent {
		c.failLocked(ErrKeepAliveTimeout)
		return false
	}

	if err := c.pingLocked(); err != nil {
		c.failLocked(err)
		return false
	}

	return true
}
