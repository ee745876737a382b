package mqtt3

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixDialer(t *testing.T) {
	t.Run("dial and exchange", func(t *testing.T) {
		sock := filepath.Join(t.TempDir(), "mqtt.sock")
		ln, err := net.Listen("unix", sock)
		require.NoError(t, err)
		defer ln.Close()

		got := serveOnce(t, ln)

		events := newTransportEvents()
		tr := NewStreamTransport(NewUnixDialer())
		tr.Connect(context.Background(), sock, events)
		defer tr.Close()

		waitFor(t, events.connected)
		require.NoError(t, tr.Send(encodeConnect(t, "unix-client")))

		connect := waitFor(t, got)
		require.NotNil(t, connect)
		assert.Equal(t, "unix-client", connect.ClientIdentifier)

		_, ok := waitFor(t, events.packets).(*ConnackPacket)
		assert.True(t, ok)
	})

	t.Run("missing socket", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, err := NewUnixDialer().Dial(ctx, filepath.Join(t.TempDir(), "absent.sock"))
		assert.Error(t, err)
	})
}
