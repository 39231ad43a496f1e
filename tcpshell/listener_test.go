package tcpshell

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func listen(t *testing.T, cfg Config) *Transport {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	tr := newTestTransport(t, cfg)
	require.NoError(t, tr.Listen(context.Background()))
	require.NotNil(t, tr.Addr())
	return tr
}

func dial(t *testing.T, tr *Transport) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", tr.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// drain reads from tr until want bytes arrived or timeout.
func drain(t *testing.T, tr *Transport, want int) string {
	t.Helper()
	var got []byte
	buf := make([]byte, 64)
	require.Eventually(t, func() bool {
		n := tr.Read(buf)
		got = append(got, buf[:n]...)
		return len(got) >= want
	}, time.Second, time.Millisecond)
	return string(got)
}

func TestListener_RoundTrip(t *testing.T) {
	tr := listen(t, Config{})
	c := dial(t, tr)

	require.Eventually(t, tr.Connected, time.Second, time.Millisecond)
	require.Equal(t, DefaultWelcome, drain(t, tr, len(DefaultWelcome)))

	_, err := c.Write([]byte("1 2 + .\n"))
	require.NoError(t, err)
	require.Equal(t, "1 2 + .\n", drain(t, tr, 8))

	_, err = tr.PutChars([]byte("3 \n"))
	require.NoError(t, err)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 3)
	_, err = io.ReadFull(c, buf)
	require.NoError(t, err)
	require.Equal(t, "3 \n", string(buf))
}

func TestListener_PeerCloseDisconnects(t *testing.T) {
	tr := listen(t, Config{})
	c := dial(t, tr)
	require.Eventually(t, tr.Connected, time.Second, time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return !tr.Connected() }, time.Second, time.Millisecond)
	require.ErrorIs(t, tr.PutChar('x'), ErrNotConnected)
}

func TestListener_SecondPeerRefused(t *testing.T) {
	tr := listen(t, Config{})
	first := dial(t, tr)
	require.Eventually(t, tr.Connected, time.Second, time.Millisecond)

	second := dial(t, tr)
	require.NoError(t, second.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := second.Read(make([]byte, 1))
	require.Error(t, err)

	// the first session is untouched
	require.True(t, tr.Connected())
	_, err = tr.PutChars([]byte("still here\n"))
	require.NoError(t, err)
	require.NoError(t, first.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, len("still here\n"))
	_, err = io.ReadFull(first, buf)
	require.NoError(t, err)
}

func TestListener_IdleTimeout(t *testing.T) {
	tr := listen(t, Config{IdleTimeout: 30 * time.Millisecond})
	c := dial(t, tr)
	require.Eventually(t, tr.Connected, time.Second, time.Millisecond)

	require.Eventually(t, func() bool { return !tr.Connected() }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := c.Read(make([]byte, 1))
	require.Error(t, err)
}

func TestListener_ContextCancelCloses(t *testing.T) {
	tr := newTestTransport(t, Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tr.Listen(ctx))
	addr := tr.Addr().String()

	cancel()
	require.Eventually(t, func() bool {
		c, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return true
		}
		c.Close()
		return false
	}, time.Second, 10*time.Millisecond)

	require.ErrorIs(t, tr.Listen(context.Background()), ErrClosed)
	require.NoError(t, tr.Close())
}
