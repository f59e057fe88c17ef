// File: sockloop/helpers_test.go
// Author: momentics <momentics@gmail.com>

package sockloop

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/sockloop/poller"
)

// testHandler dispatches to optional funcs; unset writable falls back to
// the default flush behavior.
type testHandler struct {
	onReadable func(*Conn)
	onWritable func(*Conn)
	onError    func(*Conn)
	onHangup   func(*Conn)
}

func (h *testHandler) OnReadable(c *Conn) {
	if h.onReadable != nil {
		h.onReadable(c)
	}
}

func (h *testHandler) OnWritable(c *Conn) {
	if h.onWritable != nil {
		h.onWritable(c)
		return
	}
	if c.Write(nil) {
		c.WatchWrite(false)
	}
}

func (h *testHandler) OnError(c *Conn) {
	if h.onError != nil {
		h.onError(c)
	}
}

func (h *testHandler) OnHangup(c *Conn) {
	if h.onHangup != nil {
		h.onHangup(c)
	}
}

func newTestReactor(t *testing.T, forcePoll bool) *Reactor {
	t.Helper()
	var opts []Option
	if forcePoll {
		p, err := poller.OpenPoll()
		require.NoError(t, err)
		opts = append(opts, WithPoller(p))
	}
	r, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// forEachBackend runs fn against the selected backend and against the
// forced poll(2) fallback, so the suites double as the fallback scenario.
func forEachBackend(t *testing.T, fn func(t *testing.T, r *Reactor)) {
	t.Run("default", func(t *testing.T) {
		fn(t, newTestReactor(t, false))
	})
	t.Run("poll", func(t *testing.T) {
		fn(t, newTestReactor(t, true))
	})
}

// socketPair returns both ends of a nonblocking unix stream pair.
func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	for _, fd := range fds {
		require.NoError(t, unix.SetNonblock(fd, true))
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// shrinkSendBuf forces write pressure with small payloads.
func shrinkSendBuf(t *testing.T, fd int) {
	t.Helper()
	require.NoError(t, unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 8192))
}

func mustConn(t *testing.T, r *Reactor, fd int, h EventHandler) *Conn {
	t.Helper()
	c, err := NewConn(r, fd, h)
	require.NoError(t, err)
	return c
}

// drainPeer reads everything currently available from a raw fd.
func drainPeer(t *testing.T, fd int, sink *[]byte) {
	t.Helper()
	buf := make([]byte, 64<<10)
	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			*sink = append(*sink, buf[:n]...)
		}
		if err != nil || n <= 0 {
			return
		}
	}
}

// pumpUntilFlushed alternates peer reads with queue kicks until the write
// queue drains, then collects the tail.
func pumpUntilFlushed(t *testing.T, c *Conn, peer int, sink *[]byte) {
	t.Helper()
	for i := 0; i < 100000; i++ {
		drainPeer(t, peer, sink)
		if c.Write(nil) {
			drainPeer(t, peer, sink)
			return
		}
	}
	t.Fatal("write queue never drained")
}

func fdValid(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}
