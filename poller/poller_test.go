// File: poller/poller_test.go
// Author: momentics <momentics@gmail.com>
//
// Contract tests run against whichever backend Open selects and against
// the forced poll(2) fallback, pinning identical semantics.

package poller

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/sockloop/api"
)

func backends(t *testing.T) map[string]Poller {
	t.Helper()
	def, err := Open()
	require.NoError(t, err)
	fallback, err := OpenPoll()
	require.NoError(t, err)
	t.Cleanup(func() {
		def.Close()
		fallback.Close()
	})
	return map[string]Poller{"default": def, "poll": fallback}
}

func pipePair(t *testing.T) (int, int) {
	t.Helper()
	var pfds [2]int
	require.NoError(t, unix.Pipe(pfds[:]))
	require.NoError(t, unix.SetNonblock(pfds[0], true))
	t.Cleanup(func() {
		unix.Close(pfds[0])
		unix.Close(pfds[1])
	})
	return pfds[0], pfds[1]
}

func TestRegistrationErrors(t *testing.T) {
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rfd, _ := pipePair(t)

			require.NoError(t, p.Register(rfd, api.EventRead))
			require.ErrorIs(t, p.Register(rfd, api.EventRead), api.ErrAlreadyRegistered)

			require.NoError(t, p.Modify(rfd, 0))
			require.NoError(t, p.Unregister(rfd))
			require.ErrorIs(t, p.Modify(rfd, api.EventRead), api.ErrNotRegistered)
			require.ErrorIs(t, p.Unregister(rfd), api.ErrNotRegistered)
		})
	}
}

func TestWaitReadable(t *testing.T) {
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rfd, wfd := pipePair(t)
			require.NoError(t, p.Register(rfd, api.EventRead))

			_, err := unix.Write(wfd, []byte("x"))
			require.NoError(t, err)

			events := make([]Event, 8)
			n, err := p.Wait(events, 2000)
			require.NoError(t, err)
			require.Equal(t, 1, n)
			require.Equal(t, rfd, events[0].FD)
			require.NotZero(t, events[0].Events&api.EventRead)
		})
	}
}

func TestWaitWritable(t *testing.T) {
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
			require.NoError(t, err)
			t.Cleanup(func() {
				unix.Close(fds[0])
				unix.Close(fds[1])
			})

			require.NoError(t, p.Register(fds[0], api.EventWrite))
			events := make([]Event, 8)
			n, err := p.Wait(events, 2000)
			require.NoError(t, err)
			require.Equal(t, 1, n)
			require.NotZero(t, events[0].Events&api.EventWrite)

			require.NoError(t, p.Unregister(fds[0]))
		})
	}
}

func TestWaitTimeout(t *testing.T) {
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rfd, _ := pipePair(t)
			require.NoError(t, p.Register(rfd, api.EventRead))

			events := make([]Event, 8)
			n, err := p.Wait(events, 20)
			require.NoError(t, err)
			require.Equal(t, 0, n)
		})
	}
}

// Hangup must be reported even with an empty interest mask.
func TestHupWithoutInterest(t *testing.T) {
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rfd, wfd := pipePair(t)
			require.NoError(t, p.Register(rfd, 0))
			require.NoError(t, unix.Close(wfd))

			events := make([]Event, 8)
			n, err := p.Wait(events, 2000)
			require.NoError(t, err)
			require.Equal(t, 1, n)
			require.Equal(t, rfd, events[0].FD)
			require.NotZero(t, events[0].Events&api.EventHup)
		})
	}
}

// Level-triggered: readiness repeats until consumed, and interest changes
// take effect on the next wait.
func TestLevelTriggeredModify(t *testing.T) {
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rfd, wfd := pipePair(t)
			require.NoError(t, p.Register(rfd, api.EventRead))
			_, err := unix.Write(wfd, []byte("x"))
			require.NoError(t, err)

			events := make([]Event, 8)
			for i := 0; i < 2; i++ {
				n, err := p.Wait(events, 2000)
				require.NoError(t, err)
				require.Equal(t, 1, n, "level-triggered readiness must repeat")
			}

			require.NoError(t, p.Modify(rfd, 0))
			n, err := p.Wait(events, 20)
			require.NoError(t, err)
			require.Equal(t, 0, n, "cleared interest must silence the fd")

			require.NoError(t, p.Modify(rfd, api.EventRead))
			n, err = p.Wait(events, 2000)
			require.NoError(t, err)
			require.Equal(t, 1, n)
		})
	}
}

func TestBackendNames(t *testing.T) {
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if name == "poll" {
				require.Equal(t, "poll", p.Name())
			} else {
				require.Contains(t, []string{"epoll", "poll"}, p.Name())
			}
		})
	}
}
