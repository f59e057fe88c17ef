//go:build unix

// File: poller/poll_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable poll(2) backend. Keeps a flat pollfd array, so interest updates
// are O(1) via an fd-to-slot index and removal swaps the last slot in.

package poller

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/momentics/sockloop/api"
)

type pollPoller struct {
	fds  []unix.PollFd
	slot map[int]int // fd -> index into fds
}

// OpenPoll constructs the poll(2) backend directly, bypassing backend
// selection. Embedders and tests use it to force the fallback path.
func OpenPoll() (Poller, error) {
	return &pollPoller{slot: make(map[int]int)}, nil
}

func (p *pollPoller) Name() string { return "poll" }

// pollBits translates an interest mask. POLLERR, POLLHUP and POLLNVAL are
// always delivered by the kernel and cannot be requested.
func pollBits(mask api.EventType) int16 {
	var ev int16
	if mask&api.EventRead != 0 {
		ev |= unix.POLLIN | unix.POLLPRI
	}
	if mask&api.EventWrite != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func (p *pollPoller) Register(fd int, mask api.EventType) error {
	if _, ok := p.slot[fd]; ok {
		return api.ErrAlreadyRegistered
	}
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: pollBits(mask)})
	p.slot[fd] = len(p.fds) - 1
	return nil
}

func (p *pollPoller) Modify(fd int, mask api.EventType) error {
	i, ok := p.slot[fd]
	if !ok {
		return api.ErrNotRegistered
	}
	p.fds[i].Events = pollBits(mask)
	return nil
}

func (p *pollPoller) Unregister(fd int) error {
	i, ok := p.slot[fd]
	if !ok {
		return api.ErrNotRegistered
	}
	last := len(p.fds) - 1
	if i != last {
		p.fds[i] = p.fds[last]
		p.slot[int(p.fds[i].Fd)] = i
	}
	p.fds = p.fds[:last]
	delete(p.slot, fd)
	return nil
}

func (p *pollPoller) Wait(events []Event, timeoutMs int) (int, error) {
	n, err := unix.Poll(p.fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("poll", err)
	}
	if n == 0 {
		return 0, nil
	}
	filled := 0
	for i := 0; i < len(p.fds) && filled < len(events) && filled < n; i++ {
		bits := p.fds[i].Revents
		if bits == 0 {
			continue
		}
		var ready api.EventType
		if bits&(unix.POLLIN|unix.POLLPRI) != 0 {
			ready |= api.EventRead
		}
		if bits&unix.POLLOUT != 0 {
			ready |= api.EventWrite
		}
		if bits&(unix.POLLERR|unix.POLLNVAL) != 0 {
			ready |= api.EventErr
		}
		if bits&unix.POLLHUP != 0 {
			ready |= api.EventHup
		}
		events[filled] = Event{FD: int(p.fds[i].Fd), Events: ready}
		filled++
	}
	return filled, nil
}

func (p *pollPoller) Close() error { return nil }
