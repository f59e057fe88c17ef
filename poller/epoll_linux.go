//go:build linux

// File: poller/epoll_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7) backend. Level-triggered, O(1) interest updates.

package poller

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/momentics/sockloop/api"
)

type epollPoller struct {
	epfd int
	fds  map[int]api.EventType
}

func openEpoll() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &epollPoller{epfd: epfd, fds: make(map[int]api.EventType)}, nil
}

func (p *epollPoller) Name() string { return "epoll" }

// epollBits translates an interest mask. EPOLLERR and EPOLLHUP are implied
// by the kernel and never requested explicitly.
func epollBits(mask api.EventType) uint32 {
	var ev uint32
	if mask&api.EventRead != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if mask&api.EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoller) Register(fd int, mask api.EventType) error {
	if _, ok := p.fds[fd]; ok {
		return api.ErrAlreadyRegistered
	}
	ev := unix.EpollEvent{Fd: int32(fd), Events: epollBits(mask)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return os.NewSyscallError("epoll_ctl add", err)
	}
	p.fds[fd] = mask
	return nil
}

func (p *epollPoller) Modify(fd int, mask api.EventType) error {
	if _, ok := p.fds[fd]; !ok {
		return api.ErrNotRegistered
	}
	ev := unix.EpollEvent{Fd: int32(fd), Events: epollBits(mask)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return os.NewSyscallError("epoll_ctl mod", err)
	}
	p.fds[fd] = mask
	return nil
}

func (p *epollPoller) Unregister(fd int) error {
	if _, ok := p.fds[fd]; !ok {
		return api.ErrNotRegistered
	}
	delete(p.fds, fd)
	// A nil event is the documented argument for EPOLL_CTL_DEL.
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return os.NewSyscallError("epoll_ctl del", err)
	}
	return nil
}

func (p *epollPoller) Wait(events []Event, timeoutMs int) (int, error) {
	raw := make([]unix.EpollEvent, len(events))
	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		var ready api.EventType
		bits := raw[i].Events
		if bits&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
			ready |= api.EventRead
		}
		if bits&unix.EPOLLOUT != 0 {
			ready |= api.EventWrite
		}
		if bits&unix.EPOLLERR != 0 {
			ready |= api.EventErr
		}
		if bits&unix.EPOLLHUP != 0 {
			ready |= api.EventHup
		}
		events[i] = Event{FD: int(raw[i].Fd), Events: ready}
	}
	return n, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
