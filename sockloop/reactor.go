// File: sockloop/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The reactor: descriptor registry, foreign-fd callbacks, deferred-close
// list, and the event loop that ties them to a readiness backend.

package sockloop

import (
	"os"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/sockloop/api"
	"github.com/momentics/sockloop/poller"
)

// DefaultMaxEvents bounds one Wait batch.
const DefaultMaxEvents = 512

// Reactor owns one readiness backend and every descriptor registered with
// it. One reactor per process is the intended shape; tests may hold
// several. All methods except Shutdown must run on the loop goroutine.
type Reactor struct {
	poller    poller.Poller
	haveEpoll bool

	conns        map[int]*Conn
	otherFds     map[int]func()
	otherWatched map[int]bool
	toClose      *queue.Queue // of int

	maxEvents   int
	loopTimeout int
	postLoopCB  func() bool

	wakeR, wakeW int
}

// New opens a readiness backend (epoll, falling back to poll) and the wake
// pipe the shutdown path uses.
func New(opts ...Option) (*Reactor, error) {
	r := &Reactor{
		conns:        make(map[int]*Conn),
		otherFds:     make(map[int]func()),
		otherWatched: make(map[int]bool),
		toClose:      queue.New(),
		maxEvents:    DefaultMaxEvents,
		loopTimeout:  -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxEvents < 64 {
		r.maxEvents = 64
	} else if r.maxEvents > 1024 {
		r.maxEvents = 1024
	}
	if r.poller == nil {
		p, err := poller.Open()
		if err != nil {
			return nil, err
		}
		r.poller = p
	}
	r.haveEpoll = r.poller.Name() == "epoll"

	var pfds [2]int
	if err := unix.Pipe(pfds[:]); err != nil {
		r.poller.Close()
		return nil, os.NewSyscallError("pipe", err)
	}
	r.wakeR, r.wakeW = pfds[0], pfds[1]
	for _, fd := range pfds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			r.closeWakePipe()
			r.poller.Close()
			return nil, os.NewSyscallError("fcntl", err)
		}
	}
	if err := r.poller.Register(r.wakeR, api.EventRead); err != nil {
		r.closeWakePipe()
		r.poller.Close()
		return nil, err
	}
	return r, nil
}

// EventLoop blocks in the backend and fans readiness out to the owning
// connections, then drains the deferred-close list, until Shutdown is
// called or the post-loop callback reports done.
func (r *Reactor) EventLoop() error {
	events := make([]poller.Event, r.maxEvents)
	for {
		for fd := range r.otherFds {
			if r.otherWatched[fd] {
				continue
			}
			if err := r.poller.Register(fd, api.EventRead); err != nil {
				logf(1, "sockloop: foreign fd %d register failed: %v", fd, err)
				continue
			}
			r.otherWatched[fd] = true
		}

		n, err := r.poller.Wait(events, r.loopTimeout)
		if err != nil {
			// Not fatal; log and restart the wait.
			logf(1, "sockloop: wait failed: %v", err)
			continue
		}

		stop := false
		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.FD == r.wakeR {
				r.drainWake()
				stop = true
				continue
			}
			c, ok := r.conns[ev.FD]
			if !ok {
				if cb, ok := r.otherFds[ev.FD]; ok {
					cb()
				}
				continue
			}
			// An earlier event in this batch may have closed the owner;
			// its descriptor may even be pending reuse. Never dispatch to
			// a dead object.
			if c.closed {
				continue
			}
			logf(3, "sockloop: fd %d ready: %v", ev.FD, ev.Events)
			if ev.Events&api.EventRead != 0 && !c.closed {
				c.handler.OnReadable(c)
			}
			if ev.Events&api.EventWrite != 0 && !c.closed {
				c.handler.OnWritable(c)
			}
			if ev.Events&api.EventErr != 0 && !c.closed {
				c.handler.OnError(c)
			}
			if ev.Events&api.EventHup != 0 && !c.closed {
				c.handler.OnHangup(c)
			}
		}

		r.drainToClose()

		if r.postLoopCB != nil && !r.postLoopCB() {
			return nil
		}
		if stop {
			return nil
		}
	}
}

// drainToClose releases descriptors whose Close was deferred during the
// batch. Additions made mid-drain (a teardown path closing another
// connection) are picked up in the same pass.
func (r *Reactor) drainToClose() {
	for r.toClose.Length() > 0 {
		fd := r.toClose.Remove().(int)
		logf(2, "sockloop: fd %d released", fd)
		if err := unix.Close(fd); err != nil {
			logf(1, "sockloop: fd %d close failed: %v", fd, err)
		}
	}
}

// Shutdown wakes the loop and makes EventLoop return once the current
// batch and its deferred-close drain finish. Safe to call from any
// goroutine.
func (r *Reactor) Shutdown() {
	var b [1]byte
	for {
		_, err := unix.Write(r.wakeW, b[:])
		if err == unix.EINTR {
			continue
		}
		return
	}
}

func (r *Reactor) drainWake() {
	buf := make([]byte, 64)
	for {
		_, err := unix.Read(r.wakeR, buf)
		if err != nil {
			return
		}
	}
}

func (r *Reactor) closeWakePipe() {
	unix.Close(r.wakeR)
	unix.Close(r.wakeW)
}

// Close releases the backend and the wake pipe. It does not close
// registered sockets; callers drain those through the loop first.
func (r *Reactor) Close() error {
	r.drainToClose()
	r.closeWakePipe()
	return r.poller.Close()
}

// HaveEpoll reports whether the scalable backend is in use.
func (r *Reactor) HaveEpoll() bool { return r.haveEpoll }

// WatchedSockets is the number of live connections in the registry.
func (r *Reactor) WatchedSockets() int { return len(r.conns) }

// DescriptorMap is a snapshot of the registry.
func (r *Reactor) DescriptorMap() map[int]*Conn {
	m := make(map[int]*Conn, len(r.conns))
	for fd, c := range r.conns {
		m[fd] = c
	}
	return m
}

// ToClose is a snapshot of the deferred-close list.
func (r *Reactor) ToClose() []int {
	fds := make([]int, 0, r.toClose.Length())
	for i := 0; i < r.toClose.Length(); i++ {
		fds = append(fds, r.toClose.Get(i).(int))
	}
	return fds
}

// OtherFds is a snapshot of the foreign-descriptor callbacks.
func (r *Reactor) OtherFds() map[int]func() {
	m := make(map[int]func(), len(r.otherFds))
	for fd, cb := range r.otherFds {
		m[fd] = cb
	}
	return m
}

// SetOtherFds replaces the foreign-descriptor map. Descriptors the loop
// had registered that are absent from the new map are unregistered.
func (r *Reactor) SetOtherFds(m map[int]func()) {
	for fd := range r.otherWatched {
		if _, ok := m[fd]; ok {
			continue
		}
		if err := r.poller.Unregister(fd); err != nil {
			logf(1, "sockloop: foreign fd %d unregister failed: %v", fd, err)
		}
		delete(r.otherWatched, fd)
	}
	r.otherFds = make(map[int]func(), len(m))
	for fd, cb := range m {
		r.otherFds[fd] = cb
	}
}

// AddOtherFd watches a raw descriptor whose handler is a plain callback
// rather than a full Conn. The loop registers it for read interest on its
// next pass.
func (r *Reactor) AddOtherFd(fd int, cb func()) {
	r.otherFds[fd] = cb
}

// SetPostLoopCallback installs fn to run after every batch and close
// drain. Returning false stops the loop. Pass nil to remove.
func (r *Reactor) SetPostLoopCallback(fn func() bool) {
	r.postLoopCB = fn
}

// SetLoopTimeout bounds each backend wait in milliseconds. Negative means
// block until readiness.
func (r *Reactor) SetLoopTimeout(ms int) {
	r.loopTimeout = ms
}
