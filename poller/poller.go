// File: poller/poller.go
// Package poller provides the readiness backends behind the socket loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Two interchangeable level-triggered implementations sit behind one
// contract: epoll where the kernel provides it, and a portable poll(2)
// array everywhere else.

package poller

import "github.com/momentics/sockloop/api"

// Event is one ready descriptor reported by Wait.
type Event struct {
	FD     int
	Events api.EventType
}

// Poller tracks descriptor interest and reports readiness.
//
// Both implementations are level-triggered. EventErr and EventHup are
// reported whenever present, regardless of the registered interest mask.
// A Wait batch may be partial; callers must not assume every ready
// descriptor appears in one call.
type Poller interface {
	// Register begins tracking fd with the given interest bits.
	// Returns api.ErrAlreadyRegistered if fd is already tracked.
	Register(fd int, mask api.EventType) error

	// Modify changes the interest bits of an already-registered fd.
	// Returns api.ErrNotRegistered if fd is not tracked.
	Modify(fd int, mask api.EventType) error

	// Unregister stops tracking fd.
	Unregister(fd int) error

	// Wait blocks until at least one descriptor is ready or timeoutMs
	// elapses (negative means no timeout), filling up to len(events)
	// entries. Interrupted waits report zero events.
	Wait(events []Event, timeoutMs int) (int, error)

	// Close releases backend resources.
	Close() error

	// Name identifies the backend ("epoll" or "poll").
	Name() string
}

// Open selects a backend: epoll when the kernel provides it, otherwise the
// portable poll(2) array. The caller makes the choice once and keeps it for
// the life of the loop.
func Open() (Poller, error) {
	if p, err := openEpoll(); err == nil {
		return p, nil
	}
	return OpenPoll()
}
