// File: sockloop/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package sockloop is a single-threaded, readiness-based socket reactor:
// an event loop multiplexing many descriptors, a per-connection object
// with a heterogeneous write queue and partial-write handling, and a
// deferred-close discipline that keeps descriptor numbers stable for the
// duration of a dispatch pass.
//
// All connection state belongs to the goroutine running EventLoop.
// Calling into a Conn from any other goroutine is undefined; the one
// exception is Reactor.Shutdown, which only writes the wake pipe.
package sockloop
