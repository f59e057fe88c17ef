// File: sockloop/options.go
// Package sockloop functional options for Reactor initialization.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockloop

import "github.com/momentics/sockloop/poller"

// Option customizes reactor initialization.
type Option func(*Reactor)

// WithPoller supplies a readiness backend explicitly, bypassing the
// epoll-then-poll selection. Tests use it to force the fallback.
func WithPoller(p poller.Poller) Option {
	return func(r *Reactor) {
		r.poller = p
	}
}

// WithLoopTimeout bounds each backend wait in milliseconds.
func WithLoopTimeout(ms int) Option {
	return func(r *Reactor) {
		r.loopTimeout = ms
	}
}

// WithMaxEvents overrides the per-batch event bound. Clamped to [64, 1024].
func WithMaxEvents(n int) Option {
	return func(r *Reactor) {
		r.maxEvents = n
	}
}
