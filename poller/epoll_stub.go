//go:build !linux

// File: poller/epoll_stub.go
// Author: momentics <momentics@gmail.com>
//
// Platforms without epoll fall through to the poll(2) backend.

package poller

import "github.com/momentics/sockloop/api"

func openEpoll() (Poller, error) {
	return nil, api.ErrNotSupported
}
