//go:build !unix

// File: poller/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without a poll(2)-family multiplexer.

package poller

import "github.com/momentics/sockloop/api"

// OpenPoll returns an error for unsupported platforms.
func OpenPoll() (Poller, error) {
	return nil, api.ErrNotSupported
}
