//go:build !linux

// File: sockloop/cork_stub.go
// Author: momentics <momentics@gmail.com>

package sockloop

import "github.com/momentics/sockloop/api"

// TCPCork is a no-op on platforms without TCP_CORK.
func (c *Conn) TCPCork(on bool) error {
	if c.closed {
		return api.ErrClosed
	}
	return api.ErrNotSupported
}
