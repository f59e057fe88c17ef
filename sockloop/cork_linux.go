//go:build linux

// File: sockloop/cork_linux.go
// Author: momentics <momentics@gmail.com>
//
// TCP_CORK switch for batched sends.

package sockloop

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/momentics/sockloop/api"
)

// TCPCork sets or clears TCP_CORK on the underlying socket.
func (c *Conn) TCPCork(on bool) error {
	if c.closed {
		return api.ErrClosed
	}
	v := 0
	if on {
		v = 1
	}
	return os.NewSyscallError("setsockopt",
		unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unix.TCP_CORK, v))
}
