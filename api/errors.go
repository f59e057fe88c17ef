// File: api/errors.go
// Author: momentics <momentics@gmail.com>
//
// Common error values shared across the sockloop library.

package api

import "fmt"

// Common errors used across the library.
var (
	// ErrClosed is the closed sentinel: the connection has seen an orderly
	// peer close, a hard socket error, or a local Close.
	ErrClosed = fmt.Errorf("connection is closed")

	// ErrWouldBlock reports that a nonblocking operation found no data or
	// no buffer space. It is normal and transient.
	ErrWouldBlock = fmt.Errorf("operation would block")

	// ErrAlreadyRegistered reports a duplicate descriptor registration.
	ErrAlreadyRegistered = fmt.Errorf("descriptor already registered")

	// ErrNotRegistered reports an interest change for an untracked
	// descriptor.
	ErrNotRegistered = fmt.Errorf("descriptor not registered")

	// ErrNotSupported reports an operation the platform cannot provide.
	ErrNotSupported = fmt.Errorf("operation not supported")
)
