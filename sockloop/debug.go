// File: sockloop/debug.go
// Author: momentics <momentics@gmail.com>
//
// Verbosity-gated diagnostics. Level 1 logs unexpected socket and backend
// errors, level 2 lifecycle events, level 3 per-event dispatch.

package sockloop

import (
	"log"
	"sync/atomic"
)

var debugLevel int32

// SetDebugLevel sets the process-wide diagnostic verbosity.
func SetDebugLevel(n int) {
	atomic.StoreInt32(&debugLevel, int32(n))
}

// DebugLevel returns the current diagnostic verbosity.
func DebugLevel() int {
	return int(atomic.LoadInt32(&debugLevel))
}

func logf(level int, format string, args ...any) {
	if DebugLevel() >= level {
		log.Printf(format, args...)
	}
}
