// File: sockloop/writeitem.go
// Author: momentics <momentics@gmail.com>
//
// Entries of the outbound queue: an owned buffer, a shared buffer
// reference, or an inline callback.

package sockloop

type writeItem struct {
	buf []byte
	ref *[]byte
	fn  func()
}

func (it *writeItem) bytes() []byte {
	if it.ref != nil {
		return *it.ref
	}
	return it.buf
}

// size is the item's contribution to the queue-pressure metric: byte
// length for buffers, 1 for callbacks.
func (it *writeItem) size() int {
	if it.fn != nil {
		return 1
	}
	return len(it.bytes())
}
