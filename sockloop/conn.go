// File: sockloop/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn is the per-socket object: write queue with partial-write handling
// and inline callbacks, read helpers, interest toggles, deferred close.

package sockloop

import (
	"fmt"
	"net"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/sockloop/api"
)

// Conn wraps one nonblocking socket owned by a Reactor. All methods must
// run on the loop goroutine.
type Conn struct {
	r       *Reactor
	fd      int
	handler EventHandler

	writeBuf       *queue.Queue // of *writeItem
	writeBufOffset int          // bytes already sent from the head item
	writeBufSize   int          // unsent bytes, plus 1 per queued callback

	readBuf   *queue.Queue // of []byte
	readAhead int

	closed     bool
	eventWatch api.EventType
}

// NewConn wraps an already-connected (or accepted) nonblocking socket,
// registers it with the reactor's backend for error and hangup conditions,
// and inserts it into the descriptor registry. The handler serves the
// connection for its lifetime.
func NewConn(r *Reactor, fd int, handler EventHandler) (*Conn, error) {
	if handler == nil {
		return nil, fmt.Errorf("sockloop: nil handler for fd %d", fd)
	}
	c := &Conn{
		r:          r,
		fd:         fd,
		handler:    handler,
		writeBuf:   queue.New(),
		readBuf:    queue.New(),
		eventWatch: api.EventErr | api.EventHup,
	}
	if err := r.poller.Register(fd, c.eventWatch); err != nil {
		return nil, err
	}
	r.conns[fd] = c
	logf(2, "sockloop: fd %d registered (%T)", fd, handler)
	return c, nil
}

// Fd returns the underlying descriptor number. It stays stable for the
// connection's lifetime.
func (c *Conn) Fd() int { return c.fd }

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool { return c.closed }

// WriteBufSize is the queue-pressure metric: unsent bytes plus one per
// queued callback. Zero exactly when the queue is empty.
func (c *Conn) WriteBufSize() int { return c.writeBufSize }

// Write queues p for transmission, attempting the send immediately when
// nothing is pending. A nil or empty p just kicks the queue. Returns true
// when the queue is empty at return; false when bytes remain, in which
// case writable interest has been armed. A send error closes the
// connection and returns Close's false result. On a closed connection it
// returns true without touching the socket, so handlers re-entered from a
// nested close see success.
func (c *Conn) Write(p []byte) bool {
	if len(p) == 0 {
		return c.write(nil)
	}
	return c.write(&writeItem{buf: p})
}

// WriteRef queues a shared buffer by reference. The referent is read at
// transmission time and must not be mutated while queued.
func (c *Conn) WriteRef(p *[]byte) bool {
	if p == nil || len(*p) == 0 {
		return c.write(nil)
	}
	return c.write(&writeItem{ref: p})
}

// WriteFunc queues fn behind any pending data. It runs synchronously on
// the loop goroutine, exactly once, when it reaches the front of the
// queue. Data written from inside fn lands behind items already queued.
func (c *Conn) WriteFunc(fn func()) bool {
	if fn == nil {
		return c.write(nil)
	}
	return c.write(&writeItem{fn: fn})
}

func (c *Conn) write(it *writeItem) bool {
	if c.closed {
		return true
	}

	var head *writeItem
	fastPath := false

	if it != nil {
		if c.writeBufSize > 0 {
			// Data is pending; keep ordering by queueing behind it.
			c.writeBuf.Add(it)
			c.writeBufSize += it.size()
			return false
		}
		// Empty queue: try the item in place, enqueue only if the send
		// comes up short.
		fastPath = true
		head = it
	}

	for {
		if head == nil {
			fastPath = false
			if c.writeBuf.Length() == 0 {
				return true
			}
			head = c.writeBuf.Peek().(*writeItem)
		}

		if head.fn != nil {
			if !fastPath {
				c.writeBufSize--
				c.writeBuf.Remove()
			}
			head.fn()
			head = nil
			continue
		}

		buf := head.bytes()
		toWrite := len(buf) - c.writeBufOffset
		n, err := unix.Write(c.fd, buf[c.writeBufOffset:])
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EPIPE:
				return c.Close("EPIPE")
			case unix.ECONNRESET:
				return c.Close("ECONNRESET")
			case unix.EAGAIN:
				if fastPath {
					c.writeBuf.Add(head)
					c.writeBufSize += len(buf)
				}
				c.WatchWrite(true)
				return false
			default:
				logf(1, "sockloop: fd %d write error: %v", c.fd, err)
				return c.Close("write_error")
			}
		}

		if n < toWrite {
			if fastPath {
				c.writeBuf.Add(head)
				c.writeBufSize += len(buf)
			}
			c.writeBufOffset += n
			c.writeBufSize -= n
			c.WatchWrite(true)
			return false
		}

		// Head fully sent.
		c.writeBufOffset = 0
		if fastPath {
			return true
		}
		c.writeBufSize -= n
		c.writeBuf.Remove()
		head = nil
	}
}

// Read performs one nonblocking read of at most n bytes. It returns
// api.ErrClosed on orderly peer close or any hard error, and
// api.ErrWouldBlock when the socket has nothing to deliver.
func (c *Conn) Read(n int) ([]byte, error) {
	if c.closed {
		return nil, api.ErrClosed
	}
	buf := make([]byte, n)
	got, err := unix.Read(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, api.ErrWouldBlock
		}
		if err == unix.EINTR {
			return nil, api.ErrWouldBlock
		}
		logf(1, "sockloop: fd %d read error: %v", c.fd, err)
		return nil, api.ErrClosed
	}
	if got == 0 {
		return nil, api.ErrClosed
	}
	return buf[:got], nil
}

// PushBackRead returns data to the connection's read buffer, for protocol
// layers that consumed more than they needed.
func (c *Conn) PushBackRead(p []byte) {
	if len(p) == 0 {
		return
	}
	c.readBuf.Add(p)
	c.readAhead += len(p)
}

// ReadAhead is the byte count currently held in the read buffer.
func (c *Conn) ReadAhead() int { return c.readAhead }

// DrainReadBufTo hands every buffered read item to dest.Write in order,
// zeroing the read-ahead count. It is the splicing primitive for relay
// handlers.
func (c *Conn) DrainReadBufTo(dest *Conn) {
	for c.readBuf.Length() > 0 {
		p := c.readBuf.Remove().([]byte)
		c.readAhead -= len(p)
		dest.Write(p)
	}
}

// WatchRead toggles readable interest.
func (c *Conn) WatchRead(on bool) { c.watch(api.EventRead, on) }

// WatchWrite toggles writable interest.
func (c *Conn) WatchWrite(on bool) { c.watch(api.EventWrite, on) }

func (c *Conn) watch(bit api.EventType, on bool) {
	if c.closed {
		return
	}
	mask := c.eventWatch
	if on {
		mask |= bit
	} else {
		mask &^= bit
	}
	if mask == c.eventWatch {
		return
	}
	if err := c.r.poller.Modify(c.fd, mask); err != nil {
		logf(1, "sockloop: fd %d interest change failed: %v", c.fd, err)
		return
	}
	c.eventWatch = mask
}

// Close marks the connection closed, clears the write queue (dropping any
// closures that capture the Conn), unregisters the descriptor and removes
// it from the registry. The descriptor itself is released only at the end
// of the current dispatch pass, so its number cannot be recycled into a
// connection whose events would then be misrouted. Idempotent. The result
// is always false so handlers can end with `return c.Close(reason)`.
func (c *Conn) Close(reason string) bool {
	if c.closed {
		return false
	}
	c.closed = true
	logf(2, "sockloop: fd %d closing (%s)", c.fd, reason)

	c.writeBuf = queue.New()
	c.writeBufSize = 0
	c.writeBufOffset = 0

	if err := c.r.poller.Unregister(c.fd); err != nil {
		logf(1, "sockloop: fd %d unregister failed: %v", c.fd, err)
	}
	delete(c.r.conns, c.fd)
	c.r.toClose.Add(c.fd)
	return false
}

// PeerAddrString formats the peer address as "a.b.c.d:port" ("[addr]:port"
// for IPv6), or "" when the peer address is unavailable (unix sockets,
// closed descriptors).
func (c *Conn) PeerAddrString() string {
	sa, err := unix.Getpeername(c.fd)
	if err != nil {
		return ""
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%s:%d", net.IP(a.Addr[:]).String(), a.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%s]:%d", net.IP(a.Addr[:]).String(), a.Port)
	}
	return ""
}

// String renders the handler type, open/closed state, and peer if known.
func (c *Conn) String() string {
	state := "open"
	if c.closed {
		state = "closed"
	}
	if peer := c.PeerAddrString(); peer != "" {
		return fmt.Sprintf("%T: (%s) to %s", c.handler, state, peer)
	}
	return fmt.Sprintf("%T: (%s)", c.handler, state)
}
