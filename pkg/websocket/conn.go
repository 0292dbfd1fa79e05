package websocket

import (
	"net"
	"sync/atomic"

	"main/pkg/exception"
)

// Conn wraps an accepted or dialed transport endpoint with its protocol
// state and a reusable read buffer. State transitions are monotonic:
// connecting -> open -> closing -> closed.
type Conn struct {
	raw   net.Conn
	state atomic.Uint32
	buf   []byte
	pool  *BufferPool
}

// NewConn wraps raw in the connecting state with a read buffer drawn from
// pool. A nil pool allocates an unpooled buffer.
func NewConn(raw net.Conn, pool *BufferPool) *Conn {
	var buf []byte
	if pool != nil {
		buf = pool.Get(MaxPayload + 8)
	} else {
		buf = make([]byte, MaxPayload+8)
	}
	return &Conn{raw: raw, buf: buf, pool: pool}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	if c == nil {
		return StateClosed
	}
	return State(c.state.Load())
}

// MarkOpen records a completed handshake. It only applies from connecting.
func (c *Conn) MarkOpen() {
	c.state.CompareAndSwap(uint32(StateConnecting), uint32(StateOpen))
}

// RemoteAddr returns the peer address, or empty when unavailable.
func (c *Conn) RemoteAddr() string {
	if c == nil || c.raw == nil {
		return ""
	}
	if addr := c.raw.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// ReadChunk performs one transport read into the connection buffer and
// returns the bytes read. End-of-stream and transport errors are terminal
// for the connection.
func (c *Conn) ReadChunk() ([]byte, error) {
	if c == nil || c.raw == nil {
		return nil, exception.ErrNilInstance
	}
	n, err := c.raw.Read(c.buf)
	if err != nil || n == 0 {
		return nil, exception.ErrWebSocketConnectionClose
	}
	return c.buf[:n], nil
}

// WriteFrame encodes payload as a single frame and writes it out.
func (c *Conn) WriteFrame(payload []byte, opcode Opcode) error {
	if c == nil || c.raw == nil {
		return exception.ErrNilInstance
	}
	if State(c.state.Load()) == StateClosed {
		return exception.ErrWebSocketNotOpen
	}
	frame, err := BuildFrame(payload, opcode)
	if err != nil {
		return err
	}
	if _, err := c.raw.Write(frame); err != nil {
		return exception.ErrWebSocketConnectionClose
	}
	return nil
}

// WriteRaw writes an already encoded frame. Fan-out paths build the frame
// once and hand the same bytes to every peer.
func (c *Conn) WriteRaw(frame []byte) error {
	if c == nil || c.raw == nil {
		return exception.ErrNilInstance
	}
	if _, err := c.raw.Write(frame); err != nil {
		return exception.ErrWebSocketConnectionClose
	}
	return nil
}

// WriteClose sends an empty close frame and moves the connection to
// closing. The write error is ignored; the peer may already be gone.
func (c *Conn) WriteClose() {
	if c == nil || c.raw == nil {
		return
	}
	c.state.Store(uint32(StateClosing))
	_ = c.WriteFrame(nil, OpClose)
}

// Close releases the transport. Safe to call more than once. The read
// buffer stays with the connection until ReleaseBuffer, so a reader blocked
// in ReadChunk never races a pooled reuse.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	prev := c.state.Swap(uint32(StateClosed))
	if State(prev) == StateClosed {
		return nil
	}
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// ReleaseBuffer returns the read buffer to the pool. Only the goroutine
// that calls ReadChunk may call it, after its last read.
func (c *Conn) ReleaseBuffer() {
	if c == nil || c.pool == nil || c.buf == nil {
		return
	}
	c.pool.Put(c.buf)
	c.buf = nil
}
