package hub

import "main/pkg/websocket"

// Registry is the ordered set of registered connections. It is owned by
// the multiplexer loop goroutine and is deliberately unsynchronized:
// every mutation happens on that single goroutine.
type Registry struct {
	conns []*websocket.Conn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a connection after a successful handshake.
func (r *Registry) Add(c *websocket.Conn) {
	if c == nil {
		return
	}
	r.conns = append(r.conns, c)
}

// Remove erases a connection and reports whether it was present.
// Compaction preserves the order of the remaining entries, so a snapshot
// taken before a mid-broadcast removal stays valid.
func (r *Registry) Remove(c *websocket.Conn) bool {
	for i, got := range r.conns {
		if got == c {
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current entries. Broadcasts iterate the
// copy so removals discovered mid-fan-out cannot corrupt the iteration.
func (r *Registry) Snapshot() []*websocket.Conn {
	out := make([]*websocket.Conn, len(r.conns))
	copy(out, r.conns)
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.conns)
}
