package websocket

import (
	"sync"
)

// BufferPool recycles fixed-capacity read buffers across connection
// lifetimes so churny connect/disconnect cycles do not reallocate.
type BufferPool struct {
	pool *sync.Pool
}

// DefaultBufferPool returns a pool sized for the largest supported frame
// plus header overhead.
func DefaultBufferPool() *BufferPool {
	return NewBufferPool(MaxPayload + 8)
}

// NewBufferPool creates a pool whose buffers have the given capacity.
func NewBufferPool(size int64) *BufferPool {
	return &BufferPool{
		pool: &sync.Pool{
			New: func() any {
				return make([]byte, size)
			},
		},
	}
}

// Get returns a buffer re-sliced to size. Requests beyond the pool's
// capacity fall back to a fresh allocation.
func (p *BufferPool) Get(size int) []byte {
	if size <= 0 {
		return nil
	}

	buf := p.pool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size)
	}
	return buf[:size]
}

// Put returns a buffer to the pool.
func (p *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}

	buf = buf[:0]
	p.pool.Put(buf)
}
