package bus

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"main/pkg/websocket"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Kind tags an Event for the multiplexer loop.
type Kind uint8

const (
	// KindAccept carries a freshly accepted raw transport connection.
	KindAccept Kind = iota
	// KindInbound carries one read chunk from a registered connection.
	KindInbound
	// KindClosed reports that a registered connection's read side ended.
	KindClosed
	// KindTrigger reports an external trigger firing with fresh content.
	KindTrigger
	// KindQuit asks the loop to broadcast close frames and stop.
	KindQuit
)

// Event is the unit passed into the multiplexer loop. Exactly one of Raw,
// Conn, or Data is meaningful depending on Kind.
type Event struct {
	Kind Kind
	// Raw is the accepted transport endpoint for KindAccept.
	Raw net.Conn
	// Conn is the registered connection for KindInbound and KindClosed.
	Conn *websocket.Conn
	// Data is the read chunk (KindInbound) or trigger content (KindTrigger).
	Data []byte
}

// Queue is a bounded, non-blocking event queue.
type Queue struct {
	ch     chan Event
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Publish enqueues an event, blocking until there is room, the queue
// closes, or ctx is done.
func (q *Queue) Publish(ctx context.Context, e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Drain hands every buffered event to handler without blocking. Meant
// for teardown, after producers have stopped.
func (q *Queue) Drain(handler func(Event)) {
	for {
		select {
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		default:
			return
		}
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
