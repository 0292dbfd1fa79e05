// Package hub implements the connection multiplexer: one loop goroutine
// owns every registered connection and fans frames out to interested
// peers. Acceptors, per-connection readers, and external triggers only
// publish events; all registry bookkeeping happens on the loop.
package hub

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/chat"
	"main/internal/obs"
	"main/pkg/websocket"
)

// Recorder persists relayed chat lines. Implementations must never block
// the loop for long; failures must stay internal.
type Recorder interface {
	Record(p chat.Payload)
}

// Config assembles a Hub.
type Config struct {
	// Listener is the accepting endpoint. Required.
	Listener net.Listener
	// Policy selects the inbound data frame handling. Defaults to echo.
	Policy Policy
	// Fallback serves non-upgrade HTTP requests. The raw connection is
	// closed after it returns. Optional.
	Fallback func(raw net.Conn, req []byte)
	// Recorder receives every relayed chat payload. Optional.
	Recorder Recorder
	// Metrics collects loop counters. Optional.
	Metrics *obs.Metrics
	// QueueSize bounds the event queue. Defaults to 256.
	QueueSize int
	// HandshakeTimeout bounds the request read after accept. Defaults
	// to 5s.
	HandshakeTimeout time.Duration
	// MaxPayload drops inbound application payloads larger than this.
	// Defaults to the frame codec limit.
	MaxPayload int
}

// Hub is the connection multiplexer / broadcast loop.
type Hub struct {
	cfg        Config
	queue      *bus.Queue
	registry   *Registry
	metrics    *obs.Metrics
	pool       *websocket.BufferPool
	maxPayload atomic.Int64

	cancel  context.CancelFunc
	readers sync.WaitGroup
	done    chan struct{}
}

// New validates cfg and builds a hub.
func New(cfg Config) (*Hub, error) {
	if cfg.Listener == nil {
		return nil, errors.New("hub: nil listener")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	if cfg.MaxPayload <= 0 || cfg.MaxPayload > websocket.MaxPayload {
		cfg.MaxPayload = websocket.MaxPayload
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &obs.Metrics{}
	}

	h := &Hub{
		cfg:      cfg,
		queue:    bus.NewQueue(cfg.QueueSize),
		registry: NewRegistry(),
		metrics:  cfg.Metrics,
		pool:     websocket.DefaultBufferPool(),
		done:     make(chan struct{}),
	}
	h.maxPayload.Store(int64(cfg.MaxPayload))
	return h, nil
}

// Metrics returns the hub counters.
func (h *Hub) Metrics() *obs.Metrics {
	return h.metrics
}

// SetMaxPayload applies a reloaded payload limit. Safe from any goroutine.
func (h *Hub) SetMaxPayload(n int) {
	if n <= 0 || n > websocket.MaxPayload {
		n = websocket.MaxPayload
	}
	h.maxPayload.Store(int64(n))
}

// Trigger broadcasts fresh external content (a reloaded file) to every
// open connection on the next loop iteration.
func (h *Hub) Trigger(content []byte) error {
	data := make([]byte, len(content))
	copy(data, content)
	return h.queue.TryPublish(bus.Event{Kind: bus.KindTrigger, Data: data})
}

// Quit asks the loop to broadcast close frames and stop.
func (h *Hub) Quit() {
	_ = h.queue.TryPublish(bus.Event{Kind: bus.KindQuit})
}

// Done is closed when the loop has fully stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run accepts and multiplexes until ctx is done or Quit is processed.
// It owns the listener and closes it on the way out.
func (h *Hub) Run(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	defer close(h.done)
	defer cancel()

	go h.acceptLoop(loopCtx)

	h.queue.Run(loopCtx, func(e bus.Event) { h.handle(loopCtx, e) })

	// Cancel before waiting: a reader parked in Publish against a full
	// queue only observes shutdown through the loop context.
	cancel()
	h.teardown()
	return ctx.Err()
}

// teardown stops intake and releases every connection. Readers exit once
// their transport closes or their publish context is cancelled; events
// still buffered when the loop stopped are drained so queued-but-never-
// accepted raw connections do not leak.
func (h *Hub) teardown() {
	_ = h.cfg.Listener.Close()
	for _, c := range h.registry.Snapshot() {
		h.registry.Remove(c)
		_ = c.Close()
	}
	h.readers.Wait()
	h.queue.Drain(func(e bus.Event) {
		if e.Kind == bus.KindAccept && e.Raw != nil {
			_ = e.Raw.Close()
		}
	})
}

func (h *Hub) acceptLoop(ctx context.Context) {
	for {
		raw, err := h.cfg.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logs.Errorf("accept: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}
		if err := h.queue.Publish(ctx, bus.Event{Kind: bus.KindAccept, Raw: raw}); err != nil {
			_ = raw.Close()
			return
		}
	}
}

func (h *Hub) handle(ctx context.Context, e bus.Event) {
	switch e.Kind {
	case bus.KindAccept:
		h.handleAccept(ctx, e.Raw)
	case bus.KindInbound:
		h.handleInbound(e.Conn, e.Data)
	case bus.KindClosed:
		h.closeConn(e.Conn)
	case bus.KindTrigger:
		h.metrics.IncTriggerReloads()
		h.broadcast(e.Data, nil)
	case bus.KindQuit:
		h.shutdown()
	}
}

// handleAccept reads the raw request once and either completes the
// upgrade or hands the request to the HTTP fallback. A failed handshake
// closes the raw connection without registering it.
func (h *Hub) handleAccept(ctx context.Context, raw net.Conn) {
	if raw == nil {
		return
	}
	h.metrics.IncAccepted()

	_ = raw.SetReadDeadline(time.Now().Add(h.cfg.HandshakeTimeout))
	buf := make([]byte, 4096)
	n, err := raw.Read(buf)
	if err != nil || n == 0 {
		h.metrics.IncHandshakeFailures()
		_ = raw.Close()
		return
	}
	req := buf[:n]

	if !websocket.IsUpgradeRequest(req) {
		if h.cfg.Fallback != nil {
			h.cfg.Fallback(raw, req)
		}
		_ = raw.Close()
		return
	}

	if err := websocket.Accept(raw, req); err != nil {
		h.metrics.IncHandshakeFailures()
		logs.Infof("handshake rejected from %s: %v", raw.RemoteAddr(), err)
		_ = raw.Close()
		return
	}
	_ = raw.SetReadDeadline(time.Time{})

	c := websocket.NewConn(raw, h.pool)
	c.MarkOpen()
	h.registry.Add(c)
	h.metrics.IncRegistered()
	logs.Infof("peer registered: %s (peers=%d)", c.RemoteAddr(), h.registry.Len())

	h.readers.Add(1)
	go h.readLoop(ctx, c)
}

// readLoop performs the blocking reads for one registered connection and
// feeds chunks to the loop. It never touches the registry itself. The
// loop context bounds Publish so shutdown reaches a reader even when the
// queue is full.
func (h *Hub) readLoop(ctx context.Context, c *websocket.Conn) {
	defer h.readers.Done()
	for {
		chunk, err := c.ReadChunk()
		if err != nil {
			_ = h.queue.TryPublish(bus.Event{Kind: bus.KindClosed, Conn: c})
			break
		}
		data := make([]byte, len(chunk))
		copy(data, chunk)
		if err := h.queue.Publish(ctx, bus.Event{Kind: bus.KindInbound, Conn: c, Data: data}); err != nil {
			break
		}
	}
	c.ReleaseBuffer()
}

// handleInbound decodes one frame from a read chunk. Malformed frames are
// dropped silently: the protocol subset is intentionally lossy there.
func (h *Hub) handleInbound(c *websocket.Conn, data []byte) {
	if c == nil || c.State() != websocket.StateOpen {
		return
	}

	f, err := websocket.ParseFrame(data)
	if err != nil {
		h.metrics.IncFramesDropped()
		return
	}
	h.metrics.IncFramesParsed()

	switch f.Opcode {
	case websocket.OpClose:
		c.WriteClose()
		h.closeConn(c)
	case websocket.OpPing:
		if err := c.WriteFrame(f.Payload, websocket.OpPong); err != nil {
			h.closeConn(c)
		}
	case websocket.OpText, websocket.OpBinary:
		if len(f.Payload) == 0 {
			return
		}
		if int64(len(f.Payload)) > h.maxPayload.Load() {
			h.metrics.IncFramesDropped()
			return
		}
		h.applyPolicy(c, f.Payload)
	default:
		// Pongs and unknown opcodes carry nothing actionable.
	}
}

func (h *Hub) applyPolicy(src *websocket.Conn, payload []byte) {
	switch h.cfg.Policy {
	case PolicyEcho:
		if err := src.WriteFrame(payload, websocket.OpText); err != nil {
			h.metrics.IncWriteFailures()
			h.closeConn(src)
		}
	case PolicyFanOut:
		p, err := chat.Decode(payload)
		if err != nil {
			h.metrics.IncFramesDropped()
			logs.Infof("malformed chat payload from %s dropped", src.RemoteAddr())
			return
		}
		h.broadcast([]byte(p.Render()), src)
		h.metrics.IncMessagesRelayed()
		if h.cfg.Recorder != nil {
			h.cfg.Recorder.Record(p)
		}
	case PolicyIgnore:
	}
}

// broadcast writes a text frame to every open connection except the
// excluded sender. Send-and-forget: a failed peer is closed and removed
// without aborting delivery to the rest.
func (h *Hub) broadcast(payload []byte, exclude *websocket.Conn) {
	frame, err := websocket.BuildFrame(payload, websocket.OpText)
	if err != nil {
		logs.Errorf("broadcast dropped: %v", err)
		return
	}
	for _, c := range h.registry.Snapshot() {
		if c == exclude || c.State() != websocket.StateOpen {
			continue
		}
		if err := c.WriteRaw(frame); err != nil {
			h.metrics.IncWriteFailures()
			h.closeConn(c)
		}
	}
}

func (h *Hub) closeConn(c *websocket.Conn) {
	if c == nil {
		return
	}
	if h.registry.Remove(c) {
		h.metrics.IncDisconnects()
		logs.Infof("peer closed: %s (peers=%d)", c.RemoteAddr(), h.registry.Len())
	}
	_ = c.Close()
}

// shutdown broadcasts close frames and stops the loop.
func (h *Hub) shutdown() {
	logs.Info("multiplexer quitting, notifying peers")
	for _, c := range h.registry.Snapshot() {
		c.WriteClose()
		h.registry.Remove(c)
		_ = c.Close()
	}
	if h.cancel != nil {
		h.cancel()
	}
}
