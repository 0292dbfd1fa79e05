// Package obs collects lightweight operational counters for the
// multiplexer loop. Counters are safe for concurrent increments; Snapshot
// is a point-in-time copy for the admin surface.
package obs

import (
	"fmt"
	"sync/atomic"
)

// Metrics counts connection and frame activity.
type Metrics struct {
	accepted          uint64
	handshakeFailures uint64
	registered        uint64
	disconnects       uint64
	framesParsed      uint64
	framesDropped     uint64
	messagesRelayed   uint64
	writeFailures     uint64
	triggerReloads    uint64
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Accepted          uint64
	HandshakeFailures uint64
	Registered        uint64
	Disconnects       uint64
	FramesParsed      uint64
	FramesDropped     uint64
	MessagesRelayed   uint64
	WriteFailures     uint64
	TriggerReloads    uint64
}

func (m *Metrics) IncAccepted()          { atomic.AddUint64(&m.accepted, 1) }
func (m *Metrics) IncHandshakeFailures() { atomic.AddUint64(&m.handshakeFailures, 1) }
func (m *Metrics) IncRegistered()        { atomic.AddUint64(&m.registered, 1) }
func (m *Metrics) IncDisconnects()       { atomic.AddUint64(&m.disconnects, 1) }
func (m *Metrics) IncFramesParsed()      { atomic.AddUint64(&m.framesParsed, 1) }
func (m *Metrics) IncFramesDropped()     { atomic.AddUint64(&m.framesDropped, 1) }
func (m *Metrics) IncMessagesRelayed()   { atomic.AddUint64(&m.messagesRelayed, 1) }
func (m *Metrics) IncWriteFailures()     { atomic.AddUint64(&m.writeFailures, 1) }
func (m *Metrics) IncTriggerReloads()    { atomic.AddUint64(&m.triggerReloads, 1) }

// Snapshot captures the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Accepted:          atomic.LoadUint64(&m.accepted),
		HandshakeFailures: atomic.LoadUint64(&m.handshakeFailures),
		Registered:        atomic.LoadUint64(&m.registered),
		Disconnects:       atomic.LoadUint64(&m.disconnects),
		FramesParsed:      atomic.LoadUint64(&m.framesParsed),
		FramesDropped:     atomic.LoadUint64(&m.framesDropped),
		MessagesRelayed:   atomic.LoadUint64(&m.messagesRelayed),
		WriteFailures:     atomic.LoadUint64(&m.writeFailures),
		TriggerReloads:    atomic.LoadUint64(&m.triggerReloads),
	}
}

// String renders the snapshot as one line per counter for the admin
// control socket.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"accepted=%d\nhandshake_failures=%d\nregistered=%d\ndisconnects=%d\n"+
			"frames_parsed=%d\nframes_dropped=%d\nmessages_relayed=%d\n"+
			"write_failures=%d\ntrigger_reloads=%d\n",
		s.Accepted, s.HandshakeFailures, s.Registered, s.Disconnects,
		s.FramesParsed, s.FramesDropped, s.MessagesRelayed,
		s.WriteFailures, s.TriggerReloads,
	)
}
