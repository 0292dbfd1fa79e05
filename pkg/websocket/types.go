package websocket

// Opcode is the 4-bit frame type tag from RFC 6455.
type Opcode byte

const (
	// OpContinuation marks a fragment of a previous data frame.
	OpContinuation Opcode = 0x0
	// OpText is a text data frame.
	OpText Opcode = 0x1
	// OpBinary is a binary data frame.
	OpBinary Opcode = 0x2
	// OpClose is a close control frame.
	OpClose Opcode = 0x8
	// OpPing is a ping control frame.
	OpPing Opcode = 0x9
	// OpPong is a pong control frame.
	OpPong Opcode = 0xA
)

// Known reports whether o is one of the closed set of opcodes this
// implementation understands. Frames with unknown opcodes are still parsed
// so callers can decide how to handle forward-compatibility.
func (o Opcode) Known() bool {
	switch o {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	default:
		return false
	}
}

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return "unknown"
	}
}

// State is the lifecycle position of a connection.
type State uint8

const (
	// StateConnecting covers the window between accept and handshake.
	StateConnecting State = iota
	// StateOpen means the handshake completed and frames may flow.
	StateOpen
	// StateClosing means a close frame was sent and teardown is underway.
	StateClosing
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}
