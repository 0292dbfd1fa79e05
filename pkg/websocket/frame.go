package websocket

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrPayloadTooLarge is returned by BuildFrame for payloads beyond the
	// 16-bit length encoding. The 64-bit extended form is out of scope and
	// rejected rather than mis-encoded.
	ErrPayloadTooLarge = errors.New("websocket: payload exceeds 16-bit length")
	// ErrUnsupportedLength is returned by ParseFrame when a frame carries
	// the 64-bit extended length marker.
	ErrUnsupportedLength = errors.New("websocket: 64-bit payload length unsupported")
	// ErrFrameTruncated is returned by ParseFrame when the buffer ends
	// before the header, mask key, or payload it announces.
	ErrFrameTruncated = errors.New("websocket: truncated frame")
)

// MaxPayload is the largest payload BuildFrame encodes and ParseFrame
// accepts. Larger frames require the 64-bit length path, which this
// implementation does not support.
const MaxPayload = 0xFFFF

const (
	finBit  = 0x80
	maskBit = 0x80
)

// Frame is one parsed protocol message unit.
type Frame struct {
	// Fin reports whether this is the final fragment. This implementation
	// never produces fragmented messages, but inbound FIN is surfaced.
	Fin bool
	// Opcode is the 4-bit frame type tag.
	Opcode Opcode
	// Masked reports whether the payload arrived masked.
	Masked bool
	// Payload is the unmasked payload, copied out of the parse buffer.
	Payload []byte
}

// BuildFrame encodes a single unfragmented, unmasked frame. Responder
// direction frames never carry a mask key.
func BuildFrame(payload []byte, opcode Opcode) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}

	head := 2
	if len(payload) > 125 {
		head = 4
	}
	frame := make([]byte, head+len(payload))
	frame[0] = finBit | byte(opcode&0x0F)
	if len(payload) <= 125 {
		frame[1] = byte(len(payload))
	} else {
		frame[1] = 126
		binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	}
	copy(frame[head:], payload)
	return frame, nil
}

// ParseFrame decodes one frame from buf. Every field access is bounds
// checked first; a buffer shorter than the header, mask key, or payload it
// announces yields ErrFrameTruncated without reading past len(buf).
func ParseFrame(buf []byte) (Frame, error) {
	if len(buf) < 2 {
		return Frame{}, ErrFrameTruncated
	}

	f := Frame{
		Fin:    buf[0]&finBit != 0,
		Opcode: Opcode(buf[0] & 0x0F),
		Masked: buf[1]&maskBit != 0,
	}

	payloadLen := int(buf[1] & 0x7F)
	pos := 2
	switch payloadLen {
	case 126:
		if len(buf) < pos+2 {
			return Frame{}, ErrFrameTruncated
		}
		payloadLen = int(binary.BigEndian.Uint16(buf[pos : pos+2]))
		pos += 2
	case 127:
		return Frame{}, ErrUnsupportedLength
	}

	var maskKey [4]byte
	if f.Masked {
		if len(buf) < pos+4 {
			return Frame{}, ErrFrameTruncated
		}
		copy(maskKey[:], buf[pos:pos+4])
		pos += 4
	}

	if len(buf) < pos+payloadLen {
		return Frame{}, ErrFrameTruncated
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[pos:pos+payloadLen])
	if f.Masked {
		for i := range payload {
			payload[i] ^= maskKey[i&3]
		}
	}
	f.Payload = payload
	return f, nil
}
