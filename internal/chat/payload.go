// Package chat defines the application envelope carried inside WebSocket
// text frames: a 4-byte big-endian username length, the username, then the
// message body.
package chat

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBadPayload is returned when the username length field exceeds what
// the payload actually carries. This is an application-level condition:
// the message is dropped but the connection stays open.
var ErrBadPayload = errors.New("chat: malformed payload")

const headerLen = 4

// Payload is one chat message envelope.
type Payload struct {
	Username string
	Message  string
}

// Encode lays the payload out as [u32 nameLen][name][message].
func (p Payload) Encode() []byte {
	out := make([]byte, headerLen+len(p.Username)+len(p.Message))
	binary.BigEndian.PutUint32(out[:headerLen], uint32(len(p.Username)))
	copy(out[headerLen:], p.Username)
	copy(out[headerLen+len(p.Username):], p.Message)
	return out
}

// Decode parses an envelope, validating that the username length fits
// inside the payload.
func Decode(data []byte) (Payload, error) {
	if len(data) < headerLen {
		return Payload{}, ErrBadPayload
	}
	nameLen := binary.BigEndian.Uint32(data[:headerLen])
	if nameLen > uint32(len(data)-headerLen) {
		return Payload{}, ErrBadPayload
	}
	return Payload{
		Username: string(data[headerLen : headerLen+nameLen]),
		Message:  string(data[headerLen+nameLen:]),
	}, nil
}

// Render returns the broadcast line for a decoded payload.
func (p Payload) Render() string {
	return fmt.Sprintf("[%s] %s", p.Username, p.Message)
}
