package websocket

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"

	"main/pkg/base64"
	"main/pkg/digest"
	"main/pkg/scanner"
)

var (
	// ErrNotUpgrade is returned by Accept for requests without a
	// line-anchored `Upgrade: websocket` header.
	ErrNotUpgrade = errors.New("websocket: not an upgrade request")
	// ErrMissingKey is returned when the request has no Sec-WebSocket-Key.
	ErrMissingKey = errors.New("websocket: missing Sec-WebSocket-Key header")
	// ErrHandshakeFailed is returned by Handshake for a non-101 status.
	ErrHandshakeFailed = errors.New("websocket: handshake failed")
	// ErrAcceptMismatch is returned when the responder's accept token does
	// not equal the locally derived value.
	ErrAcceptMismatch = errors.New("websocket: accept token mismatch")
)

// magicGUID is the fixed RFC 6455 constant appended to the client key
// before hashing.
const magicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var (
	headerUpgrade   = []byte("Upgrade")
	headerKey       = []byte("Sec-WebSocket-Key")
	headerAccept    = []byte("Sec-WebSocket-Accept")
	tokenWebsocket  = []byte("websocket")
	statusSwitching = []byte("101 Switching Protocols")
)

const (
	responseFormat = "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Accept: %s\r\n\r\n"
	requestFormat  = "GET %s HTTP/1.1\r\nHost: %s\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Key: %s\r\nSec-WebSocket-Version: 13\r\n\r\n"
)

// AcceptToken derives the Sec-WebSocket-Accept value for a request key:
// the base64 form of the SHA-1 digest of key + magic GUID.
func AcceptToken(key string) string {
	s := digest.New()
	s.Write([]byte(key))
	s.Write([]byte(magicGUID))
	sum := s.Sum()
	return base64.Encode(sum[:])
}

// IsUpgradeRequest reports whether raw request bytes ask for a WebSocket
// upgrade.
func IsUpgradeRequest(req []byte) bool {
	return scanner.HasHeaderLine(req, headerUpgrade, tokenWebsocket)
}

// Accept performs the responder side of the opening handshake for the
// already-read request bytes: it extracts the client key, derives the
// accept token, and writes the 101 response to conn. The frame layer is
// never touched when the handshake fails.
func Accept(conn net.Conn, req []byte) error {
	if !IsUpgradeRequest(req) {
		return ErrNotUpgrade
	}
	key, ok := scanner.ScanHeaderField(req, headerKey)
	if !ok || len(key) == 0 {
		return ErrMissingKey
	}

	resp := fmt.Sprintf(responseFormat, AcceptToken(string(key)))
	if _, err := conn.Write([]byte(resp)); err != nil {
		return err
	}
	return nil
}

// Handshake performs the initiator side over conn: it sends the upgrade
// request with a fresh random key, then verifies the status line and the
// returned accept token byte for byte.
func Handshake(conn net.Conn, host, path string) error {
	key, err := newKey()
	if err != nil {
		return err
	}
	if path == "" {
		path = "/"
	}

	req := fmt.Sprintf(requestFormat, path, host, key)
	if _, err := conn.Write([]byte(req)); err != nil {
		return err
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return ErrHandshakeFailed
	}
	resp := buf[:n]

	if !scanner.BytesContains(resp, statusSwitching) {
		return ErrHandshakeFailed
	}
	accept, ok := scanner.ScanHeaderField(resp, headerAccept)
	if !ok {
		return ErrAcceptMismatch
	}
	if string(accept) != AcceptToken(key) {
		return ErrAcceptMismatch
	}
	return nil
}

// newKey returns a fresh 16-byte nonce in base64 form.
func newKey() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return base64.Encode(buf[:]), nil
}
