package exception

import "errors"

// WS errors
var (
	ErrWebSocketConnectionClose = errors.New("websocket: connection closed")
	ErrWebSocketNotOpen         = errors.New("websocket: connection not open")
)
