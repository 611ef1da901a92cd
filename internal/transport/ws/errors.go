package ws

import "errors"

// ErrSessionShutdown is sent to clients when the server stops.
var ErrSessionShutdown = errors.New("websocket session shutdown")
