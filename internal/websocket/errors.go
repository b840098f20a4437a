package websocket

import "errors"

// ErrHubFull is returned when the hub refuses a new connection.
var ErrHubFull = errors.New("maximum number of clients reached")
