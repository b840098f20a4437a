package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the socket only carries public refresh hints
	},
}

// handleWebSocket upgrades the connection and parks it in the hub. The hub
// sends a hello frame with the assigned connection id; clients include that
// id in vote requests so their own refresh hint is suppressed.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return nil // Upgrade already wrote the HTTP error
	}

	connectionID, err := s.hub.Register(conn)
	if err != nil {
		return nil // hub closed the connection
	}

	// Drain the read side until the client goes away. Clients never send
	// data frames; this loop just detects the close.
	go func() {
		defer s.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				slog.Debug("WebSocket closed", "connection_id", connectionID)
				return
			}
		}
	}()

	return nil
}
