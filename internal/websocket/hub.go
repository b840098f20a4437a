// Package websocket fans change notifications out to connected clients.
// The hub is a single actor goroutine owning all connection state; per
// connection a writer goroutine drains a buffered send channel so one slow
// client never blocks a broadcast.
package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Gwagwa94/Votooveto/internal/domain"
	"github.com/Gwagwa94/Votooveto/internal/metrics"
)

const (
	maxClients   = 256
	writeTimeout = 5 * time.Second
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn    *websocket.Conn
	replyCh chan registerReply
}

func (cmdRegister) hubCmd() {}

type registerReply struct {
	connectionID string
	err          error
}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	data   []byte
	origin string
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	id     string
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(id string, conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		id:     id,
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) enqueue(msg []byte) {
	select {
	case cw.sendCh <- msg:
	default:
		metrics.HubMessagesDropped.Inc()
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	cw.conn.Close()
}

// --- Hub ---

// helloFrame is the first message sent on every connection. Clients echo
// the connection id in vote requests so their own listener can skip the
// redundant refetch.
type helloFrame struct {
	Event        string `json:"event"`
	ConnectionID string `json:"connectionId"`
}

type Hub struct {
	cmdCh   chan hubCmd
	clients map[*websocket.Conn]*clientWriter
}

func NewHub() *Hub {
	hub := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clients: make(map[*websocket.Conn]*clientWriter),
	}
	go hub.run()
	return hub
}

// Register adds a connection and returns its assigned connection id. The
// hello frame carrying the id is queued before any broadcast can reach the
// connection.
func (h *Hub) Register(conn *websocket.Conn) (string, error) {
	replyCh := make(chan registerReply, 1)
	h.cmdCh <- cmdRegister{conn: conn, replyCh: replyCh}
	reply := <-replyCh
	return reply.connectionID, reply.err
}

// Unregister removes a connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{conn: conn}
}

// BroadcastEvent sends a change event to every client except the one whose
// connection id matches the event origin.
func (h *Hub) BroadcastEvent(event domain.ChangeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal change event", "error", err)
		return
	}
	h.cmdCh <- cmdBroadcast{data: data, origin: event.Origin}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdClientCount{replyCh: replyCh}
	return <-replyCh
}

// Stop shuts down the hub, closing all client connections.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= maxClients {
		slog.Warn("Rejecting client: max clients reached", "max", maxClients)
		c.conn.Close()
		c.replyCh <- registerReply{err: ErrHubFull}
		return
	}

	id := uuid.NewString()
	cw := newClientWriter(id, c.conn)
	h.clients[c.conn] = cw
	metrics.HubConnectedClients.Set(float64(len(h.clients)))

	hello, err := json.Marshal(helloFrame{Event: "hello", ConnectionID: id})
	if err == nil {
		cw.enqueue(hello)
	}

	slog.Debug("Client registered", "connection_id", id, "total_clients", len(h.clients))
	c.replyCh <- registerReply{connectionID: id}
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}
	delete(h.clients, conn)
	cw.stop()
	metrics.HubConnectedClients.Set(float64(len(h.clients)))
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	for _, cw := range h.clients {
		if c.origin != "" && cw.id == c.origin {
			continue
		}
		cw.enqueue(c.data)
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		delete(h.clients, conn)
		cw.stop()
	}
	metrics.HubConnectedClients.Set(0)
}
