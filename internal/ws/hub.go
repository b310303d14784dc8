package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/liveshop/liveshop/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// Envelope is the wire format for every server-to-client and
// client-to-server message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomClients map[string]*clientWriter

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connID       string
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connID string
}

type joinRoomCmd struct {
	baseHubCmd
	sessionID uuid.UUID
	connID    string
}

type leaveRoomCmd struct {
	baseHubCmd
	sessionID uuid.UUID
	connID    string
}

type emitCmd struct {
	baseHubCmd
	sessionID uuid.UUID // zero value means direct-to-connection
	connID    string    // target for direct, excluded sender for room emits
	exclude   bool
	message   []byte
}

type stopCmd struct {
	baseHubCmd
}

// Hub is the WebSocket transport actor. It owns the connection-to-writer
// map and the session rooms, and processes all mutations on a single
// goroutine. Emits are fire-and-forget: a full writer buffer marks the
// client slow and evicts it rather than blocking the hub.
type Hub struct {
	cmdCh chan hubCmd
	clock clockwork.Clock
	conns map[string]*clientWriter
	rooms map[uuid.UUID]roomClients
	done  chan struct{}
}

// NewHub creates a hub and starts its actor goroutine.
func NewHub(clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh: make(chan hubCmd, 256),
		clock: clock,
		conns: make(map[string]*clientWriter),
		rooms: make(map[uuid.UUID]roomClients),
		done:  make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a connection to the hub and starts its writer goroutine.
func (h *Hub) Register(connID string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{connID: connID, connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a connection from all rooms and stops its writer.
func (h *Hub) Unregister(connID string) {
	h.cmdCh <- unregisterCmd{connID: connID}
}

// JoinRoom adds a connection to a session room.
func (h *Hub) JoinRoom(sessionID uuid.UUID, connID string) {
	h.cmdCh <- joinRoomCmd{sessionID: sessionID, connID: connID}
}

// LeaveRoom removes a connection from a session room.
func (h *Hub) LeaveRoom(sessionID uuid.UUID, connID string) {
	h.cmdCh <- leaveRoomCmd{sessionID: sessionID, connID: connID}
}

// EmitToRoom sends an event to every connection in a session room.
func (h *Hub) EmitToRoom(sessionID uuid.UUID, event string, payload any) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.cmdCh <- emitCmd{sessionID: sessionID, message: msg}
}

// EmitToRoomExcept sends an event to every connection in a session room
// except the named one. Used for typing indicators, which the sender
// already knows about.
func (h *Hub) EmitToRoomExcept(sessionID uuid.UUID, exceptConnID string, event string, payload any) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.cmdCh <- emitCmd{sessionID: sessionID, connID: exceptConnID, exclude: true, message: msg}
}

// EmitToConn sends an event to a single connection, whether or not it has
// joined any room.
func (h *Hub) EmitToConn(connID string, event string, payload any) {
	msg, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.cmdCh <- emitCmd{connID: connID, message: msg}
}

// Stop shuts down the hub, closing all client connections. Blocks until the
// actor goroutine has exited or the timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded, forcing exit", "timeout", stopTimeout)
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal event payload", "event", event, "error", err)
		return nil, false
	}
	msg, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		slog.Error("Failed to marshal event envelope", "event", event, "error", err)
		return nil, false
	}
	return msg, true
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connID, "")
		case joinRoomCmd:
			h.handleJoinRoom(c)
		case leaveRoomCmd:
			h.handleLeaveRoom(c.sessionID, c.connID)
		case emitCmd:
			h.handleEmit(c)
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if _, exists := h.conns[c.connID]; exists {
		c.errorChannel <- fmt.Errorf("connection %s already registered", c.connID)
		return
	}

	h.conns[c.connID] = newClientWriter(c.connID, c.connection, h.clock)
	metrics.WebSocketConnectionsCurrent.Set(float64(len(h.conns)))

	slog.Debug("Connection registered", "conn_id", c.connID, "total_connections", len(h.conns))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(connID, reason string) {
	cw, exists := h.conns[connID]
	if !exists {
		return
	}

	for sessionID, clients := range h.rooms {
		if _, ok := clients[connID]; ok {
			h.handleLeaveRoom(sessionID, connID)
		}
	}

	if reason == "" {
		cw.stop()
	} else {
		cw.stopGraceful(reason)
	}
	delete(h.conns, connID)
	metrics.WebSocketConnectionsCurrent.Set(float64(len(h.conns)))

	slog.Debug("Connection unregistered", "conn_id", connID, "total_connections", len(h.conns))
}

func (h *Hub) handleJoinRoom(c joinRoomCmd) {
	cw, exists := h.conns[c.connID]
	if !exists {
		slog.Warn("Join for unknown connection", "conn_id", c.connID, "session_id", c.sessionID.String())
		return
	}

	clients, exists := h.rooms[c.sessionID]
	if !exists {
		clients = make(roomClients)
		h.rooms[c.sessionID] = clients
	}
	clients[c.connID] = cw

	slog.Debug("Connection joined room",
		"conn_id", c.connID,
		"session_id", c.sessionID.String(),
		"room_size", len(clients),
	)
}

func (h *Hub) handleLeaveRoom(sessionID uuid.UUID, connID string) {
	clients, exists := h.rooms[sessionID]
	if !exists {
		return
	}
	delete(clients, connID)
	if len(clients) == 0 {
		delete(h.rooms, sessionID)
	}
}

func (h *Hub) handleEmit(c emitCmd) {
	if c.sessionID == uuid.Nil && !c.exclude {
		if cw, ok := h.conns[c.connID]; ok {
			h.send(cw, c.message)
		}
		return
	}

	clients, exists := h.rooms[c.sessionID]
	if !exists {
		return
	}

	var slow []string
	for connID, cw := range clients {
		if c.exclude && connID == c.connID {
			continue
		}
		select {
		case cw.sendChannel <- c.message:
		default:
			slow = append(slow, connID)
		}
	}

	for _, connID := range slow {
		slog.Warn("Disconnecting slow client", "conn_id", connID, "session_id", c.sessionID.String())
		metrics.WebSocketSlowClientsEvicted.Inc()
		h.handleUnregister(connID, "")
	}
}

func (h *Hub) send(cw *clientWriter, msg []byte) {
	select {
	case cw.sendChannel <- msg:
	default:
		slog.Warn("Disconnecting slow client", "conn_id", cw.connID)
		metrics.WebSocketSlowClientsEvicted.Inc()
		h.handleUnregister(cw.connID, "")
	}
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "rooms", len(h.rooms), "connections", len(h.conns))

	for connID := range h.conns {
		h.handleUnregister(connID, "Server shutting down")
	}
	metrics.WebSocketConnectionsCurrent.Set(0)
}
