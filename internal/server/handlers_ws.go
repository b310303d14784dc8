package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/liveshop/liveshop/internal/engine"
	"github.com/liveshop/liveshop/internal/metrics"
	"github.com/liveshop/liveshop/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Storefront and admin run on separate origins
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		slog.Warn("Rejecting WebSocket connection", "ip", ip, "reason", reason)

		status := http.StatusTooManyRequests
		if reason == LimitReasonGlobal {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, messageResponse{Success: false, Message: "Connection limit reached"})
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.WebSocketConnectionsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	connID := uuid.NewString()
	if err := s.hub.Register(connID, conn); err != nil {
		slog.Error("Failed to register connection", "conn_id", connID, "error", err)
		_ = conn.Close()
		return nil
	}
	metrics.WebSocketConnectionsTotal.WithLabelValues("accepted").Inc()

	// Read pump blocks until the connection closes.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.dispatchMessage(connID, raw)
	}

	s.engine.Disconnect(connID)
	s.hub.Unregister(connID)

	return nil
}

// dispatchMessage routes one inbound envelope to the engine. Malformed
// messages produce an error event on the originating connection and are
// otherwise dropped.
func (s *Server) dispatchMessage(connID string, raw []byte) {
	var env ws.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.emitClientError(connID, "Invalid message format")
		return
	}

	switch env.Event {
	case engine.EventJoinSession:
		var sessionID uuid.UUID
		if err := json.Unmarshal(env.Data, &sessionID); err != nil {
			s.emitClientError(connID, "Invalid session ID")
			return
		}
		s.engine.Join(connID, sessionID)

	case engine.EventLeaveSession:
		var sessionID uuid.UUID
		if err := json.Unmarshal(env.Data, &sessionID); err != nil {
			s.emitClientError(connID, "Invalid session ID")
			return
		}
		s.engine.Leave(connID, sessionID)

	case engine.EventSendReaction:
		var p engine.ReactionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.emitClientError(connID, "Invalid reaction payload")
			return
		}
		s.engine.Reaction(connID, p)

	case engine.EventSendQuestion:
		var p engine.QuestionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.emitClientError(connID, "Invalid question payload")
			return
		}
		s.engine.Question(connID, p)

	case engine.EventHighlightProduct:
		var p engine.HighlightPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.emitClientError(connID, "Invalid highlight payload")
			return
		}
		s.engine.Highlight(p)

	case engine.EventUpdateSessionStatus:
		var p engine.StatusChangePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.emitClientError(connID, "Invalid status payload")
			return
		}
		s.engine.StatusChange(p)

	case engine.EventTypingQuestion:
		var p engine.TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.emitClientError(connID, "Invalid typing payload")
			return
		}
		s.engine.Typing(connID, p)

	default:
		s.emitClientError(connID, fmt.Sprintf("Unknown event: %s", env.Event))
	}
}

func (s *Server) emitClientError(connID, message string) {
	s.hub.EmitToConn(connID, engine.EventError, map[string]string{"message": message})
}
