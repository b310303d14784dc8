// Package engine implements the realtime fan-out core: a single actor
// goroutine that owns the viewer registry, dispatches inbound session events,
// persists engagement analytics, and broadcasts updates through the
// transport. Serializing all handlers on one goroutine keeps the registry
// lock-free.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/liveshop/liveshop/internal/domain"
	"github.com/liveshop/liveshop/internal/metrics"
)

const (
	storeTimeout = 2 * time.Second
	stopTimeout  = 10 * time.Second

	questionTimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// engineCmd is the command interface for the Engine actor.
type engineCmd interface{ isEngineCmd() }

type baseEngineCmd struct{}

func (baseEngineCmd) isEngineCmd() {}

type joinCmd struct {
	baseEngineCmd
	connID    string
	sessionID uuid.UUID
}

type leaveCmd struct {
	baseEngineCmd
	connID    string
	sessionID uuid.UUID
}

type reactionCmd struct {
	baseEngineCmd
	connID  string
	payload ReactionPayload
}

type questionCmd struct {
	baseEngineCmd
	connID  string
	payload QuestionPayload
}

type highlightCmd struct {
	baseEngineCmd
	payload HighlightPayload
}

type statusChangeCmd struct {
	baseEngineCmd
	payload StatusChangePayload
}

type typingCmd struct {
	baseEngineCmd
	connID  string
	payload TypingPayload
}

type disconnectCmd struct {
	baseEngineCmd
	connID string
}

type stopEngineCmd struct {
	baseEngineCmd
}

// Engine is the session fan-out actor.
type Engine struct {
	cmdCh                chan engineCmd
	clock                clockwork.Clock
	registry             *Registry
	sessions             domain.SessionRepository
	transport            domain.Transport
	limiter              domain.ReactionLimiter
	maxViewersPerSession int
	done                 chan struct{}
}

// New creates an engine and starts its actor goroutine.
// maxViewersPerSession caps room size to prevent resource exhaustion.
func New(sessions domain.SessionRepository, transport domain.Transport, limiter domain.ReactionLimiter, clock clockwork.Clock, maxViewersPerSession int) *Engine {
	e := &Engine{
		cmdCh:                make(chan engineCmd, 256),
		clock:                clock,
		registry:             NewRegistry(),
		sessions:             sessions,
		transport:            transport,
		limiter:              limiter,
		maxViewersPerSession: maxViewersPerSession,
		done:                 make(chan struct{}),
	}
	go e.run()
	return e
}

// Join registers a viewer for a session. Fire-and-forget; outcomes are
// delivered as events on the transport.
func (e *Engine) Join(connID string, sessionID uuid.UUID) {
	e.cmdCh <- joinCmd{connID: connID, sessionID: sessionID}
}

// Leave removes a viewer from a session.
func (e *Engine) Leave(connID string, sessionID uuid.UUID) {
	e.cmdCh <- leaveCmd{connID: connID, sessionID: sessionID}
}

// Reaction records a viewer reaction and fans it out with the updated
// aggregate.
func (e *Engine) Reaction(connID string, p ReactionPayload) {
	e.cmdCh <- reactionCmd{connID: connID, payload: p}
}

// Question records a viewer question and fans it out to the room.
func (e *Engine) Question(connID string, p QuestionPayload) {
	e.cmdCh <- questionCmd{connID: connID, payload: p}
}

// Highlight broadcasts a product highlight. No persistence, no validation
// against the session's product list; authorization is the caller's concern.
func (e *Engine) Highlight(p HighlightPayload) {
	e.cmdCh <- highlightCmd{payload: p}
}

// StatusChange broadcasts a status transition to the room. The durable
// transition happens through the administrative API, not here.
func (e *Engine) StatusChange(p StatusChangePayload) {
	e.cmdCh <- statusChangeCmd{payload: p}
}

// Typing broadcasts a typing indicator to everyone in the room except the
// originator.
func (e *Engine) Typing(connID string, p TypingPayload) {
	e.cmdCh <- typingCmd{connID: connID, payload: p}
}

// Disconnect removes a connection from every session it joined and
// broadcasts the updated counts. Idempotent; unknown connections are a
// no-op.
func (e *Engine) Disconnect(connID string) {
	e.cmdCh <- disconnectCmd{connID: connID}
}

// Stop shuts down the engine. Blocks until the actor goroutine has exited
// or the timeout is reached.
func (e *Engine) Stop() {
	e.cmdCh <- stopEngineCmd{}

	timer := e.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-e.done:
		slog.Info("Engine stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Engine stop timeout exceeded, forcing exit", "timeout", stopTimeout)
	}
}

func (e *Engine) run() {
	defer close(e.done)

	depthTicker := e.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(e.cmdCh)
			metrics.EngineCommandChannelDepth.Set(float64(depth))
			if depth > 200 {
				slog.Warn("Engine command channel near capacity", "depth", depth, "capacity", cap(e.cmdCh))
			}
		case cmd := <-e.cmdCh:
			if _, ok := cmd.(stopEngineCmd); ok {
				slog.Info("Engine shutting down")
				return
			}
			e.dispatch(cmd)
		}
	}
}

// dispatch routes one command with panic isolation, so a failing handler
// never takes the whole engine down.
func (e *Engine) dispatch(cmd engineCmd) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Engine handler panic recovered", "panic", r, "command_type", fmt.Sprintf("%T", cmd))
			metrics.EnginePanicsTotal.Inc()
		}
	}()

	switch c := cmd.(type) {
	case joinCmd:
		e.handleJoin(c)
	case leaveCmd:
		e.handleLeave(c)
	case reactionCmd:
		e.handleReaction(c)
	case questionCmd:
		e.handleQuestion(c)
	case highlightCmd:
		e.handleHighlight(c)
	case statusChangeCmd:
		e.handleStatusChange(c)
	case typingCmd:
		e.handleTyping(c)
	case disconnectCmd:
		e.handleDisconnect(c)
	default:
		slog.Warn("Engine received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
	}
}

func (e *Engine) handleJoin(c joinCmd) {
	if e.registry.Count(c.sessionID) >= e.maxViewersPerSession {
		slog.Warn("Rejecting join: session full",
			"session_id", c.sessionID.String(),
			"max_viewers", e.maxViewersPerSession,
		)
		e.transport.EmitToConn(c.connID, EventError, errorPayload{Message: "Session is full"})
		metrics.EngineEventsTotal.WithLabelValues(EventJoinSession, "rejected").Inc()
		return
	}

	e.transport.JoinRoom(c.sessionID, c.connID)
	count := e.registry.Add(c.sessionID, c.connID)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	_, err := e.sessions.RecordViewerPeak(ctx, c.sessionID, count)
	cancel()

	if errors.Is(err, domain.ErrSessionNotFound) {
		// Connection stays in the room and registry; no broadcast, no ack.
		slog.Debug("Join for unknown session", "session_id", c.sessionID.String(), "conn_id", c.connID)
		metrics.EngineEventsTotal.WithLabelValues(EventJoinSession, "unknown_session").Inc()
		return
	}
	if err != nil {
		// The in-memory count is authoritative for the live broadcast; the
		// durable analytics update is best-effort.
		slog.Error("Failed to persist viewer peak",
			"session_id", c.sessionID.String(),
			"error", err,
		)
		metrics.EngineEventsTotal.WithLabelValues(EventJoinSession, "error").Inc()
	} else {
		metrics.EngineEventsTotal.WithLabelValues(EventJoinSession, "ok").Inc()
	}

	e.emitToRoom(c.sessionID, EventViewerCount, count)
	e.transport.EmitToConn(c.connID, EventJoinSuccess, joinSuccessPayload{
		SessionID:   c.sessionID,
		ViewerCount: count,
	})

	slog.Info("Viewer joined session",
		"session_id", c.sessionID.String(),
		"conn_id", c.connID,
		"viewer_count", count,
	)
}

func (e *Engine) handleLeave(c leaveCmd) {
	e.transport.LeaveRoom(c.sessionID, c.connID)

	count, tracked := e.registry.Remove(c.sessionID, c.connID)
	if !tracked {
		metrics.EngineEventsTotal.WithLabelValues(EventLeaveSession, "unknown_session").Inc()
		return
	}

	e.emitToRoom(c.sessionID, EventViewerCount, count)
	metrics.EngineEventsTotal.WithLabelValues(EventLeaveSession, "ok").Inc()

	slog.Info("Viewer left session",
		"session_id", c.sessionID.String(),
		"conn_id", c.connID,
		"viewer_count", count,
	)
}

func (e *Engine) handleReaction(c reactionCmd) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	allowed, err := e.limiter.Allow(ctx, c.connID)
	if err != nil {
		// Fail open: a broken limiter must not block reactions.
		slog.Warn("Reaction rate limit check failed", "conn_id", c.connID, "error", err)
	}
	if !allowed {
		metrics.ReactionsRateLimited.Inc()
		metrics.EngineEventsTotal.WithLabelValues(EventSendReaction, "rate_limited").Inc()
		e.transport.EmitToConn(c.connID, EventError, errorPayload{Message: "Too many reactions, slow down"})
		return
	}

	analytics, err := e.sessions.RecordReaction(ctx, c.payload.SessionID, domain.ReactionKind(c.payload.ReactionType))
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrSessionNotFound) {
			result = "unknown_session"
		} else {
			slog.Error("Failed to record reaction", "session_id", c.payload.SessionID.String(), "error", err)
		}
		metrics.EngineEventsTotal.WithLabelValues(EventSendReaction, result).Inc()
		e.transport.EmitToConn(c.connID, EventError, errorPayload{Message: "Failed to send reaction"})
		return
	}

	e.emitToRoom(c.payload.SessionID, EventNewReaction, newReactionPayload{
		ReactionType: c.payload.ReactionType,
		UserID:       c.payload.UserID,
		Timestamp:    e.clock.Now().UnixMilli(),
		Analytics:    analytics,
	})
	metrics.EngineEventsTotal.WithLabelValues(EventSendReaction, "ok").Inc()
}

func (e *Engine) handleQuestion(c questionCmd) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	_, err := e.sessions.RecordQuestion(ctx, c.payload.SessionID)
	cancel()

	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrSessionNotFound) {
			result = "unknown_session"
		} else {
			slog.Error("Failed to record question", "session_id", c.payload.SessionID.String(), "error", err)
		}
		metrics.EngineEventsTotal.WithLabelValues(EventSendQuestion, result).Inc()
		e.transport.EmitToConn(c.connID, EventError, errorPayload{Message: "Failed to send question"})
		return
	}

	now := e.clock.Now()
	userName := c.payload.UserName
	if userName == "" {
		userName = "Anonymous"
	}

	e.emitToRoom(c.payload.SessionID, EventNewQuestion, domain.Question{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		UserName:  userName,
		Question:  c.payload.Question,
		Timestamp: now.UTC().Format(questionTimestampLayout),
	})
	metrics.EngineEventsTotal.WithLabelValues(EventSendQuestion, "ok").Inc()
}

func (e *Engine) handleHighlight(c highlightCmd) {
	e.emitToRoom(c.payload.SessionID, EventProductHighlighted, productHighlightedPayload{
		ProductID: c.payload.ProductID,
	})
	metrics.EngineEventsTotal.WithLabelValues(EventHighlightProduct, "ok").Inc()
}

func (e *Engine) handleStatusChange(c statusChangeCmd) {
	e.emitToRoom(c.payload.SessionID, EventSessionStatusChanged, statusChangedPayload{
		Status: c.payload.Status,
	})
	metrics.EngineEventsTotal.WithLabelValues(EventUpdateSessionStatus, "ok").Inc()
}

func (e *Engine) handleTyping(c typingCmd) {
	e.transport.EmitToRoomExcept(c.payload.SessionID, c.connID, EventUserTyping, userTypingPayload{
		UserName: c.payload.UserName,
		IsTyping: c.payload.IsTyping,
	})
	metrics.EngineBroadcastsTotal.WithLabelValues(EventUserTyping).Inc()
	metrics.EngineEventsTotal.WithLabelValues(EventTypingQuestion, "ok").Inc()
}

func (e *Engine) handleDisconnect(c disconnectCmd) {
	affected := e.registry.RemoveAll(c.connID)
	for _, sc := range affected {
		e.emitToRoom(sc.SessionID, EventViewerCount, sc.Count)
	}
	metrics.EngineEventsTotal.WithLabelValues("disconnect", "ok").Inc()

	if len(affected) > 0 {
		slog.Info("Connection disconnected", "conn_id", c.connID, "sessions", len(affected))
	}
}

func (e *Engine) emitToRoom(sessionID uuid.UUID, event string, payload any) {
	e.transport.EmitToRoom(sessionID, event, payload)
	metrics.EngineBroadcastsTotal.WithLabelValues(event).Inc()
}
