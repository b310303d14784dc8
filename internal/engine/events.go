package engine

import (
	"github.com/google/uuid"
	"github.com/liveshop/liveshop/internal/domain"
)

// Inbound event names. join-session and leave-session carry a bare session
// id string as data; the rest carry JSON objects.
const (
	EventJoinSession         = "join-session"
	EventLeaveSession        = "leave-session"
	EventSendReaction        = "send-reaction"
	EventSendQuestion        = "send-question"
	EventHighlightProduct    = "highlight-product"
	EventUpdateSessionStatus = "update-session-status"
	EventTypingQuestion      = "typing-question"
)

// Outbound event names.
const (
	EventViewerCount          = "viewer-count"
	EventJoinSuccess          = "join-success"
	EventNewReaction          = "new-reaction"
	EventNewQuestion          = "new-question"
	EventProductHighlighted   = "product-highlighted"
	EventSessionStatusChanged = "session-status-changed"
	EventUserTyping           = "user-typing"
	EventError                = "error"
)

// --- Inbound payloads ---

type ReactionPayload struct {
	SessionID    uuid.UUID `json:"sessionId"`
	ReactionType string    `json:"reactionType"`
	UserID       string    `json:"userId"`
}

type QuestionPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
	Question  string    `json:"question"`
	UserName  string    `json:"userName"`
}

type HighlightPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
	ProductID string    `json:"productId"`
}

type StatusChangePayload struct {
	SessionID uuid.UUID `json:"sessionId"`
	Status    string    `json:"status"`
}

type TypingPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
	UserName  string    `json:"userName"`
	IsTyping  bool      `json:"isTyping"`
}

// --- Outbound payloads ---

type joinSuccessPayload struct {
	SessionID   uuid.UUID `json:"sessionId"`
	ViewerCount int       `json:"viewerCount"`
}

type newReactionPayload struct {
	ReactionType string           `json:"reactionType"`
	UserID       string           `json:"userId"`
	Timestamp    int64            `json:"timestamp"`
	Analytics    domain.Analytics `json:"analytics"`
}

type productHighlightedPayload struct {
	ProductID string `json:"productId"`
}

type statusChangedPayload struct {
	Status string `json:"status"`
}

type userTypingPayload struct {
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

type errorPayload struct {
	Message string `json:"message"`
}
