package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Session lifecycle ---

// SessionStatus is the lifecycle state of a live-shopping session.
type SessionStatus string

const (
	StatusScheduled SessionStatus = "scheduled"
	StatusLive      SessionStatus = "live"
	StatusEnded     SessionStatus = "ended"
)

// ValidStatus reports whether s is one of the three known lifecycle states.
func ValidStatus(s SessionStatus) bool {
	switch s {
	case StatusScheduled, StatusLive, StatusEnded:
		return true
	}
	return false
}

// --- Reactions ---

// ReactionKind is one of the fixed set of viewer reactions.
type ReactionKind string

const (
	ReactionLike ReactionKind = "like"
	ReactionLove ReactionKind = "love"
	ReactionWow  ReactionKind = "wow"
	ReactionFire ReactionKind = "fire"
)

// KnownReactionKinds lists the kinds tracked in the per-kind breakdown.
// Unknown kinds still count toward the reaction total.
var KnownReactionKinds = []ReactionKind{ReactionLike, ReactionLove, ReactionWow, ReactionFire}

// KnownReactionKind reports whether k has a breakdown counter.
func KnownReactionKind(k ReactionKind) bool {
	switch k {
	case ReactionLike, ReactionLove, ReactionWow, ReactionFire:
		return true
	}
	return false
}

// --- Model types ---

// Analytics is the per-session engagement aggregate. TotalViewers and
// PeakViewers are both raised to the observed peak concurrent count; the
// stored schema keeps them as separate columns.
type Analytics struct {
	TotalViewers      int                  `json:"totalViewers"`
	PeakViewers       int                  `json:"peakViewers"`
	TotalReactions    int                  `json:"totalReactions"`
	TotalQuestions    int                  `json:"totalQuestions"`
	ReactionBreakdown map[ReactionKind]int `json:"reactionBreakdown"`
}

// NewAnalytics returns a zeroed aggregate with all known kinds present in
// the breakdown map.
func NewAnalytics() Analytics {
	breakdown := make(map[ReactionKind]int, len(KnownReactionKinds))
	for _, k := range KnownReactionKinds {
		breakdown[k] = 0
	}
	return Analytics{ReactionBreakdown: breakdown}
}

type Session struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ProductIDs  []uuid.UUID   `json:"productIds"`
	Status      SessionStatus `json:"status"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     *time.Time    `json:"endTime,omitempty"`
	Analytics   Analytics     `json:"analytics"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"imageUrl"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductCategories is the fixed category enumeration for products.
var ProductCategories = []string{"Electronics", "Fashion", "Home", "Beauty", "Sports", "Other"}

// ValidCategory reports whether c is a known product category.
func ValidCategory(c string) bool {
	for _, known := range ProductCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Question is an ephemeral viewer question. It exists only for the
// duration of the broadcast; no history is kept.
type Question struct {
	ID        string `json:"id"`
	UserName  string `json:"userName"`
	Question  string `json:"question"`
	Timestamp string `json:"timestamp"`
}

// --- Store contracts ---

// SessionFilter narrows List results. Nil fields match everything.
type SessionFilter struct {
	Status *SessionStatus
}

// ProductFilter narrows product listings. Search matches name or
// description, case-insensitively.
type ProductFilter struct {
	IsActive *bool
	Category string
	Search   string
}

// SessionRepository is the durable session store. All counter mutations
// are atomic increment-in-place at the store; callers never read-modify-write
// analytics with a stale local copy.
type SessionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	List(ctx context.Context, filter SessionFilter) ([]Session, error)
	FindLive(ctx context.Context) (*Session, error)
	Create(ctx context.Context, title, description string, productIDs []uuid.UUID, startTime time.Time) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// SetStatus transitions a session. Activating a session ends every
	// other live session first, inside a single transaction, so at most
	// one session is live at any observation point.
	SetStatus(ctx context.Context, id uuid.UUID, status SessionStatus) (*Session, error)

	// RecordViewerPeak raises totalViewers and peakViewers to at least
	// current and returns the updated aggregate.
	RecordViewerPeak(ctx context.Context, id uuid.UUID, current int) (Analytics, error)

	// RecordReaction increments totalReactions and, for known kinds, the
	// per-kind counter, returning the updated aggregate.
	RecordReaction(ctx context.Context, id uuid.UUID, kind ReactionKind) (Analytics, error)

	// RecordQuestion increments totalQuestions.
	RecordQuestion(ctx context.Context, id uuid.UUID) (Analytics, error)

	// ReplaceAnalytics overwrites the whole aggregate (admin reset).
	ReplaceAnalytics(ctx context.Context, id uuid.UUID, analytics Analytics) (*Session, error)
}

// ProductRepository is the durable product catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, filter ProductFilter) ([]Product, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
	Create(ctx context.Context, p Product) (*Product, error)
	Update(ctx context.Context, id uuid.UUID, p Product) (*Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// --- Transport contract ---

// Transport is the room-style bidirectional channel the engine fans out
// through. Implementations must be safe to call from the engine goroutine.
type Transport interface {
	JoinRoom(sessionID uuid.UUID, connID string)
	LeaveRoom(sessionID uuid.UUID, connID string)
	EmitToRoom(sessionID uuid.UUID, event string, payload any)
	EmitToRoomExcept(sessionID uuid.UUID, exceptConnID string, event string, payload any)
	EmitToConn(connID string, event string, payload any)
}

// ReactionLimiter gates reaction throughput per connection. Implementations
// fail open when the backing store is unavailable.
type ReactionLimiter interface {
	Allow(ctx context.Context, connID string) (bool, error)
}
