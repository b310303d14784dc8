package engine

import (
	"github.com/google/uuid"
	"github.com/liveshop/liveshop/internal/metrics"
)

// Registry tracks which connections are viewing which sessions. It is owned
// by the engine goroutine and holds no locks; all access is serialized
// through the engine's command channel. State is process-local and resets
// on restart.
type Registry struct {
	sessions map[uuid.UUID]map[string]struct{}
	total    int
}

// SessionCount pairs a session with its viewer count after a removal.
type SessionCount struct {
	SessionID uuid.UUID
	Count     int
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]map[string]struct{})}
}

// Add registers connID as a viewer of sessionID and returns the new count.
// Adding an already-present connection is a no-op returning the unchanged
// count.
func (r *Registry) Add(sessionID uuid.UUID, connID string) int {
	viewers, exists := r.sessions[sessionID]
	if !exists {
		viewers = make(map[string]struct{})
		r.sessions[sessionID] = viewers
	}
	if _, present := viewers[connID]; !present {
		viewers[connID] = struct{}{}
		r.total++
	}
	r.updateMetrics()
	return len(viewers)
}

// Remove deregisters connID from sessionID. The second return is false when
// the session was not tracked at all, in which case no count is meaningful.
func (r *Registry) Remove(sessionID uuid.UUID, connID string) (int, bool) {
	viewers, exists := r.sessions[sessionID]
	if !exists {
		return 0, false
	}
	if _, present := viewers[connID]; present {
		delete(viewers, connID)
		r.total--
	}
	count := len(viewers)
	if count == 0 {
		delete(r.sessions, sessionID)
	}
	r.updateMetrics()
	return count, true
}

// Count returns the current viewer count for sessionID.
func (r *Registry) Count(sessionID uuid.UUID) int {
	return len(r.sessions[sessionID])
}

// RemoveAll deregisters connID from every session it joined and returns the
// affected sessions with their updated counts. A connection with no joins
// returns nil.
func (r *Registry) RemoveAll(connID string) []SessionCount {
	var affected []SessionCount
	for sessionID, viewers := range r.sessions {
		if _, present := viewers[connID]; !present {
			continue
		}
		delete(viewers, connID)
		r.total--
		affected = append(affected, SessionCount{SessionID: sessionID, Count: len(viewers)})
		if len(viewers) == 0 {
			delete(r.sessions, sessionID)
		}
	}
	if affected != nil {
		r.updateMetrics()
	}
	return affected
}

func (r *Registry) updateMetrics() {
	metrics.RegistryActiveSessions.Set(float64(len(r.sessions)))
	metrics.RegistryConnections.Set(float64(r.total))
}
