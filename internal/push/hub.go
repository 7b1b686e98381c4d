// Package push delivers already-persisted notifications to whichever live
// WebSocket sessions belong to a user, and accepts client acknowledgements.
// Delivery here is fire-and-forget: when no session is connected the event
// is dropped, because durability is owned by the store and the broker.
package push

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Hub manages live sessions grouped by user identity. Group membership is
// session-scoped: joined on connect, torn down on disconnect.
type Hub struct {
	mu     sync.RWMutex
	groups map[uuid.UUID]map[*Session]bool
	logger *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		groups: make(map[uuid.UUID]map[*Session]bool),
		logger: logger.With(slog.String("component", "push_hub")),
	}
}

// register adds a session to its user's group.
func (h *Hub) register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[s.userID] == nil {
		h.groups[s.userID] = make(map[*Session]bool)
	}
	h.groups[s.userID][s] = true

	h.logger.Debug("session joined group",
		"user_id", s.userID,
		"sessions", len(h.groups[s.userID]))
}

// unregister removes a session from its user's group, deleting the group
// when it empties.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.groups[s.userID]
	if !ok {
		return
	}
	if _, ok := sessions[s]; !ok {
		return
	}

	delete(sessions, s)
	close(s.send)
	if len(sessions) == 0 {
		delete(h.groups, s.userID)
	}

	h.logger.Debug("session left group",
		"user_id", s.userID,
		"sessions", len(sessions))
}

// SendToUser delivers the event to every live session of the user. Sessions
// whose send buffer is full are evicted rather than allowed to stall the
// caller. No sessions means the event is silently dropped.
func (h *Hub) SendToUser(userID uuid.UUID, event Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to serialize push event",
			"event_type", event.Type,
			"error", err)
		return
	}

	// Sends happen under the read lock so a racing unregister, which closes
	// the send channel under the write lock, cannot overlap with them.
	var evicted []*Session
	h.mu.RLock()
	for s := range h.groups[userID] {
		select {
		case s.send <- msg:
		default:
			evicted = append(evicted, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range evicted {
		h.logger.Warn("evicting slow push session",
			"user_id", userID,
			"event_type", event.Type,
			"reason", "send buffer full")
		h.unregister(s)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	}
}

// SessionCount returns the number of live sessions for the user.
func (h *Hub) SessionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[userID])
}

// CloseAll tears down every session; used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, sessions := range h.groups {
		for s := range sessions {
			close(s.send)
			if s.conn != nil {
				_ = s.conn.Close()
			}
		}
		delete(h.groups, userID)
	}
}
