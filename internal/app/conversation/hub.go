package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/fakhriadk/calmbot/internal/domain"
	"github.com/fakhriadk/calmbot/internal/observability"
)

// Hub keeps one Manager per signed-in user for the server process.
type Hub struct {
	deps Deps
	now  func() time.Time

	mu       sync.Mutex
	sessions map[domain.UserID]*hubEntry
}

type hubEntry struct {
	m        *Manager
	lastSeen time.Time
}

func NewHub(deps Deps) *Hub {
	return &Hub{
		deps:     deps,
		now:      time.Now,
		sessions: make(map[domain.UserID]*hubEntry),
	}
}

// Start returns the caller's active session, starting it when needed.
func (h *Hub) Start(ctx context.Context) (*Manager, error) {
	uid, ok := h.deps.Auth.CurrentUserID(ctx)
	if !ok || uid == "" {
		return nil, ErrAuthMissing
	}

	h.mu.Lock()
	e, exists := h.sessions[uid]
	if !exists {
		e = &hubEntry{m: NewManager(h.deps)}
		h.sessions[uid] = e
	}
	e.lastSeen = h.now()
	m := e.m
	h.mu.Unlock()

	if m.Active() {
		return m, nil
	}
	if err := m.Start(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Session returns the caller's session without starting it.
func (h *Hub) Session(ctx context.Context) (*Manager, error) {
	uid, ok := h.deps.Auth.CurrentUserID(ctx)
	if !ok || uid == "" {
		return nil, ErrAuthMissing
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	e, exists := h.sessions[uid]
	if !exists || !e.m.Active() {
		return nil, ErrSessionClosed
	}
	e.lastSeen = h.now()
	return e.m, nil
}

// Stop tears down the caller's session. Stopping a missing session is fine.
func (h *Hub) Stop(ctx context.Context) error {
	uid, ok := h.deps.Auth.CurrentUserID(ctx)
	if !ok || uid == "" {
		return ErrAuthMissing
	}

	h.mu.Lock()
	e, exists := h.sessions[uid]
	delete(h.sessions, uid)
	h.mu.Unlock()

	if exists {
		e.m.Stop()
	}
	return nil
}

// Touch marks the user's session as used, keeping it away from the reaper.
func (h *Hub) Touch(uid domain.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.sessions[uid]; ok {
		e.lastSeen = h.now()
	}
}

// ReapIdle stops every session unused for longer than ttl and returns how
// many were removed.
func (h *Hub) ReapIdle(ttl time.Duration) int {
	cutoff := h.now().Add(-ttl)

	h.mu.Lock()
	var idle []*Manager
	for uid, e := range h.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.m)
			delete(h.sessions, uid)
		}
	}
	h.mu.Unlock()

	for _, m := range idle {
		m.Stop()
	}
	if len(idle) > 0 {
		observability.Logger().Info("reaped idle chat sessions", "count", len(idle), "ttl", ttl.String())
	}
	return len(idle)
}

// Len is the number of tracked sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown stops all sessions.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	all := make([]*Manager, 0, len(h.sessions))
	for uid, e := range h.sessions {
		all = append(all, e.m)
		delete(h.sessions, uid)
	}
	h.mu.Unlock()

	for _, m := range all {
		m.Stop()
	}
}
