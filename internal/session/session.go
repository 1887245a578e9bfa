package session

import (
	"context"
	"sync"

	"github.com/maaaruch/shoppies-bot/internal/metrics"
	"github.com/maaaruch/shoppies-bot/internal/nomination"
)

type Session struct {
	UserID     int64
	Controller *nomination.Controller
}

// Factory builds the controller for a user on first contact.
type Factory func(userID int64) *nomination.Controller

type Manager struct {
	newController Factory
	metrics       *metrics.Metrics

	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewManager(newController Factory, m *metrics.Metrics) *Manager {
	return &Manager{
		newController: newController,
		metrics:       m,
		sessions:      make(map[int64]*Session),
	}
}

// Get returns the user's session, creating it and restoring cached
// nominations on first use.
func (m *Manager) Get(ctx context.Context, userID int64) *Session {
	m.mu.RLock()
	s := m.sessions[userID]
	m.mu.RUnlock()
	if s != nil {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s = m.sessions[userID]; s != nil {
		return s
	}
	ctrl := m.newController(userID)
	ctrl.Restore(ctx)
	s = &Session{UserID: userID, Controller: ctrl}
	m.sessions[userID] = s
	m.metrics.SetSessions(len(m.sessions))
	return s
}
