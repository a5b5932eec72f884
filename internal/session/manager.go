package session

import (
	"errors"
	"sync"

	"github.com/dsadeck/dsadeck/internal/model"
)

// ErrNotFound means no live session has the given ID.
var ErrNotFound = errors.New("session not found")

// Manager is the in-memory registry of live sessions. Sessions are ephemeral:
// they exist from start until finish/reset and are never persisted.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Start creates a running session over the given pool and registers it.
func (m *Manager) Start(cfg model.SessionConfig, pool []model.Question, opts ...Option) (*Session, error) {
	s, err := New(cfg, pool, opts...)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns the live session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Discard resets the session (stopping its expiry task) and removes it from
// the registry. This is the finished to setup transition.
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Reset()
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
