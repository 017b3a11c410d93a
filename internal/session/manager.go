package session

import (
	"sort"
	"sync"

	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/translator"
	"pdf-visual-translator/internal/types"
)

// Manager holds the open sessions. The HTTP API works on the current one.
type Manager struct {
	registry *translator.Registry
	creds    translator.CredentialSource

	mu       sync.RWMutex
	sessions map[string]*Session
	current  string
}

// NewManager creates a manager whose sessions share registry and creds.
func NewManager(registry *translator.Registry, creds translator.CredentialSource) *Manager {
	if registry == nil {
		registry = translator.DefaultRegistry()
	}
	return &Manager{
		registry: registry,
		creds:    creds,
		sessions: make(map[string]*Session),
	}
}

// Registry returns the provider registry.
func (m *Manager) Registry() *translator.Registry { return m.registry }

// Open opens a session and makes it current. The previous current session
// is closed, since one reviewer works on one document at a time. On failure
// the previous session stays current.
func (m *Manager) Open(opts Options) (*Session, error) {
	s, err := Open(opts, m.registry, m.creds)
	if err != nil {
		logger.Warn("session open failed", logger.String("pdf", opts.PDFPath), logger.Err(err))
		return nil, err
	}

	m.mu.Lock()
	prev := m.sessions[m.current]
	delete(m.sessions, m.current)
	m.sessions[s.id] = s
	m.current = s.id
	m.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return s, nil
}

// Current returns the current session.
func (m *Manager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[m.current]; ok {
		return s, nil
	}
	return nil, types.NewAppError(types.ErrNoSession, "no active translation session", nil)
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, types.NewAppErrorWithDetails(types.ErrNoSession, "session not found", id, nil)
}

// IDs lists the open sessions.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes and forgets the session with the given ID.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		if m.current == id {
			m.current = ""
		}
	}
	m.mu.Unlock()

	if !ok {
		return types.NewAppErrorWithDetails(types.ErrNoSession, "session not found", id, nil)
	}
	return s.Close()
}

// CloseCurrent closes the current session, if any.
func (m *Manager) CloseCurrent() error {
	m.mu.RLock()
	id := m.current
	m.mu.RUnlock()
	if id == "" {
		return nil
	}
	return m.Close(id)
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	for _, id := range m.IDs() {
		_ = m.Close(id)
	}
}
