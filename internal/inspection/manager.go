package inspection

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 256

// Manager hands out one Session per key. Least recently used sessions are
// closed once more than size are open.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions *lru.Cache[Key, *Session]
}

func NewManager(deps Deps, size int) (*Manager, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	sessions, err := lru.NewWithEvict(size, func(k Key, s *Session) {
		deps.logger().Debug("closing inspection session", "property_id", k.PropertyID, "type", k.Type)
		s.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &Manager{deps: deps, sessions: sessions}, nil
}

// Session returns the session for key, creating it unloaded if needed.
func (m *Manager) Session(key Key) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions.Get(key); ok {
		return s
	}
	s := NewSession(m.deps, key)
	m.sessions.Add(key, s)
	return s
}

// Open returns the session for key after making sure it is loaded. A session
// that failed to load is replaced so the next call retries from scratch.
func (m *Manager) Open(ctx context.Context, key Key) (*Session, error) {
	s := m.Session(key)
	if s.State() == StateFailed {
		m.mu.Lock()
		if cur, ok := m.sessions.Peek(key); ok && cur == s {
			m.sessions.Remove(key)
		}
		m.mu.Unlock()
		s = m.Session(key)
	}
	if err := s.Initialize(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Purge()
}
