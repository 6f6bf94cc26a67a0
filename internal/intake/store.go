package intake

import (
	"sync"
	"time"
)

// Store keeps at most one session per identity. It does no validation;
// callers check Exists before Create.
type Store interface {
	Create(id Identity, operatorName string) *Session
	Get(id Identity) (*Session, bool)
	Exists(id Identity) bool
	Delete(id Identity) bool
	Save(s *Session)

	// Operator names outlive sessions so later entries can reuse them.
	OperatorName(id Identity) string
	RememberOperator(id Identity, name string)
}

type memoryStore struct {
	mu        sync.RWMutex
	sessions  map[Identity]*Session
	operators map[Identity]string
	now       func() time.Time
}

// NewMemoryStore returns the in-process session store. Sessions do not
// survive a restart.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions:  make(map[Identity]*Session),
		operators: make(map[Identity]string),
		now:       time.Now,
	}
}

// Create overwrites any existing session for id.
func (m *memoryStore) Create(id Identity, operatorName string) *Session {
	s := NewSession(id, operatorName, m.now())
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s.Clone()
}

// Get returns a copy; mutations reach the store only through Save.
func (m *memoryStore) Get(id Identity) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (m *memoryStore) Exists(id Identity) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *memoryStore) Delete(id Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

func (m *memoryStore) Save(s *Session) {
	if s == nil {
		return
	}
	c := s.Clone()
	c.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[s.Identity] = c
	m.mu.Unlock()
}

func (m *memoryStore) OperatorName(id Identity) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.operators[id]
}

func (m *memoryStore) RememberOperator(id Identity, name string) {
	m.mu.Lock()
	m.operators[id] = name
	m.mu.Unlock()
}
