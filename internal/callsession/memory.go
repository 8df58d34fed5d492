package callsession

import (
	"context"
	"sync"
)

// MemoryStore is a Store backed by maps.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	callers  map[string]Caller
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		callers:  make(map[string]Caller),
	}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := s.clone()
	return &c, nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]*Session, error) {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		c := s.clone()
		out = append(out, &c)
	}
	m.mu.Unlock()

	SortNewest(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := s.clone()
	if err := fn(&c); err != nil {
		return nil, err
	}
	m.sessions[id] = c.clone()
	return &c, nil
}

func (m *MemoryStore) UpsertCaller(_ context.Context, id string, fn func(*Caller)) (*Caller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.callers[id]
	if !ok {
		c = Caller{ID: id}
	}
	fn(&c)
	m.callers[id] = c
	return &c, nil
}

func (m *MemoryStore) GetCaller(_ context.Context, id string) (*Caller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.callers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}
