package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory. Used for tests and one-shot runs.
type MemoryStore struct {
	mu      sync.RWMutex
	session Session
	clears  int
}

// NewMemory returns an empty in-memory store
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	if err := validateForSave(s); err != nil {
		return err
	}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.session = Session{}
	m.clears++
	m.mu.Unlock()
	return nil
}

// Clears returns how many times Clear has been called
func (m *MemoryStore) Clears() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clears
}
