// ABOUTME: In-memory implementation of the Store interface
// ABOUTME: Used for tests and single-process deployments without a database file

package store

import (
	"context"
	"sync"
)

// MemoryStore implements the Store interface with an in-process map.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[Key]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[Key]*Session)}
}

// GetSession returns the session under key, or ErrSessionNotFound.
func (m *MemoryStore) GetSession(ctx context.Context, key Key) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &Session{Key: sess.Key, State: cloneState(sess.State), CreatedAt: sess.CreatedAt}, nil
}

// CreateSession stores the session unless the key is taken, in which case
// the existing session is returned.
func (m *MemoryStore) CreateSession(ctx context.Context, sess *Session) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[sess.Key]; ok {
		return &Session{Key: existing.Key, State: cloneState(existing.State), CreatedAt: existing.CreatedAt}, nil
	}
	m.sessions[sess.Key] = &Session{Key: sess.Key, State: cloneState(sess.State), CreatedAt: sess.CreatedAt}
	return sess, nil
}

// SaveState replaces the state of an existing session.
func (m *MemoryStore) SaveState(ctx context.Context, key Key, state map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[key]
	if !ok {
		return ErrSessionNotFound
	}
	sess.State = cloneState(state)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
