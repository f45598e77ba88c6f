// ABOUTME: Session manager that resolves identity and gets-or-creates namespaced sessions
// ABOUTME: Identity is refreshed on every call and merged over existing state, never cached

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/crew-gateway/internal/identity"
	"github.com/2389/crew-gateway/internal/store"
)

// Namespace returns the session namespace for an agent, keeping sessions
// for different agents apart even for the same user and session id.
func Namespace(agentID string) string {
	return "agent_" + agentID
}

// Manager owns session state. It is the only component that writes identity
// attributes into sessions; tools write their own keys through the state
// map handed to each turn.
type Manager struct {
	store    store.Store
	resolver identity.Resolver
	logger   *slog.Logger

	// serialize enables opt-in per-session turn serialization. Off by
	// default: concurrent turns on one session race with last-writer-wins
	// state, which matches the documented behavior of this layer.
	serialize bool
	mu        sync.Mutex
	locks     map[store.Key]*sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithTurnSerialization makes Serialize hand out a real per-session lock.
func WithTurnSerialization() Option {
	return func(m *Manager) { m.serialize = true }
}

// NewManager creates a session manager over the given store and resolver.
func NewManager(st store.Store, resolver identity.Resolver, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:    st,
		resolver: resolver,
		logger:   logger.With("component", "session"),
		locks:    make(map[store.Key]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate resolves the caller's identity and returns a session seeded
// with it.
//
// Identity is looked up on every call, including for existing sessions:
// directory data is refreshed, not cached. Resolution failure and absence
// are both absorbed into a deterministic guest identity and never surface
// as errors. For an existing session the identity attributes are merged
// over the current state map, so keys written by prior tool calls survive.
// Under concurrent first turns for the same key, the store guarantees at
// most one session is created and late creators adopt the winner.
//
// Only store failures are returned.
func (m *Manager) GetOrCreate(ctx context.Context, agentID, userID, sessionID string) (string, *identity.Identity, error) {
	ident := m.resolveIdentity(ctx, userID)
	ns := Namespace(agentID)

	if sessionID != "" {
		key := store.Key{Namespace: ns, UserID: userID, SessionID: sessionID}
		sess, err := m.store.GetSession(ctx, key)
		if err == nil {
			for k, v := range ident.StateMap() {
				sess.State[k] = v
			}
			if err := m.store.SaveState(ctx, key, sess.State); err != nil {
				return "", nil, fmt.Errorf("refreshing session state: %w", err)
			}
			return sessionID, ident, nil
		}
		if !errors.Is(err, store.ErrSessionNotFound) {
			return "", nil, fmt.Errorf("loading session: %w", err)
		}
	}

	newID := sessionID
	if newID == "" {
		newID = uuid.New().String()
	}
	key := store.Key{Namespace: ns, UserID: userID, SessionID: newID}
	sess := &store.Session{Key: key, State: ident.StateMap(), CreatedAt: time.Now()}

	created, err := m.store.CreateSession(ctx, sess)
	if err != nil {
		return "", nil, fmt.Errorf("creating session: %w", err)
	}
	if created != sess {
		// Lost a create race; overlay identity onto the winner's state.
		for k, v := range ident.StateMap() {
			created.State[k] = v
		}
		if err := m.store.SaveState(ctx, key, created.State); err != nil {
			return "", nil, fmt.Errorf("refreshing adopted session: %w", err)
		}
		return newID, ident, nil
	}

	m.logger.Info("session created",
		"agent_id", agentID,
		"user_id", userID,
		"session_id", newID,
		"user_name", ident.Name,
		"department", ident.Department)
	return newID, ident, nil
}

// Load returns the current state map of an existing session.
func (m *Manager) Load(ctx context.Context, agentID, userID, sessionID string) (map[string]any, error) {
	key := store.Key{Namespace: Namespace(agentID), UserID: userID, SessionID: sessionID}
	sess, err := m.store.GetSession(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess.State, nil
}

// Save persists the state map after a turn, capturing tool side effects.
func (m *Manager) Save(ctx context.Context, agentID, userID, sessionID string, state map[string]any) error {
	key := store.Key{Namespace: Namespace(agentID), UserID: userID, SessionID: sessionID}
	if err := m.store.SaveState(ctx, key, state); err != nil {
		return fmt.Errorf("saving session state: %w", err)
	}
	return nil
}

// Serialize returns an unlock function for the session, holding a per-key
// mutex for the duration of a turn when turn serialization is enabled.
// With serialization off (the default) it is a no-op.
func (m *Manager) Serialize(agentID, userID, sessionID string) func() {
	if !m.serialize {
		return func() {}
	}
	key := store.Key{Namespace: Namespace(agentID), UserID: userID, SessionID: sessionID}

	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// resolveIdentity queries the resolver, absorbing absence and failure into
// a guest identity derived from the raw id.
func (m *Manager) resolveIdentity(ctx context.Context, userID string) *identity.Identity {
	ident, err := m.resolver.Resolve(ctx, userID)
	if err != nil {
		m.logger.Debug("identity resolution failed, using guest", "user_id", userID, "error", err)
		return identity.Guest(userID)
	}
	if ident == nil {
		return identity.Guest(userID)
	}
	return ident
}
