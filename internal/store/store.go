// ABOUTME: Store interface and session types for crew-gateway persistence
// ABOUTME: Sessions are namespaced state maps keyed by (namespace, user_id, session_id)

package store

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned when no session exists under a key.
var ErrSessionNotFound = errors.New("session not found")

// Key identifies one session. Namespace is the agent namespace
// (agent_<agent_id>), so sessions for different agents never collide even
// for the same user and session id.
type Key struct {
	Namespace string
	UserID    string
	SessionID string
}

// Session holds the mutable string-keyed state map for one conversation.
// State is seeded from identity attributes on creation and written by tool
// side effects on every turn. Sessions live for the process lifetime; this
// layer defines no expiry.
type Session struct {
	Key       Key
	State     map[string]any
	CreatedAt time.Time
}

// Store persists sessions. Implementations must make CreateSession
// adopt-on-conflict: when two concurrent first turns race to create the same
// key, exactly one row wins and both callers observe it.
type Store interface {
	// GetSession returns the session under key, or ErrSessionNotFound.
	GetSession(ctx context.Context, key Key) (*Session, error)

	// CreateSession inserts the session if the key is free and returns the
	// stored row. On conflict the existing row is returned untouched; the
	// caller detects adoption by comparing pointers or CreatedAt.
	CreateSession(ctx context.Context, sess *Session) (*Session, error)

	// SaveState replaces the state map of an existing session.
	// Returns ErrSessionNotFound if the session does not exist.
	SaveState(ctx context.Context, key Key, state map[string]any) error

	// Close releases underlying resources.
	Close() error
}

// cloneState copies a state map so stored sessions never alias caller maps.
func cloneState(state map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}
