// ABOUTME: Agent descriptors, the Runner capability interface, and turn types
// ABOUTME: A Runner executes one turn against a session and yields raw events on a channel

package agent

import (
	"context"

	"github.com/2389/crew-gateway/internal/event"
	"github.com/2389/crew-gateway/internal/guard"
)

// Turn carries everything a Runner needs to execute one request/response
// cycle. State is the session's mutable attribute map: the runner and its
// tools read identity from it and may write keys that persist across turns.
// Guard must be consulted before every tool invocation.
type Turn struct {
	AgentID   string
	UserID    string
	SessionID string
	Message   string
	State     map[string]any
	Guard     guard.Policy
}

// TurnEvent is one item of a runner's raw event stream. Exactly one of Raw
// or Err is set; an Err item is terminal and no further items follow. The
// channel closes when the turn completes.
type TurnEvent struct {
	Raw *event.Raw
	Err error
}

// Runner is the capability handle behind each registered agent. Run starts
// a turn and returns the raw event channel. The runner must stop producing
// promptly when ctx is cancelled; the consumer stops pulling as soon as the
// caller is gone.
type Runner interface {
	Run(ctx context.Context, turn *Turn) (<-chan TurnEvent, error)
}

// Descriptor is the registry entry for one agent. Immutable after
// registration.
type Descriptor struct {
	ID          string
	Name        string
	Description string
	Runner      Runner
	Guard       guard.Policy
}
