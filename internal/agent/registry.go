// ABOUTME: Registry of available agents, populated once at startup
// ABOUTME: Lookup by id plus insertion-ordered listing; no runtime mutation after startup

package agent

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrAgentNotFound indicates the specified agent was not found.
var ErrAgentNotFound = errors.New("agent not found")

// ErrAgentAlreadyRegistered indicates an agent with the same ID is already registered.
var ErrAgentAlreadyRegistered = errors.New("agent already registered")

// Registry holds the static id-to-descriptor map. It is populated during
// startup and read-only afterwards; the lock exists only because the HTTP
// surface may come up while registration is still running.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Descriptor
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		agents: make(map[string]*Descriptor),
		logger: logger.With("component", "registry"),
	}
}

// Register adds an agent descriptor. Returns ErrAgentAlreadyRegistered if
// the id is taken.
func (r *Registry) Register(desc *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[desc.ID]; exists {
		return ErrAgentAlreadyRegistered
	}
	r.agents[desc.ID] = desc
	r.order = append(r.order, desc.ID)

	r.logger.Info("agent registered",
		"agent_id", desc.ID,
		"name", desc.Name,
		"total_agents", len(r.agents))
	return nil
}

// Lookup returns the descriptor for id, or ErrAgentNotFound.
func (r *Registry) Lookup(id string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return desc, nil
}

// List returns all descriptors in registration order.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// IDs returns all agent ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
