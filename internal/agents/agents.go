// Package agents defines agent definitions and the directory that lists them.
package agents

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrAgentNotFound is returned when an id does not resolve to an agent.
var ErrAgentNotFound = errors.New("agent not found")

// Role distinguishes the coordinating agent from the workers.
type Role string

const (
	RoleOrchestrator Role = "orchestrator"
	RoleSpecialist   Role = "specialist"
)

// Capability is a named ability an agent advertises.
type Capability struct {
	ID          string
	Name        string
	Description string
}

// Definition describes one agent.
type Definition struct {
	ID           string
	Name         string
	Description  string
	Role         Role
	Capabilities []Capability
}

// IsOrchestrator reports whether the agent has the orchestrator role.
func (d Definition) IsOrchestrator() bool {
	return d.Role == RoleOrchestrator
}

// Directory enumerates agents and resolves ids.
type Directory interface {
	// All returns every agent in registration order.
	All(ctx context.Context) ([]Definition, error)
	// Get resolves an id. Returns ErrAgentNotFound for unknown ids.
	Get(ctx context.Context, id string) (Definition, error)
}

// StaticDirectory is an in-memory Directory that preserves registration order.
type StaticDirectory struct {
	mu    sync.RWMutex
	order []string
	defs  map[string]Definition
}

// NewStaticDirectory builds a directory from defs. Duplicate ids are rejected.
func NewStaticDirectory(defs ...Definition) (*StaticDirectory, error) {
	d := &StaticDirectory{defs: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := d.Register(def); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Register appends an agent to the directory.
func (d *StaticDirectory) Register(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("agent definition has empty id")
	}
	if def.Role == "" {
		def.Role = RoleSpecialist
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.defs[def.ID]; exists {
		return fmt.Errorf("agent with ID %q already exists", def.ID)
	}
	d.defs[def.ID] = cloneDefinition(def)
	d.order = append(d.order, def.ID)
	return nil
}

func (d *StaticDirectory) All(_ context.Context) ([]Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Definition, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, cloneDefinition(d.defs[id]))
	}
	return out, nil
}

func (d *StaticDirectory) Get(_ context.Context, id string) (Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	def, ok := d.defs[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return cloneDefinition(def), nil
}

func cloneDefinition(def Definition) Definition {
	cp := def
	if def.Capabilities != nil {
		cp.Capabilities = append([]Capability(nil), def.Capabilities...)
	}
	return cp
}
