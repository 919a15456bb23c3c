// Package backend talks to the language model providers agents run on.
package backend

import (
	"context"
	"fmt"
	"strings"
)

// Backend is a stateless completion provider.
type Backend interface {
	Send(ctx context.Context, req Request) (Response, error)

	// Close releases provider resources. Safe to call more than once.
	Close() error
}

// New creates a backend for cfg.Type. pm may be nil.
func New(cfg Config, pm *ProcessManager) (Backend, error) {
	switch cfg.Type {
	case TypeClaudeCLI:
		return NewClaudeAdapter(cfg, pm)
	case TypeAnthropic, TypeBedrock:
		return NewAnthropicAdapter(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// flatten renders a multi-turn request as a single prompt for providers that
// only take one.
func flatten(msgs []Message) string {
	if len(msgs) == 1 {
		return msgs[0].Content
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role == "" {
			role = "user"
		}
		parts = append(parts, role+": "+m.Content)
	}
	return strings.Join(parts, "\n\n")
}
