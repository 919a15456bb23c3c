package config

import (
	"errors"
	"fmt"
)

var knownProviderTypes = map[string]bool{
	"claude":    true,
	"anthropic": true,
	"bedrock":   true,
}

// Validate checks the references between sections. Every problem found is
// reported, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	for name, p := range c.Providers {
		if !knownProviderTypes[p.Type] {
			errs = append(errs, fmt.Errorf("provider %q: unknown type %q", name, p.Type))
		}
		if p.Type == "claude" && p.Command == "" {
			errs = append(errs, fmt.Errorf("provider %q: command is required", name))
		}
	}

	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("agent #%d: id is required", i+1))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("agent %q: duplicate id", a.ID))
		}
		seen[a.ID] = true

		switch a.Role {
		case "", "orchestrator", "specialist":
		default:
			errs = append(errs, fmt.Errorf("agent %q: unknown role %q", a.ID, a.Role))
		}
		if _, ok := c.Providers[a.Provider]; !ok {
			errs = append(errs, fmt.Errorf("agent %q: unknown provider %q", a.ID, a.Provider))
		}
	}

	if c.OrchestratorAgent == "" {
		errs = append(errs, errors.New("orchestrator_agent is required"))
	} else if a, ok := c.Agent(c.OrchestratorAgent); !ok {
		errs = append(errs, fmt.Errorf("orchestrator_agent %q is not a configured agent", c.OrchestratorAgent))
	} else if a.Role != "orchestrator" {
		errs = append(errs, fmt.Errorf("orchestrator_agent %q must have role orchestrator", a.ID))
	}

	if c.Engine.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("engine.max_concurrency must not be negative"))
	}
	return errors.Join(errs...)
}
