// Package selector ranks agents against the capabilities a subtask needs.
package selector

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/aristath/agentorch/internal/agents"
	"github.com/aristath/agentorch/internal/observability"
	"github.com/aristath/agentorch/internal/session"
)

const (
	// noRequirementsScore is the fit of any agent for a subtask that names no
	// capabilities.
	noRequirementsScore = 0.5

	agentsUnavailableText = "Unable to retrieve agent information."
	noSpecialistsText     = "No specialist agents are available."
)

// Selection is the outcome of matching a subtask to an agent.
type Selection struct {
	AgentID             string
	Confidence          float64 // in [0,1]
	MatchedCapabilities []string
}

// Selector scores directory agents for subtasks.
type Selector struct {
	dir agents.Directory
}

func New(dir agents.Directory) *Selector {
	return &Selector{dir: dir}
}

// AvailableAgentsInfo renders every non-orchestrator agent for inclusion in
// orchestrator prompts. Directory failures produce a short notice instead of
// an error.
func (s *Selector) AvailableAgentsInfo(ctx context.Context) string {
	all, err := s.dir.All(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("listing agents failed", "error", err)
		return agentsUnavailableText
	}

	var b strings.Builder
	for _, def := range all {
		if def.IsOrchestrator() {
			continue
		}
		name := def.Name
		if name == "" {
			name = def.ID
		}
		fmt.Fprintf(&b, "- %s (id: %s)", name, def.ID)
		if def.Description != "" {
			fmt.Fprintf(&b, ": %s", def.Description)
		}
		b.WriteString("\n")

		if len(def.Capabilities) == 0 {
			continue
		}
		caps := make([]string, 0, len(def.Capabilities))
		for _, c := range def.Capabilities {
			entry := fmt.Sprintf("%s [%s]", c.Name, c.ID)
			if c.Description != "" {
				entry += " - " + c.Description
			}
			caps = append(caps, entry)
		}
		fmt.Fprintf(&b, "  Capabilities: %s\n", strings.Join(caps, "; "))
	}

	if b.Len() == 0 {
		return noSpecialistsText
	}
	return strings.TrimRight(b.String(), "\n")
}

// MatchCapabilities returns the distinct required tokens the agent
// satisfies, in the order given. A token matches a capability by exact id or
// by case-insensitive name.
func MatchCapabilities(required []string, agent agents.Definition) []string {
	matched := []string{}
	for _, req := range normalize(required) {
		if slices.Contains(matched, req) {
			continue
		}
		if hasCapability(agent, req) {
			matched = append(matched, req)
		}
	}
	return matched
}

// score is the share of required tokens the agent satisfies. Repeated tokens
// count once per occurrence on both sides of the ratio.
func score(required []string, agent agents.Definition) float64 {
	if len(required) == 0 {
		return noRequirementsScore
	}
	n := 0
	for _, req := range required {
		if hasCapability(agent, req) {
			n++
		}
	}
	return float64(n) / float64(len(required))
}

func hasCapability(agent agents.Definition, token string) bool {
	for _, c := range agent.Capabilities {
		if c.ID == token || strings.EqualFold(c.Name, token) {
			return true
		}
	}
	return false
}

// SelectForSubtask picks the best agent for task. The orchestrator is only
// returned when it is the sole agent left. The second result is false when
// no candidate scores above zero or the directory cannot be read.
func (s *Selector) SelectForSubtask(ctx context.Context, task session.Subtask, orchestratorAgentID string) (Selection, bool) {
	all, err := s.dir.All(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("listing agents failed", "error", err, "subtask_id", task.ID)
		return Selection{}, false
	}

	candidates := make([]agents.Definition, 0, len(all))
	for _, def := range all {
		// Any orchestrator-role agent is excluded, not only orchestratorAgentID.
		if def.ID == orchestratorAgentID || def.IsOrchestrator() {
			continue
		}
		candidates = append(candidates, def)
	}

	if len(candidates) == 0 {
		return Selection{
			AgentID:             orchestratorAgentID,
			Confidence:          1,
			MatchedCapabilities: []string{},
		}, true
	}

	required := normalize(task.RequiredCapabilities)
	scored := make([]Selection, 0, len(candidates))
	for _, def := range candidates {
		scored = append(scored, Selection{
			AgentID:             def.ID,
			Confidence:          score(required, def),
			MatchedCapabilities: MatchCapabilities(required, def),
		})
	}

	// Stable sort keeps directory order among equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})

	best := scored[0]
	if best.Confidence <= 0 {
		return Selection{}, false
	}
	return best, true
}

// normalize trims tokens and drops blank ones. Duplicates are kept.
func normalize(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
