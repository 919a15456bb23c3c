// Package synthesis folds a finished session into the final answer.
package synthesis

import (
	"context"
	"encoding/json"

	"github.com/aristath/agentorch/internal/execution"
	"github.com/aristath/agentorch/internal/observability"
	"github.com/aristath/agentorch/internal/prompts"
	"github.com/aristath/agentorch/internal/session"
)

const noResult = "No result"

// Outcome is how one subtask is presented to the orchestrator.
type Outcome struct {
	Description string `json:"description"`
	Status      string `json:"status"`
	Result      string `json:"result"`
}

type Synthesizer struct {
	runner  execution.Runner
	prompts prompts.Loader
	agents  execution.AgentLister
}

func New(runner execution.Runner, loader prompts.Loader, agents execution.AgentLister) *Synthesizer {
	return &Synthesizer{runner: runner, prompts: loader, agents: agents}
}

// Outcomes lists every subtask in session order.
func Outcomes(sess *session.Session) []Outcome {
	results := sess.Results()
	subtasks := sess.Subtasks()
	out := make([]Outcome, 0, len(subtasks))
	for _, t := range subtasks {
		r, ok := results[t.ID]
		if !ok || r == "" {
			r = noResult
		}
		out = append(out, Outcome{Description: t.Description, Status: string(t.Status), Result: r})
	}
	return out
}

// SynthesizeResults asks the orchestrator for one answer covering every
// subtask. A failed call is reported in the returned text, not as an error.
func (s *Synthesizer) SynthesizeResults(ctx context.Context, sess *session.Session, orchestratorAgentID string) string {
	payload, err := json.MarshalIndent(Outcomes(sess), "", "  ")
	if err != nil {
		return "Error synthesizing results: " + err.Error()
	}

	prompt := s.prompts.Load(prompts.ResultSynthesis, map[string]string{
		prompts.KeyOriginalQuery:   sess.OriginalQuery,
		prompts.KeyResults:         string(payload),
		prompts.KeyAvailableAgents: s.agents.AvailableAgentsInfo(ctx),
	})

	res := s.runner.ExecuteAgentWithPrompt(ctx, orchestratorAgentID, sess.ChatID, prompt)
	if !res.Success {
		observability.LoggerFromContext(ctx).Warn("synthesis failed", "error", res.Error)
		return "Error synthesizing results: " + res.Error
	}
	return res.TextResponse
}
