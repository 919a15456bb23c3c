// Package analyzer classifies queries and breaks them into subtasks by
// consulting the orchestrator agent. Model output is untrusted: every parse
// failure degrades to a safe default instead of an error.
package analyzer

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/aristath/agentorch/internal/execution"
	"github.com/aristath/agentorch/internal/observability"
	"github.com/aristath/agentorch/internal/prompts"
	"github.com/aristath/agentorch/internal/session"
)

// Plan is the ordered subtask list for a query.
type Plan struct {
	Analysis Analysis
	Subtasks []*session.Subtask

	// Fallback is set when the plan is the single-subtask default rather
	// than the model's decomposition.
	Fallback bool
	Reason   string
}

type Analyzer struct {
	runner  execution.Runner
	prompts prompts.Loader
	agents  execution.AgentLister
	newID   func() string
}

func New(runner execution.Runner, loader prompts.Loader, agents execution.AgentLister) *Analyzer {
	return &Analyzer{
		runner:  runner,
		prompts: loader,
		agents:  agents,
		newID:   uuid.NewString,
	}
}

// AnalyzeQuery asks agentID to classify query.
func (a *Analyzer) AnalyzeQuery(ctx context.Context, query, agentID, chatID string) ParseResult {
	prompt := a.prompts.Load(prompts.TaskAnalysis, map[string]string{
		prompts.KeyQuery:           query,
		prompts.KeyAvailableAgents: a.agents.AvailableAgentsInfo(ctx),
	})

	res := a.runner.ExecuteAgentWithPrompt(ctx, agentID, chatID, prompt)
	var parsed ParseResult
	if !res.Success {
		parsed = fallback("analysis call failed: " + res.Error)
	} else {
		parsed = ParseAnalysis(res.TextResponse)
	}

	if parsed.Fallback {
		observability.Fallback(ctx, "analyze", parsed.Reason, "agent_id", agentID)
	} else {
		observability.LoggerFromContext(ctx).Debug("query analyzed",
			"task_type", parsed.Analysis.TaskType,
			"complexity", parsed.Analysis.Complexity,
			"estimated_subtasks", parsed.Analysis.EstimatedSubtasks)
	}
	return parsed
}

// DecomposeTask plans query as an ordered list of pending subtasks. Simple
// queries become one subtask without a second model call.
func (a *Analyzer) DecomposeTask(ctx context.Context, query, orchestratorAgentID, chatID string) Plan {
	analysis := a.AnalyzeQuery(ctx, query, orchestratorAgentID, chatID).Analysis

	if analysis.Complexity == Simple {
		return Plan{Analysis: analysis, Subtasks: a.single(query, analysis)}
	}

	analysisJSON, _ := json.Marshal(analysis)
	prompt := a.prompts.Load(prompts.TaskDecomposition, map[string]string{
		prompts.KeyQuery:           query,
		prompts.KeyAnalysis:        string(analysisJSON),
		prompts.KeyAvailableAgents: a.agents.AvailableAgentsInfo(ctx),
	})

	res := a.runner.ExecuteAgentWithPrompt(ctx, orchestratorAgentID, chatID, prompt)
	if !res.Success {
		return a.fallbackPlan(ctx, query, analysis, "decomposition call failed: "+res.Error)
	}

	items, err := ParseDecomposition(res.TextResponse)
	if err != nil {
		return a.fallbackPlan(ctx, query, analysis, err.Error())
	}
	subtasks := ResolveDependencies(items, a.newID)
	if len(subtasks) == 0 {
		return a.fallbackPlan(ctx, query, analysis, "decomposition produced no subtasks")
	}

	observability.LoggerFromContext(ctx).Info("query decomposed", "subtasks", len(subtasks))
	return Plan{Analysis: analysis, Subtasks: subtasks}
}

func (a *Analyzer) fallbackPlan(ctx context.Context, query string, analysis Analysis, reason string) Plan {
	observability.Fallback(ctx, "decompose", reason)
	return Plan{
		Analysis: analysis,
		Subtasks: a.single(query, analysis),
		Fallback: true,
		Reason:   reason,
	}
}

func (a *Analyzer) single(query string, analysis Analysis) []*session.Subtask {
	caps := append([]string{}, analysis.RequiredCapabilities...)
	return []*session.Subtask{{
		ID:                   a.newID(),
		Description:          query,
		RequiredCapabilities: caps,
		Dependencies:         []string{},
		Status:               session.SubtaskPending,
	}}
}
