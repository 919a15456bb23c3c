package analyzer

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/agentorch/internal/execution"
	"github.com/aristath/agentorch/internal/observability"
	"github.com/aristath/agentorch/internal/prompts"
	"github.com/aristath/agentorch/internal/session"
)

func init() {
	observability.Discard()
}

// scriptedRunner answers each template with a canned result and records the
// prompts it was sent.
type scriptedRunner struct {
	mu      sync.Mutex
	replies map[string]execution.AgentResult
	calls   []string
}

func (r *scriptedRunner) ExecuteAgentWithPrompt(ctx context.Context, agentID, chatID, prompt string) execution.AgentResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, _, _ := strings.Cut(prompt, ":")
	r.calls = append(r.calls, name)
	return r.replies[name]
}

// namedPrompts renders "<template>:<query>" so the runner can tell calls apart.
type namedPrompts struct{}

func (namedPrompts) Load(name string, r map[string]string) string {
	return name + ":" + r[prompts.KeyQuery]
}

type agentsText string

func (a agentsText) AvailableAgentsInfo(context.Context) string { return string(a) }

func ok(text string) execution.AgentResult {
	return execution.AgentResult{TextResponse: text, Success: true}
}

func newAnalyzer(r *scriptedRunner) *Analyzer {
	a := New(r, namedPrompts{}, agentsText("- Researcher"))
	a.newID = seqIDs()
	return a
}

func TestAnalyzeQueryParsesResponse(t *testing.T) {
	r := &scriptedRunner{replies: map[string]execution.AgentResult{
		prompts.TaskAnalysis: ok(`{"taskType":"qa","requiredCapabilities":["math"],"complexity":"simple"}`),
	}}
	res := newAnalyzer(r).AnalyzeQuery(context.Background(), "2+2?", "orch", "c1")

	assert.False(t, res.Fallback)
	assert.Equal(t, Simple, res.Analysis.Complexity)
	assert.Equal(t, []string{"math"}, res.Analysis.RequiredCapabilities)
}

func TestAnalyzeQueryFallsBackOnExecutionFailure(t *testing.T) {
	r := &scriptedRunner{replies: map[string]execution.AgentResult{
		prompts.TaskAnalysis: {Success: false, Error: "timeout"},
	}}
	res := newAnalyzer(r).AnalyzeQuery(context.Background(), "q", "orch", "c1")

	assert.True(t, res.Fallback)
	assert.Contains(t, res.Reason, "timeout")
	assert.Equal(t, DefaultAnalysis(), res.Analysis)
}

func TestDecomposeSimpleQueryMakesOneSubtask(t *testing.T) {
	r := &scriptedRunner{replies: map[string]execution.AgentResult{
		prompts.TaskAnalysis: ok(`{"taskType":"qa","requiredCapabilities":[],"complexity":"simple","estimatedSubtasks":1}`),
	}}
	plan := newAnalyzer(r).DecomposeTask(context.Background(), "What is the capital of France?", "orch", "c1")

	require.Len(t, plan.Subtasks, 1)
	st := plan.Subtasks[0]
	assert.Equal(t, "What is the capital of France?", st.Description)
	assert.Empty(t, st.Dependencies)
	assert.NotEmpty(t, st.ID)
	assert.Equal(t, session.SubtaskPending, st.Status)
	assert.False(t, plan.Fallback)
	assert.Equal(t, []string{prompts.TaskAnalysis}, r.calls, "no decomposition call for simple queries")
}

func TestDecomposeComplexQuery(t *testing.T) {
	r := &scriptedRunner{replies: map[string]execution.AgentResult{
		prompts.TaskAnalysis: ok(`{"taskType":"travel","requiredCapabilities":["search"],"complexity":"complex","estimatedSubtasks":2}`),
		prompts.TaskDecomposition: ok("Here is the plan:\n" + `[
			{"description":"Find flights","requiredCapabilities":["search"],"dependencies":[]},
			{"description":"Draft itinerary","requiredCapabilities":["writing"],"dependencies":[1]}
		]`),
	}}
	plan := newAnalyzer(r).DecomposeTask(context.Background(), "Plan a trip", "orch", "c1")

	require.Len(t, plan.Subtasks, 2)
	assert.False(t, plan.Fallback)
	assert.Equal(t, "Find flights", plan.Subtasks[0].Description)
	assert.Equal(t, []string{plan.Subtasks[0].ID}, plan.Subtasks[1].Dependencies)
	assert.Equal(t, []string{prompts.TaskAnalysis, prompts.TaskDecomposition}, r.calls)
}

func TestDecomposeFallsBackWithAnalysisCapabilities(t *testing.T) {
	analysis := ok(`{"taskType":"t","requiredCapabilities":["search","writing"],"complexity":"moderate"}`)
	tests := []struct {
		name  string
		reply execution.AgentResult
	}{
		{"execution failure", execution.AgentResult{Success: false, Error: "provider down"}},
		{"no array", ok("I would split this into a few parts.")},
		{"malformed array", ok(`[{"description": 5}]`)},
		{"empty array", ok(`[]`)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &scriptedRunner{replies: map[string]execution.AgentResult{
				prompts.TaskAnalysis:      analysis,
				prompts.TaskDecomposition: tc.reply,
			}}
			plan := newAnalyzer(r).DecomposeTask(context.Background(), "Write a report", "orch", "c1")

			require.Len(t, plan.Subtasks, 1)
			assert.True(t, plan.Fallback)
			assert.NotEmpty(t, plan.Reason)
			assert.Equal(t, "Write a report", plan.Subtasks[0].Description)
			assert.Equal(t, []string{"search", "writing"}, plan.Subtasks[0].RequiredCapabilities)
			assert.Empty(t, plan.Subtasks[0].Dependencies)
		})
	}
}

func TestDecomposeUsesDefaultAnalysisWhenAnalysisIsGarbage(t *testing.T) {
	r := &scriptedRunner{replies: map[string]execution.AgentResult{
		prompts.TaskAnalysis:      ok("no idea"),
		prompts.TaskDecomposition: ok(`[{"description":"only step"}]`),
	}}
	plan := newAnalyzer(r).DecomposeTask(context.Background(), "q", "orch", "c1")

	assert.Equal(t, DefaultAnalysis(), plan.Analysis)
	require.Len(t, plan.Subtasks, 1)
	assert.Equal(t, "only step", plan.Subtasks[0].Description)
	assert.Len(t, r.calls, 2, "moderate default still decomposes")
}
