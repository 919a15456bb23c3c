package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/agentorch/internal/agents"
	"github.com/aristath/agentorch/internal/session"
)

type failingDirectory struct{}

func (failingDirectory) All(context.Context) ([]agents.Definition, error) {
	return nil, errors.New("directory offline")
}

func (failingDirectory) Get(context.Context, string) (agents.Definition, error) {
	return agents.Definition{}, errors.New("directory offline")
}

func testDirectory(t *testing.T, defs ...agents.Definition) agents.Directory {
	t.Helper()
	d, err := agents.NewStaticDirectory(defs...)
	require.NoError(t, err)
	return d
}

var (
	orchestrator = agents.Definition{ID: "orch", Name: "Orchestrator", Role: agents.RoleOrchestrator}
	researcher   = agents.Definition{
		ID: "researcher", Name: "Researcher", Description: "Finds facts",
		Capabilities: []agents.Capability{
			{ID: "web_search", Name: "Web Search", Description: "search the web"},
			{ID: "summarize", Name: "Summarize"},
		},
	}
	coder = agents.Definition{
		ID: "coder", Name: "Coder",
		Capabilities: []agents.Capability{
			{ID: "code", Name: "Coding"},
			{ID: "summarize", Name: "Summarize"},
		},
	}
)

func TestMatchCapabilities(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		want     []string
	}{
		{"by id", []string{"web_search"}, []string{"web_search"}},
		{"by name case-insensitive", []string{"web SEARCH"}, []string{"web SEARCH"}},
		{"id match is case-sensitive", []string{"WEB_SEARCH"}, []string{}},
		{"partial", []string{"summarize", "code"}, []string{"summarize"}},
		{"empty", nil, []string{}},
		{"duplicates collapse", []string{"summarize", "summarize"}, []string{"summarize"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MatchCapabilities(tc.required, researcher))
		})
	}
}

func TestSelectPicksHighestScore(t *testing.T) {
	s := New(testDirectory(t, orchestrator, researcher, coder))

	sel, ok := s.SelectForSubtask(context.Background(), session.Subtask{
		ID:                   "t1",
		RequiredCapabilities: []string{"code", "summarize"},
	}, "orch")

	require.True(t, ok)
	assert.Equal(t, "coder", sel.AgentID)
	assert.InDelta(t, 1.0, sel.Confidence, 1e-9)
	assert.Equal(t, []string{"code", "summarize"}, sel.MatchedCapabilities)
}

func TestSelectCountsRepeatedRequirements(t *testing.T) {
	writer := agents.Definition{ID: "writer", Capabilities: []agents.Capability{{ID: "write", Name: "Write"}}}
	searcher := agents.Definition{ID: "searcher", Capabilities: []agents.Capability{{ID: "search", Name: "Search"}}}
	s := New(testDirectory(t, orchestrator, writer, searcher))

	sel, ok := s.SelectForSubtask(context.Background(), session.Subtask{
		ID:                   "t1",
		RequiredCapabilities: []string{"search", "search", "write"},
	}, "orch")

	require.True(t, ok)
	assert.Equal(t, "searcher", sel.AgentID)
	assert.InDelta(t, 2.0/3.0, sel.Confidence, 1e-9)
	assert.Equal(t, []string{"search"}, sel.MatchedCapabilities)
}

func TestSelectSkipsEveryOrchestratorRole(t *testing.T) {
	planner := agents.Definition{
		ID: "planner", Role: agents.RoleOrchestrator,
		Capabilities: []agents.Capability{{ID: "code", Name: "Coding"}},
	}
	s := New(testDirectory(t, orchestrator, planner, coder))

	sel, ok := s.SelectForSubtask(context.Background(), session.Subtask{
		ID:                   "t1",
		RequiredCapabilities: []string{"code"},
	}, "orch")
	require.True(t, ok)
	assert.Equal(t, "coder", sel.AgentID, "a second orchestrator-role agent is never a candidate")
}

func TestSelectTieKeepsDirectoryOrder(t *testing.T) {
	s := New(testDirectory(t, orchestrator, researcher, coder))
	task := session.Subtask{ID: "t1", RequiredCapabilities: []string{"summarize"}}

	for i := 0; i < 20; i++ {
		sel, ok := s.SelectForSubtask(context.Background(), task, "orch")
		require.True(t, ok)
		assert.Equal(t, "researcher", sel.AgentID, "first registered wins ties")
	}
}

func TestSelectWithoutRequirementsScoresHalf(t *testing.T) {
	s := New(testDirectory(t, orchestrator, coder, researcher))

	sel, ok := s.SelectForSubtask(context.Background(), session.Subtask{ID: "t1"}, "orch")
	require.True(t, ok)
	assert.Equal(t, "coder", sel.AgentID)
	assert.InDelta(t, 0.5, sel.Confidence, 1e-9)
	assert.Empty(t, sel.MatchedCapabilities)
}

func TestSelectNoMatchReturnsNone(t *testing.T) {
	s := New(testDirectory(t, orchestrator, researcher, coder))

	_, ok := s.SelectForSubtask(context.Background(), session.Subtask{
		ID:                   "t1",
		RequiredCapabilities: []string{"translation"},
	}, "orch")
	assert.False(t, ok)
}

func TestSelectFallsBackToOrchestratorWhenAlone(t *testing.T) {
	s := New(testDirectory(t, orchestrator))

	sel, ok := s.SelectForSubtask(context.Background(), session.Subtask{
		ID:                   "t1",
		RequiredCapabilities: []string{"anything"},
	}, "orch")
	require.True(t, ok)
	assert.Equal(t, "orch", sel.AgentID)
	assert.Equal(t, 1.0, sel.Confidence)
	assert.Empty(t, sel.MatchedCapabilities)
	assert.NotNil(t, sel.MatchedCapabilities)
}

func TestSelectDirectoryFailure(t *testing.T) {
	s := New(failingDirectory{})
	_, ok := s.SelectForSubtask(context.Background(), session.Subtask{ID: "t1"}, "orch")
	assert.False(t, ok)
}

func TestAvailableAgentsInfo(t *testing.T) {
	s := New(testDirectory(t, orchestrator, researcher, coder))

	info := s.AvailableAgentsInfo(context.Background())
	assert.NotContains(t, info, "Orchestrator")
	assert.Contains(t, info, "- Researcher (id: researcher): Finds facts")
	assert.Contains(t, info, "Web Search [web_search] - search the web")
	assert.Contains(t, info, "- Coder (id: coder)")
}

func TestAvailableAgentsInfoDegrades(t *testing.T) {
	assert.Equal(t, agentsUnavailableText, New(failingDirectory{}).AvailableAgentsInfo(context.Background()))
	assert.Equal(t, noSpecialistsText, New(testDirectory(t, orchestrator)).AvailableAgentsInfo(context.Background()))
}
