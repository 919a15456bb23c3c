// Package delegate lets a running agent hand a prompt to another agent in the
// same chat.
//
// A target is refused while it has any invocation running in that chat, not
// only when it is the caller: an agent busy on another subtask of the same
// batch cannot take delegated work either.
package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/agentorch/internal/agents"
	"github.com/aristath/agentorch/internal/backend"
	"github.com/aristath/agentorch/internal/execution"
	"github.com/aristath/agentorch/internal/observability"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error types reported in Response.ErrorType.
const (
	ErrorAgentNotFound      = "agent_not_found"
	ErrorOrchestratorTarget = "orchestrator_target"
	ErrorRecursiveCall      = "recursive_call"
	ErrorExecutionFailed    = "execution_failed"
	ErrorInvalidRequest     = "invalid_request"
)

// ToolName is the name agents use to call delegation.
const ToolName = "delegate_to_agent"

// Request asks AgentID to handle Prompt on behalf of ChatID.
type Request struct {
	ChatID  string `json:"-"`
	AgentID string `json:"agentId"`
	Prompt  string `json:"prompt"`
}

// Response is relayed verbatim to the calling agent.
type Response struct {
	Status      string                 `json:"status"`
	ErrorType   string                 `json:"error_type,omitempty"`
	Error       string                 `json:"error,omitempty"`
	AgentID     string                 `json:"agentId,omitempty"`
	AgentName   string                 `json:"agentName,omitempty"`
	Response    string                 `json:"response,omitempty"`
	ToolResults []execution.ToolResult `json:"toolResults,omitempty"`
}

// ExecutionTracker reports which agents are running for a chat.
type ExecutionTracker interface {
	IsExecuting(chatID, agentID string) bool
}

type Tool struct {
	dir     agents.Directory
	tracker ExecutionTracker
	runner  execution.Runner
}

func New(dir agents.Directory, tracker ExecutionTracker, runner execution.Runner) *Tool {
	return &Tool{dir: dir, tracker: tracker, runner: runner}
}

// Delegate validates req and runs the target agent. Rejections are returned
// as error responses; no Go error is ever produced.
func (t *Tool) Delegate(ctx context.Context, req Request) Response {
	log := observability.LoggerFromContext(ctx).With("chat_id", req.ChatID, "target_agent", req.AgentID)

	if strings.TrimSpace(req.AgentID) == "" || strings.TrimSpace(req.Prompt) == "" {
		return errorResponse(ErrorInvalidRequest, "agentId and prompt are required")
	}

	def, err := t.dir.Get(ctx, req.AgentID)
	if err != nil {
		if !errors.Is(err, agents.ErrAgentNotFound) {
			log.Warn("agent lookup failed", "error", err)
		}
		return errorResponse(ErrorAgentNotFound, fmt.Sprintf("agent %q not found", req.AgentID))
	}

	if def.IsOrchestrator() {
		return errorResponse(ErrorOrchestratorTarget, fmt.Sprintf("cannot delegate to orchestrator agent %q", def.ID))
	}

	if t.tracker.IsExecuting(req.ChatID, def.ID) {
		log.Warn("rejected recursive delegation")
		return errorResponse(ErrorRecursiveCall, fmt.Sprintf("agent %q is already executing in this chat", def.ID))
	}

	res := t.runner.ExecuteAgentWithPrompt(ctx, def.ID, req.ChatID, req.Prompt)
	if !res.Success {
		resp := errorResponse(ErrorExecutionFailed, res.Error)
		resp.AgentID, resp.AgentName = def.ID, def.Name
		return resp
	}

	return Response{
		Status:      StatusSuccess,
		AgentID:     def.ID,
		AgentName:   def.Name,
		Response:    res.TextResponse,
		ToolResults: res.ToolResults,
	}
}

// Definition describes the delegation tool to a model.
func Definition() backend.Tool {
	return backend.Tool{
		Name: ToolName,
		Description: "Hand a self-contained prompt to another agent in this conversation and receive its answer. " +
			"Use an agent id from the available agents listing. Orchestrator agents and agents that are " +
			"already running cannot be targeted.",
		Properties: map[string]any{
			"agentId": map[string]any{
				"type":        "string",
				"description": "Id of the agent to delegate to",
			},
			"prompt": map[string]any{
				"type":        "string",
				"description": "Everything the agent needs to do the work",
			},
		},
		Required: []string{"agentId", "prompt"},
	}
}

// Tools lists the tools this package serves to running agents.
func (t *Tool) Tools() []backend.Tool {
	return []backend.Tool{Definition()}
}

// Call serves a tool call made by agentID while answering in chatID. The
// output is the JSON-encoded Response.
func (t *Tool) Call(ctx context.Context, chatID, agentID, name string, input json.RawMessage) (string, bool) {
	if name != ToolName {
		out, _ := json.Marshal(errorResponse(ErrorInvalidRequest, fmt.Sprintf("unknown tool %q", name)))
		return string(out), true
	}
	observability.LoggerFromContext(ctx).Debug("delegation requested", "chat_id", chatID, "caller_agent", agentID)
	resp := t.handle(ctx, chatID, input)
	out, _ := json.Marshal(resp)
	return string(out), resp.Status == StatusError
}

func (t *Tool) handle(ctx context.Context, chatID string, args json.RawMessage) Response {
	var req Request
	if err := json.Unmarshal(args, &req); err != nil {
		return errorResponse(ErrorInvalidRequest, "invalid arguments: "+err.Error())
	}
	req.ChatID = chatID
	return t.Delegate(ctx, req)
}

func errorResponse(errType, msg string) Response {
	return Response{Status: StatusError, ErrorType: errType, Error: msg}
}
