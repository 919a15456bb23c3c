package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const defaultClaudeCommand = "claude"

// ClaudeAdapter runs completions through the Claude Code CLI in print mode.
// Every Send starts a fresh CLI session.
type ClaudeAdapter struct {
	command      string
	workDir      string
	model        string
	systemPrompt string
	procMgr      *ProcessManager
}

// claudeResponse covers both CLI output shapes: "result" is either the final
// text or an object with a content array.
type claudeResponse struct {
	SessionID string          `json:"session_id"`
	IsError   bool            `json:"is_error"`
	Result    json.RawMessage `json:"result"`
	Usage     struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

type claudeContent struct {
	Content []struct {
		Type      string          `json:"type"`
		Text      string          `json:"text"`
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Input     json.RawMessage `json:"input"`
		ToolUseID string          `json:"tool_use_id"`
		Content   json.RawMessage `json:"content"`
	} `json:"content"`
}

// NewClaudeAdapter creates a CLI adapter. The ProcessManager is optional.
func NewClaudeAdapter(cfg Config, procMgr *ProcessManager) (*ClaudeAdapter, error) {
	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	command := cfg.Command
	if command == "" {
		command = defaultClaudeCommand
	}

	return &ClaudeAdapter{
		command:      command,
		workDir:      workDir,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		procMgr:      procMgr,
	}, nil
}

// Send runs the CLI once and parses its JSON output. Request tools are not
// offered; the CLI runs its own tool loop out of process.
func (a *ClaudeAdapter) Send(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("claude: request has no messages")
	}

	cmd := newCommand(ctx, a.command, a.buildArgs(req)...)
	cmd.Dir = a.workDir

	stdout, stderr, err := executeCommand(ctx, cmd, a.procMgr)
	if err != nil {
		return Response{}, fmt.Errorf("claude command failed: %w", err)
	}

	resp, err := parseClaudeResponse(stdout)
	if err != nil {
		return Response{}, fmt.Errorf("failed to parse claude response: %w (stderr: %s)", err, string(stderr))
	}
	return resp, nil
}

// Close is a no-op: the CLI runs one subprocess per Send.
func (a *ClaudeAdapter) Close() error {
	return nil
}

func (a *ClaudeAdapter) buildArgs(req Request) []string {
	args := []string{"-p", flatten(req.Messages), "--output-format", "json"}

	if a.model != "" {
		args = append(args, "--model", a.model)
	}

	system := req.System
	if system == "" {
		system = a.systemPrompt
	}
	if system != "" {
		args = append(args, "--system-prompt", system)
	}

	return args
}

func parseClaudeResponse(data []byte) (Response, error) {
	var cr claudeResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	resp := Response{
		SessionID:    cr.SessionID,
		InputTokens:  cr.Usage.InputTokens,
		OutputTokens: cr.Usage.OutputTokens,
	}

	var text string
	if err := json.Unmarshal(cr.Result, &text); err == nil {
		resp.Content = text
	} else {
		var cc claudeContent
		if err := json.Unmarshal(cr.Result, &cc); err != nil {
			return Response{}, fmt.Errorf("unexpected result shape: %w", err)
		}
		for _, item := range cc.Content {
			switch item.Type {
			case "text":
				resp.Content += item.Text
			case "tool_use":
				resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: item.ID, Name: item.Name, Input: string(item.Input)})
			case "tool_result":
				for i := range resp.ToolCalls {
					if resp.ToolCalls[i].ID == item.ToolUseID {
						resp.ToolCalls[i].Output = rawText(item.Content)
					}
				}
			}
		}
	}

	if cr.IsError {
		return resp, fmt.Errorf("claude reported an error: %s", resp.Content)
	}
	return resp, nil
}

// rawText returns a JSON string's value, or the raw JSON for anything else.
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
