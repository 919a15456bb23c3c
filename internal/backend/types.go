package backend

import (
	"context"
	"encoding/json"
)

// Backend type names accepted in Config.Type.
const (
	TypeClaudeCLI = "claude"
	TypeAnthropic = "anthropic"
	TypeBedrock   = "bedrock"
)

// Message is one turn handed to a backend.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Tool describes a function the model may call while answering.
type Tool struct {
	Name        string
	Description string
	Properties  map[string]any // JSON schema of each input field
	Required    []string
}

// ToolHandler runs one tool call. isError marks output the model should read
// as a failure.
type ToolHandler func(ctx context.Context, name string, input json.RawMessage) (output string, isError bool)

// Request is a single completion call. Tools are offered only when
// HandleTool is set; backends that cannot host tools ignore both.
type Request struct {
	System     string
	Messages   []Message
	Tools      []Tool
	HandleTool ToolHandler
}

// ToolCall records a tool invocation the model made while answering.
type ToolCall struct {
	ID     string
	Name   string
	Input  string // raw JSON
	Output string // empty when the provider did not report the tool's result
}

// Response is what a backend produced for a Request.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	SessionID    string
	InputTokens  int64
	OutputTokens int64
}

// Config defines how to reach one provider.
type Config struct {
	Type         string
	Model        string
	SystemPrompt string
	MaxTokens    int64

	// claude CLI
	Command string
	WorkDir string

	// anthropic API
	APIKey  string
	BaseURL string // empty uses the SDK default endpoint

	// bedrock
	AWSRegion  string
	AWSProfile string
}
