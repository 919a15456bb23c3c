package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

const defaultMaxTokens int64 = 8192

// maxToolRounds bounds the tool-use exchanges within one Send.
const maxToolRounds = 8

// bedrockModels maps API model names to Bedrock cross-region inference profiles.
var bedrockModels = map[anthropic.Model]string{
	anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
	anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
}

// AnthropicAdapter calls the Messages API directly or through AWS Bedrock.
type AnthropicAdapter struct {
	client       anthropic.Client
	model        anthropic.Model
	maxTokens    int64
	systemPrompt string
}

// NewAnthropicAdapter builds a client for cfg. TypeBedrock loads AWS
// credentials from the default chain; otherwise an API key is required,
// falling back to ANTHROPIC_API_KEY.
func NewAnthropicAdapter(ctx context.Context, cfg Config) (*AnthropicAdapter, error) {
	var opts []option.RequestOption

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	if cfg.Type == TypeBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
		if mapped, ok := bedrockModels[model]; ok {
			model = anthropic.Model(mapped)
		}
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("anthropic: no API key configured and ANTHROPIC_API_KEY is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &AnthropicAdapter{
		client:       anthropic.NewClient(opts...),
		model:        model,
		maxTokens:    maxTokens,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

// Send calls Messages.New. When the request carries a tool handler the
// tools are declared, and every tool_use turn is answered with the handler's
// output until the model stops asking.
func (a *AnthropicAdapter) Send(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("anthropic: request has no messages")
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  toMessageParams(req.Messages),
	}
	system := req.System
	if system == "" {
		system = a.systemPrompt
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	useTools := req.HandleTool != nil && len(req.Tools) > 0
	if useTools {
		params.Tools = toToolParams(req.Tools)
	}

	var resp Response
	for round := 1; ; round++ {
		msg, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return Response{}, fmt.Errorf("anthropic API call failed: %w", err)
		}
		resp.InputTokens += msg.Usage.InputTokens
		resp.OutputTokens += msg.Usage.OutputTokens

		var text strings.Builder
		var assistantBlocks, resultBlocks []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(variant.Text)
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))
			case anthropic.ToolUseBlock:
				call := ToolCall{ID: variant.ID, Name: variant.Name, Input: string(variant.Input)}
				if useTools {
					out, isError := req.HandleTool(ctx, variant.Name, variant.Input)
					call.Output = out
					assistantBlocks = append(assistantBlocks,
						anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))
					resultBlocks = append(resultBlocks,
						anthropic.NewToolResultBlock(variant.ID, out, isError))
				}
				resp.ToolCalls = append(resp.ToolCalls, call)
			}
		}
		resp.Content = text.String()

		if msg.StopReason != anthropic.StopReasonToolUse || len(resultBlocks) == 0 {
			return resp, nil
		}
		if round == maxToolRounds {
			return resp, fmt.Errorf("anthropic: model still calling tools after %d rounds", maxToolRounds)
		}
		params.Messages = append(params.Messages,
			anthropic.NewAssistantMessage(assistantBlocks...),
			anthropic.NewUserMessage(resultBlocks...))
	}
}

// Close is a no-op; the SDK client holds no long-lived resources.
func (a *AnthropicAdapter) Close() error {
	return nil
}

func toMessageParams(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}

func toToolParams(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.Properties,
					Required:   t.Required,
				},
			},
		})
	}
	return out
}
