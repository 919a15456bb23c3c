package backend

import (
	"context"
	"strings"
	"testing"
)

func TestFactory_CreatesClaudeAdapter(t *testing.T) {
	b, err := New(Config{Type: TypeClaudeCLI, WorkDir: "/tmp"}, NewProcessManager())
	if err != nil {
		t.Fatalf("Expected no error creating Claude adapter, got: %v", err)
	}
	if _, ok := b.(*ClaudeAdapter); !ok {
		t.Fatalf("Expected *ClaudeAdapter, got %T", b)
	}
}

func TestFactory_CreatesAnthropicAdapter(t *testing.T) {
	b, err := New(Config{Type: TypeAnthropic, APIKey: "sk-test"}, nil)
	if err != nil {
		t.Fatalf("Expected no error creating Anthropic adapter, got: %v", err)
	}
	a, ok := b.(*AnthropicAdapter)
	if !ok {
		t.Fatalf("Expected *AnthropicAdapter, got %T", b)
	}
	if a.maxTokens != defaultMaxTokens {
		t.Errorf("Expected default max tokens %d, got %d", defaultMaxTokens, a.maxTokens)
	}
}

func TestFactory_AnthropicRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(Config{Type: TypeAnthropic}, nil)
	if err == nil {
		t.Fatal("Expected error without API key")
	}
}

func TestFactory_BedrockTranslatesModel(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	b, err := New(Config{Type: TypeBedrock, Model: "claude-sonnet-4-20250514"}, nil)
	if err != nil {
		t.Fatalf("Expected no error creating Bedrock adapter, got: %v", err)
	}
	a := b.(*AnthropicAdapter)
	if !strings.HasPrefix(string(a.model), "us.anthropic.") {
		t.Errorf("Expected Bedrock inference profile, got %s", a.model)
	}
}

func TestFactory_UnknownType(t *testing.T) {
	_, err := New(Config{Type: "codex"}, nil)
	if err == nil {
		t.Fatal("Expected error for unknown backend type")
	}
	if !strings.Contains(err.Error(), "unknown backend type") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestSend_RejectsEmptyRequest(t *testing.T) {
	c, _ := NewClaudeAdapter(Config{}, nil)
	if _, err := c.Send(context.Background(), Request{}); err == nil {
		t.Error("claude: expected error for empty request")
	}
	a, _ := NewAnthropicAdapter(context.Background(), Config{Type: TypeAnthropic, APIKey: "k"})
	if _, err := a.Send(context.Background(), Request{}); err == nil {
		t.Error("anthropic: expected error for empty request")
	}
}

func TestFlatten(t *testing.T) {
	if got := flatten([]Message{{Content: "only"}}); got != "only" {
		t.Errorf("single message: got %q", got)
	}
	got := flatten([]Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}, {Content: "c"}})
	want := "user: a\n\nassistant: b\n\nuser: c"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestAdapters_CloseIsIdempotent(t *testing.T) {
	c, _ := NewClaudeAdapter(Config{}, nil)
	a, _ := NewAnthropicAdapter(context.Background(), Config{Type: TypeAnthropic, APIKey: "k"})
	for _, b := range []Backend{c, a} {
		if err := b.Close(); err != nil {
			t.Errorf("%T first Close: %v", b, err)
		}
		if err := b.Close(); err != nil {
			t.Errorf("%T second Close: %v", b, err)
		}
	}
}
