// Package chat invokes a configured agent with a conversation and returns its
// reply.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/agentorch/internal/backend"
	"github.com/aristath/agentorch/internal/observability"
)

// ErrNoRoute is returned when an agent has no backend registered.
var ErrNoRoute = errors.New("no backend configured for agent")

// Request is one agent invocation.
type Request struct {
	AgentID  string
	ChatID   string
	System   string
	Messages []backend.Message
}

// Result is the agent's reply.
type Result struct {
	Text      string
	ToolCalls []backend.ToolCall
}

// Executor runs agents.
type Executor interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (Result, error)

func (f ExecutorFunc) Run(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// ToolProvider serves tools to agents while they answer. Call runs on behalf
// of agentID in chatID.
type ToolProvider interface {
	Tools() []backend.Tool
	Call(ctx context.Context, chatID, agentID, name string, input json.RawMessage) (output string, isError bool)
}

// Route binds an agent to the provider backend that serves it.
type Route struct {
	Provider     string
	Backend      backend.Backend
	SystemPrompt string
	Timeout      time.Duration // zero leaves the caller's deadline alone
}

// BackendExecutor dispatches agent invocations to their backends, each
// provider guarded by its own circuit breaker.
type BackendExecutor struct {
	mu       sync.RWMutex
	routes   map[string]Route
	breakers *BreakerRegistry
	tools    ToolProvider
}

// NewBackendExecutor creates an executor. A nil registry gets a default one.
func NewBackendExecutor(breakers *BreakerRegistry) *BackendExecutor {
	if breakers == nil {
		breakers = NewBreakerRegistry(DefaultBreakerSettings())
	}
	return &BackendExecutor{
		routes:   make(map[string]Route),
		breakers: breakers,
	}
}

// Register routes agentID to r, replacing any earlier route.
func (e *BackendExecutor) Register(agentID string, r Route) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routes[agentID] = r
}

// SetTools offers p's tools to every agent invocation from now on.
func (e *BackendExecutor) SetTools(p ToolProvider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tools = p
}

// Run sends the request through the agent's provider breaker.
func (e *BackendExecutor) Run(ctx context.Context, req Request) (Result, error) {
	e.mu.RLock()
	route, ok := e.routes[req.AgentID]
	tools := e.tools
	e.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoRoute, req.AgentID)
	}

	system := req.System
	if system == "" {
		system = route.SystemPrompt
	}

	log := observability.LoggerFromContext(ctx).With("agent_id", req.AgentID, "provider", route.Provider)
	log.Debug("invoking agent", "messages", len(req.Messages))

	if route.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, route.Timeout)
		defer cancel()
	}

	breq := backend.Request{System: system, Messages: req.Messages}
	if tools != nil {
		breq.Tools = tools.Tools()
		breq.HandleTool = func(ctx context.Context, name string, input json.RawMessage) (string, bool) {
			log.Debug("agent called tool", "tool", name)
			return tools.Call(ctx, req.ChatID, req.AgentID, name, input)
		}
	}

	cb := e.breakers.Get(route.Provider)
	out, err := cb.Execute(func() (interface{}, error) {
		return route.Backend.Send(ctx, breq)
	})
	if err != nil {
		log.Warn("agent invocation failed", "error", err)
		return Result{}, err
	}

	resp := out.(backend.Response)
	log.Debug("agent replied", "input_tokens", resp.InputTokens, "output_tokens", resp.OutputTokens)
	return Result{Text: resp.Content, ToolCalls: resp.ToolCalls}, nil
}

// Close closes every distinct backend.
func (e *BackendExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[backend.Backend]bool)
	var errs []error
	for _, r := range e.routes {
		if r.Backend == nil || seen[r.Backend] {
			continue
		}
		seen[r.Backend] = true
		if err := r.Backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
