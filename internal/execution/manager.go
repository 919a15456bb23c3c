// Package execution runs agents and drives a session's subtasks to completion
// one dependency layer at a time.
package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/agentorch/internal/backend"
	"github.com/aristath/agentorch/internal/chat"
	"github.com/aristath/agentorch/internal/events"
	"github.com/aristath/agentorch/internal/observability"
	"github.com/aristath/agentorch/internal/prompts"
	"github.com/aristath/agentorch/internal/session"
)

// ToolResult is one tool call an agent made while answering.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Args       string `json:"args"`
	Result     string `json:"result"`
}

// AgentResult is the outcome of a single agent invocation. Failures are
// reported through Success and Error, never as a Go error.
type AgentResult struct {
	TextResponse string
	ToolResults  []ToolResult
	Success      bool
	Error        string
}

// Runner invokes an agent with a prompt. *Manager implements it.
type Runner interface {
	ExecuteAgentWithPrompt(ctx context.Context, agentID, chatID, prompt string) AgentResult
}

// AgentLister renders the specialist listing included in prompts.
type AgentLister interface {
	AvailableAgentsInfo(ctx context.Context) string
}

// Config wires a Manager.
type Config struct {
	Executor chat.Executor
	Prompts  prompts.Loader
	Agents   AgentLister
	Tracker  *Tracker         // nil creates a private tracker
	Events   events.Publisher // nil discards events

	// MaxConcurrency caps subtasks running at once within a batch. Zero or
	// less means no cap.
	MaxConcurrency int
}

// Manager is the single path through which agents are invoked.
type Manager struct {
	exec           chat.Executor
	prompts        prompts.Loader
	agents         AgentLister
	tracker        *Tracker
	events         events.Publisher
	maxConcurrency int
	now            func() time.Time
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		exec:           cfg.Executor,
		prompts:        cfg.Prompts,
		agents:         cfg.Agents,
		tracker:        cfg.Tracker,
		events:         cfg.Events,
		maxConcurrency: cfg.MaxConcurrency,
		now:            time.Now,
	}
	if m.tracker == nil {
		m.tracker = NewTracker()
	}
	if m.events == nil {
		m.events = events.Nop{}
	}
	return m
}

// Tracker exposes the executing-agent tracker shared with delegation.
func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// CurrentExecutingAgent returns the agent most recently started for chatID
// that has not yet finished.
func (m *Manager) CurrentExecutingAgent(chatID string) (string, bool) {
	return m.tracker.Current(chatID)
}

// ExecuteAgentWithPrompt sends prompt to agentID as a single user message.
// The agent is marked executing for chatID for the duration of the call.
func (m *Manager) ExecuteAgentWithPrompt(ctx context.Context, agentID, chatID, prompt string) AgentResult {
	end := m.tracker.Begin(chatID, agentID)
	defer end()

	log := observability.LoggerFromContext(ctx).With("agent_id", agentID, "chat_id", chatID)

	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	res, err := m.exec.Run(ctx, chat.Request{
		AgentID:  agentID,
		ChatID:   chatID,
		Messages: []backend.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		log.Warn("agent execution failed", "error", err)
		return failed(err)
	}

	return AgentResult{
		TextResponse: res.Text,
		ToolResults:  toToolResults(res.ToolCalls),
		Success:      true,
	}
}

func failed(err error) AgentResult {
	return AgentResult{
		Success:     false,
		Error:       err.Error(),
		ToolResults: []ToolResult{},
	}
}

func toToolResults(calls []backend.ToolCall) []ToolResult {
	out := make([]ToolResult, 0, len(calls))
	for _, c := range calls {
		out = append(out, ToolResult{
			ToolCallID: c.ID,
			ToolName:   c.Name,
			Args:       c.Input,
			Result:     c.Output,
		})
	}
	return out
}

// ExecuteSubtasks runs every assigned subtask of sess, launching each batch
// of subtasks whose dependencies have finished concurrently and joining it
// before computing the next. A failed subtask unblocks its dependents the same
// way a completed one does. The only error conditions are a plan that can
// never finish (ErrDependencyCycle) and cancellation of ctx.
func (m *Manager) ExecuteSubtasks(ctx context.Context, sess *session.Session) error {
	ctx = observability.WithSessionID(observability.WithChatID(ctx, sess.ChatID), sess.ID)
	log := observability.LoggerFromContext(ctx)

	if err := checkCycles(sess.Subtasks()); err != nil {
		log.Error("refusing to execute plan", "error", err)
		return err
	}

	done := make(map[string]bool)
	for _, t := range sess.Subtasks() {
		if t.Status.Terminal() {
			done[t.ID] = true
		}
	}

	agentsInfo := ""
	if m.agents != nil {
		agentsInfo = m.agents.AvailableAgentsInfo(ctx)
	}

	limit := m.maxConcurrency
	if limit <= 0 {
		limit = -1
	}

	for batchNo := 1; ; batchNo++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("execution cancelled before batch %d: %w", batchNo, err)
		}

		subtasks := sess.Subtasks()
		batch := executableBatch(subtasks, done)
		if len(batch) == 0 {
			if countPending(subtasks, done) == 0 {
				log.Info("all subtasks finished", "batches", batchNo-1)
				return nil
			}
			err := diagnoseBlocked(subtasks, done)
			log.Error("execution stalled", "error", err)
			return err
		}

		log.Info("starting batch", "batch", batchNo, "size", len(batch))
		m.publishProgress(sess, batchNo, len(batch))

		var g errgroup.Group
		g.SetLimit(limit)
		for _, t := range batch {
			g.Go(func() error {
				m.runSubtask(ctx, sess, t, agentsInfo, batchNo)
				return nil // failures live on the subtask, not the group
			})
		}
		_ = g.Wait()

		for _, t := range batch {
			if cur, ok := sess.Subtask(t.ID); ok && cur.Status.Terminal() {
				done[t.ID] = true
			}
		}
		m.publishProgress(sess, batchNo, 0)
	}
}

// executableBatch returns, in session order, the assigned subtasks whose
// dependencies have all finished.
func executableBatch(subtasks []session.Subtask, done map[string]bool) []session.Subtask {
	var batch []session.Subtask
	for _, t := range subtasks {
		if done[t.ID] || t.Status != session.SubtaskAssigned {
			continue
		}
		ready := true
		for _, dep := range t.Dependencies {
			if !done[dep] {
				ready = false
				break
			}
		}
		if ready {
			batch = append(batch, t)
		}
	}
	return batch
}

func (m *Manager) runSubtask(ctx context.Context, sess *session.Session, t session.Subtask, agentsInfo string, batchNo int) {
	if ctx.Err() != nil {
		return
	}
	log := observability.LoggerFromContext(ctx).With("subtask_id", t.ID, "agent_id", t.AssignedAgentID)

	sess.UpdateSubtask(t.ID, func(s *session.Subtask) { s.Status = session.SubtaskInProgress })
	m.events.Publish(events.TopicSubtask, events.SubtaskStartedEvent{
		Session:     sess.ID,
		ID:          t.ID,
		Description: t.Description,
		AgentID:     t.AssignedAgentID,
		Batch:       batchNo,
		Timestamp:   m.now(),
	})

	prompt := m.prompts.Load(prompts.SubtaskExecution, map[string]string{
		prompts.KeyOriginalQuery:     sess.OriginalQuery,
		prompts.KeyTaskDescription:   t.Description,
		prompts.KeyDependencyContext: dependencyContext(sess, t),
		prompts.KeyAvailableAgents:   agentsInfo,
	})

	start := m.now()
	res := m.ExecuteAgentWithPrompt(ctx, t.AssignedAgentID, sess.ChatID, prompt)
	elapsed := m.now().Sub(start)

	if !res.Success {
		text := fmt.Sprintf("Error: %s", res.Error)
		sess.Finish(t.ID, session.SubtaskFailed, text)
		log.Warn("subtask failed", "error", res.Error, "duration", elapsed)
		m.events.Publish(events.TopicSubtask, events.SubtaskFailedEvent{
			Session:   sess.ID,
			ID:        t.ID,
			Err:       res.Error,
			Duration:  elapsed,
			Timestamp: m.now(),
		})
		return
	}

	if len(res.ToolResults) > 0 {
		sess.PutSharedMemory(session.ToolResultsKey(t.ID), res.ToolResults)
	}
	sess.Finish(t.ID, session.SubtaskCompleted, res.TextResponse)
	log.Info("subtask completed", "duration", elapsed, "tool_results", len(res.ToolResults))
	m.events.Publish(events.TopicSubtask, events.SubtaskCompletedEvent{
		Session:   sess.ID,
		ID:        t.ID,
		Result:    res.TextResponse,
		Duration:  elapsed,
		Timestamp: m.now(),
	})
}

// dependencyContext lists the description and result of every finished
// dependency, failed ones included.
func dependencyContext(sess *session.Session, t session.Subtask) string {
	var b strings.Builder
	for _, dep := range t.Dependencies {
		d, ok := sess.Subtask(dep)
		if !ok || !d.Status.Terminal() {
			continue
		}
		result, _ := sess.Result(dep)
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Task: %s\nResult: %s", d.Description, result)
	}
	if b.Len() == 0 {
		return "None"
	}
	return b.String()
}

func (m *Manager) publishProgress(sess *session.Session, batchNo, running int) {
	ev := events.BatchProgressEvent{Session: sess.ID, Batch: batchNo, Running: running, Timestamp: m.now()}
	for _, t := range sess.Subtasks() {
		ev.Total++
		switch t.Status {
		case session.SubtaskCompleted:
			ev.Completed++
		case session.SubtaskFailed:
			ev.Failed++
		case session.SubtaskPending, session.SubtaskAssigned:
			ev.Pending++
		}
	}
	if running > 0 {
		ev.Pending -= running
	}
	m.events.Publish(events.TopicSubtask, ev)
}
