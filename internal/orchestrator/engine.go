// Package orchestrator answers a query end to end: it plans subtasks,
// assigns agents, executes the plan and synthesizes the reply.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/agentorch/internal/analyzer"
	"github.com/aristath/agentorch/internal/events"
	"github.com/aristath/agentorch/internal/execution"
	"github.com/aristath/agentorch/internal/observability"
	"github.com/aristath/agentorch/internal/persistence"
	"github.com/aristath/agentorch/internal/selector"
	"github.com/aristath/agentorch/internal/session"
	"github.com/aristath/agentorch/internal/synthesis"
)

// NoAgentResult is recorded for subtasks no agent can take.
const NoAgentResult = "No suitable agent available for this subtask"

// EngineConfig wires an Engine.
type EngineConfig struct {
	Sessions    *session.Manager
	Analyzer    *analyzer.Analyzer
	Selector    *selector.Selector
	Execution   *execution.Manager
	Synthesizer *synthesis.Synthesizer
	Archive     persistence.Archive // nil disables history
	Events      events.Publisher    // nil discards events

	OrchestratorAgentID string

	// KeepSessions leaves finished sessions in the in-memory table instead
	// of dropping them once archived.
	KeepSessions bool
}

// Answer is the outcome of one query.
type Answer struct {
	SessionID    string
	Text         string
	Status       session.Status
	Subtasks     []session.Subtask
	UsedFallback bool
}

// Engine runs the full pipeline for each query.
type Engine struct {
	cfg EngineConfig
	now func() time.Time
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Events == nil {
		cfg.Events = events.Nop{}
	}
	return &Engine{cfg: cfg, now: time.Now}
}

// Sessions exposes the in-memory session table.
func (e *Engine) Sessions() *session.Manager {
	return e.cfg.Sessions
}

// Ask answers query for chatID. A plan that can never finish and
// cancellation of ctx are returned as errors, with the session marked
// failed and no synthesis; every other failure ends up in the answer text.
func (e *Engine) Ask(ctx context.Context, chatID, query string) (Answer, error) {
	orch := e.cfg.OrchestratorAgentID
	id := e.cfg.Sessions.Create(chatID, query, orch)
	sess, _ := e.cfg.Sessions.Get(id)

	ctx = observability.WithSessionID(observability.WithChatID(ctx, chatID), id)
	log := observability.LoggerFromContext(ctx)
	log.Info("session created", "orchestrator", orch)
	e.cfg.Events.Publish(events.TopicSession, events.SessionCreatedEvent{
		Session: id, ChatID: chatID, Query: query, Timestamp: e.now(),
	})

	plan := e.cfg.Analyzer.DecomposeTask(ctx, query, orch, chatID)
	e.assign(ctx, sess, plan.Subtasks)
	if err := e.cfg.Sessions.Update(id, session.Patch{AddSubtasks: plan.Subtasks}); err != nil {
		return e.finish(ctx, sess, plan, "", fmt.Errorf("recording plan: %w", err))
	}
	for _, t := range plan.Subtasks {
		if t.Status == session.SubtaskFailed {
			sess.RecordResult(t.ID, t.Result)
		}
	}
	e.publishPlan(sess, plan)

	executing := session.StatusExecuting
	_ = e.cfg.Sessions.Update(id, session.Patch{Status: &executing})

	if err := e.cfg.Execution.ExecuteSubtasks(ctx, sess); err != nil {
		return e.finish(ctx, sess, plan, "", err)
	}

	completed := session.StatusCompleted
	_ = e.cfg.Sessions.Update(id, session.Patch{Status: &completed})

	text := e.cfg.Synthesizer.SynthesizeResults(ctx, sess, orch)
	return e.finish(ctx, sess, plan, text, nil)
}

// assign gives every planned subtask an agent. Subtasks nobody can take are
// failed right away so their dependents still run.
func (e *Engine) assign(ctx context.Context, sess *session.Session, subtasks []*session.Subtask) {
	log := observability.LoggerFromContext(ctx)
	for _, t := range subtasks {
		sel, ok := e.cfg.Selector.SelectForSubtask(ctx, *t, sess.OrchestratorAgentID)
		if !ok {
			t.Status = session.SubtaskFailed
			t.Result = NoAgentResult
			log.Warn("no agent for subtask", "subtask_id", t.ID, "capabilities", t.RequiredCapabilities)
			continue
		}
		t.Status = session.SubtaskAssigned
		t.AssignedAgentID = sel.AgentID
		log.Debug("subtask assigned", "subtask_id", t.ID, "agent_id", sel.AgentID, "confidence", sel.Confidence)
	}
}

func (e *Engine) publishPlan(sess *session.Session, plan analyzer.Plan) {
	planned := make([]events.PlannedSubtask, 0, len(plan.Subtasks))
	for _, t := range sess.Subtasks() {
		planned = append(planned, events.PlannedSubtask{
			ID:           t.ID,
			Description:  t.Description,
			AgentID:      t.AssignedAgentID,
			Dependencies: t.Dependencies,
		})
	}
	e.cfg.Events.Publish(events.TopicSession, events.SubtasksPlannedEvent{
		Session:      sess.ID,
		Subtasks:     planned,
		UsedFallback: plan.Fallback,
		Timestamp:    e.now(),
	})
}

// finish settles the session status, archives it and drops it from memory.
func (e *Engine) finish(ctx context.Context, sess *session.Session, plan analyzer.Plan, text string, runErr error) (Answer, error) {
	log := observability.LoggerFromContext(ctx)
	if runErr != nil {
		sess.SetStatus(session.StatusFailed)
		if ctx.Err() != nil {
			log.Warn("session cancelled", "error", runErr)
		} else {
			log.Error("session failed", "error", runErr, "cycle", errors.Is(runErr, execution.ErrDependencyCycle))
		}
	}

	snap := sess.Snapshot()
	if e.cfg.Archive != nil {
		// The archive write must survive the cancellation that ended the run.
		if err := e.cfg.Archive.SaveSession(context.WithoutCancel(ctx), snap, text); err != nil {
			log.Warn("archiving session failed", "error", err)
		}
	}
	if !e.cfg.KeepSessions {
		e.cfg.Sessions.Delete(sess.ID)
	}

	ev := events.SessionFinishedEvent{Session: sess.ID, Status: string(snap.Status), Answer: text, Timestamp: e.now()}
	if runErr != nil {
		ev.Err = runErr.Error()
	}
	e.cfg.Events.Publish(events.TopicSession, ev)
	log.Info("session finished", "status", snap.Status, "subtasks", len(snap.Subtasks))

	ans := Answer{
		SessionID:    sess.ID,
		Text:         text,
		Status:       snap.Status,
		Subtasks:     snap.Subtasks,
		UsedFallback: plan.Fallback,
	}
	if runErr != nil {
		return ans, fmt.Errorf("session %s: %w", sess.ID, runErr)
	}
	return ans, nil
}
