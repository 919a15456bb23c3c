package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	SessionID() string
}

// Topic constants
const (
	TopicSession = "session"
	TopicSubtask = "subtask"
)

// Event type constants
const (
	EventTypeSessionCreated   = "session.created"
	EventTypeSubtasksPlanned  = "session.planned"
	EventTypeSessionFinished  = "session.finished"
	EventTypeSubtaskStarted   = "subtask.started"
	EventTypeSubtaskCompleted = "subtask.completed"
	EventTypeSubtaskFailed    = "subtask.failed"
	EventTypeBatchProgress    = "subtask.batch"
)

// SessionCreatedEvent is published when a query gets its session.
type SessionCreatedEvent struct {
	Session   string
	ChatID    string
	Query     string
	Timestamp time.Time
}

func (e SessionCreatedEvent) EventType() string { return EventTypeSessionCreated }
func (e SessionCreatedEvent) SessionID() string { return e.Session }

// PlannedSubtask describes one subtask after agent assignment.
type PlannedSubtask struct {
	ID           string
	Description  string
	AgentID      string // empty when no agent could be assigned
	Dependencies []string
}

// SubtasksPlannedEvent is published once decomposition and assignment finish.
type SubtasksPlannedEvent struct {
	Session      string
	Subtasks     []PlannedSubtask
	UsedFallback bool
	Timestamp    time.Time
}

func (e SubtasksPlannedEvent) EventType() string { return EventTypeSubtasksPlanned }
func (e SubtasksPlannedEvent) SessionID() string { return e.Session }

// SubtaskStartedEvent is published when a subtask goes in_progress.
type SubtaskStartedEvent struct {
	Session     string
	ID          string
	Description string
	AgentID     string
	Batch       int
	Timestamp   time.Time
}

func (e SubtaskStartedEvent) EventType() string { return EventTypeSubtaskStarted }
func (e SubtaskStartedEvent) SessionID() string { return e.Session }

// SubtaskCompletedEvent is published when a subtask completes successfully.
type SubtaskCompletedEvent struct {
	Session   string
	ID        string
	Result    string
	Duration  time.Duration
	Timestamp time.Time
}

func (e SubtaskCompletedEvent) EventType() string { return EventTypeSubtaskCompleted }
func (e SubtaskCompletedEvent) SessionID() string { return e.Session }

// SubtaskFailedEvent is published when a subtask fails.
type SubtaskFailedEvent struct {
	Session   string
	ID        string
	Err       string
	Duration  time.Duration
	Timestamp time.Time
}

func (e SubtaskFailedEvent) EventType() string { return EventTypeSubtaskFailed }
func (e SubtaskFailedEvent) SessionID() string { return e.Session }

// BatchProgressEvent is published before and after each batch.
type BatchProgressEvent struct {
	Session   string
	Batch     int
	Total     int
	Completed int
	Running   int
	Failed    int
	Pending   int
	Timestamp time.Time
}

func (e BatchProgressEvent) EventType() string { return EventTypeBatchProgress }
func (e BatchProgressEvent) SessionID() string { return e.Session }

// SessionFinishedEvent is published when the final answer is ready or the
// session aborted.
type SessionFinishedEvent struct {
	Session   string
	Status    string
	Answer    string
	Err       string
	Timestamp time.Time
}

func (e SessionFinishedEvent) EventType() string { return EventTypeSessionFinished }
func (e SessionFinishedEvent) SessionID() string { return e.Session }
