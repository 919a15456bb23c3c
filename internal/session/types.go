package session

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// Status is the lifecycle state of an orchestration session.
type Status string

const (
	StatusPreparing Status = "preparing"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// SubtaskStatus is the lifecycle state of a subtask.
// pending -> assigned -> in_progress -> completed | failed
type SubtaskStatus string

const (
	SubtaskPending    SubtaskStatus = "pending"
	SubtaskAssigned   SubtaskStatus = "assigned"
	SubtaskInProgress SubtaskStatus = "in_progress"
	SubtaskCompleted  SubtaskStatus = "completed"
	SubtaskFailed     SubtaskStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s SubtaskStatus) Terminal() bool {
	return s == SubtaskCompleted || s == SubtaskFailed
}

// Subtask is one unit of decomposed work assigned to exactly one agent.
type Subtask struct {
	ID                   string
	Description          string
	RequiredCapabilities []string
	Dependencies         []string // ids of subtasks in the same session
	Status               SubtaskStatus
	AssignedAgentID      string
	Result               string
}

func (t Subtask) clone() Subtask {
	cp := t
	if t.RequiredCapabilities != nil {
		cp.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	}
	if t.Dependencies != nil {
		cp.Dependencies = append([]string(nil), t.Dependencies...)
	}
	return cp
}

// ToolResultsKey is the shared-memory key under which a subtask's tool
// results are stored.
func ToolResultsKey(subtaskID string) string {
	return subtaskID + "_toolResults"
}

// Session is one end-to-end orchestration of a single user query.
//
// A Session is shared by reference between the context manager, the analyzer
// and the execution manager; all mutable state is guarded by mu. Subtasks are
// append-only and keep creation order. Results and shared memory only grow.
type Session struct {
	ID                  string
	ChatID              string
	OrchestratorAgentID string
	OriginalQuery       string
	CreatedAt           time.Time

	mu           sync.RWMutex
	status       Status
	subtasks     []*Subtask
	index        map[string]*Subtask
	sharedMemory map[string]any
	results      map[string]string
}

func newSession(id, chatID, query, orchestratorAgentID string, now time.Time) *Session {
	return &Session{
		ID:                  id,
		ChatID:              chatID,
		OrchestratorAgentID: orchestratorAgentID,
		OriginalQuery:       query,
		CreatedAt:           now,
		status:              StatusPreparing,
		index:               make(map[string]*Subtask),
		sharedMemory:        make(map[string]any),
		results:             make(map[string]string),
	}
}

// New builds a detached session that is not registered in any store.
// Tests and one-off pipelines use it directly.
func New(id, chatID, query, orchestratorAgentID string) *Session {
	return newSession(id, chatID, query, orchestratorAgentID, time.Now())
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// AddSubtasks appends subtasks in order. It fails without modifying the
// session if any id is empty or already present.
func (s *Session) AddSubtasks(tasks ...*Subtask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			return fmt.Errorf("subtask has empty id")
		}
		if _, exists := s.index[t.ID]; exists || seen[t.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateSubtask, t.ID)
		}
		seen[t.ID] = true
	}

	for _, t := range tasks {
		cp := t.clone()
		if cp.Status == "" {
			cp.Status = SubtaskPending
		}
		s.subtasks = append(s.subtasks, &cp)
		s.index[cp.ID] = &cp
	}
	return nil
}

// Subtasks returns copies of all subtasks in creation order.
func (s *Session) Subtasks() []Subtask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Subtask, 0, len(s.subtasks))
	for _, t := range s.subtasks {
		out = append(out, t.clone())
	}
	return out
}

// Subtask returns a copy of the subtask with the given id.
func (s *Session) Subtask(id string) (Subtask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.index[id]
	if !ok {
		return Subtask{}, false
	}
	return t.clone(), true
}

// UpdateSubtask applies fn to the stored subtask under the session lock.
// The id field cannot be changed. Returns false if the subtask does not exist.
func (s *Session) UpdateSubtask(id string, fn func(*Subtask)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[id]
	if !ok {
		return false
	}
	fn(t)
	t.ID = id
	return true
}

// Finish moves a subtask to a terminal status and records its result in the
// same critical section, so readers never see one without the other.
func (s *Session) Finish(id string, status SubtaskStatus, result string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[id]
	if !ok || !status.Terminal() {
		return false
	}
	t.Status = status
	t.Result = result
	s.results[id] = result
	return true
}

// RecordResult stores the textual outcome of a finished subtask.
func (s *Session) RecordResult(subtaskID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[subtaskID] = text
}

// Result returns the stored result for a subtask.
func (s *Session) Result(subtaskID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[subtaskID]
	return r, ok
}

// Results returns a copy of all stored results keyed by subtask id.
func (s *Session) Results() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.results)
}

// PutSharedMemory stores a value in the session scratch memory.
func (s *Session) PutSharedMemory(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sharedMemory[key] = value
}

// SharedMemory returns a value from the session scratch memory.
func (s *Session) SharedMemory(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sharedMemory[key]
	return v, ok
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID                  string
	ChatID              string
	OrchestratorAgentID string
	OriginalQuery       string
	CreatedAt           time.Time
	Status              Status
	Subtasks            []Subtask
	SharedMemory        map[string]any
	Results             map[string]string
}

// Snapshot copies the session state under a single read lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subtasks := make([]Subtask, 0, len(s.subtasks))
	for _, t := range s.subtasks {
		subtasks = append(subtasks, t.clone())
	}
	return Snapshot{
		ID:                  s.ID,
		ChatID:              s.ChatID,
		OrchestratorAgentID: s.OrchestratorAgentID,
		OriginalQuery:       s.OriginalQuery,
		CreatedAt:           s.CreatedAt,
		Status:              s.status,
		Subtasks:            subtasks,
		SharedMemory:        maps.Clone(s.sharedMemory),
		Results:             maps.Clone(s.results),
	}
}
