// Package session holds the orchestration data model and the table of
// in-flight sessions.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSubtask = errors.New("duplicate subtask id")
)

// Store is the capability interface over the session table.
type Store interface {
	Create(chatID, query, orchestratorAgentID string) string
	Get(sessionID string) (*Session, bool)
	Update(sessionID string, patch Patch) error
	Delete(sessionID string) bool
	Status(sessionID string) (Report, error)
}

// Patch lists the fields Update merges into a session. Nil or empty fields
// are left untouched. Subtasks are appended, never replaced.
type Patch struct {
	Status       *Status
	AddSubtasks  []*Subtask
	SharedMemory map[string]any
}

// Report is the orchestration status view.
type Report struct {
	ActiveSessions    int
	SubtasksBySession map[string][]Subtask
}

// Manager is an in-memory Store. Sessions live until Delete is called;
// nothing survives the process.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
	newID    func() string
}

// NewManager creates an empty session table.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Create allocates a session in the preparing state and returns its id.
func (m *Manager) Create(chatID, query, orchestratorAgentID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	for _, exists := m.sessions[id]; exists; _, exists = m.sessions[id] {
		id = m.newID()
	}
	m.sessions[id] = newSession(id, chatID, query, orchestratorAgentID, m.now())
	return id
}

// Get returns the live session. Mutations through the returned pointer are
// visible to every holder.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Update merges patch into the stored session in place.
func (m *Manager) Update(sessionID string, patch Patch) error {
	s, ok := m.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if len(patch.AddSubtasks) > 0 {
		if err := s.AddSubtasks(patch.AddSubtasks...); err != nil {
			return fmt.Errorf("update session %s: %w", sessionID, err)
		}
	}
	for k, v := range patch.SharedMemory {
		s.PutSharedMemory(k, v)
	}
	if patch.Status != nil {
		s.SetStatus(*patch.Status)
	}
	return nil
}

// Delete removes a session. Returns false if it did not exist.
func (m *Manager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	return true
}

// Status reports the subtasks of one session, or of every session when
// sessionID is empty.
func (m *Manager) Status(sessionID string) (Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := Report{
		ActiveSessions:    len(m.sessions),
		SubtasksBySession: make(map[string][]Subtask),
	}

	if sessionID != "" {
		s, ok := m.sessions[sessionID]
		if !ok {
			return Report{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		report.SubtasksBySession[sessionID] = s.Subtasks()
		return report, nil
	}

	for id, s := range m.sessions {
		report.SubtasksBySession[id] = s.Subtasks()
	}
	return report, nil
}
