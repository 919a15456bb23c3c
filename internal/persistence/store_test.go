package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aristath/agentorch/internal/session"
)

// testArchive creates an in-memory archive for testing and registers cleanup.
func testArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	a, err := NewMemoryArchive(context.Background())
	if err != nil {
		t.Fatalf("failed to create test archive: %v", err)
	}
	t.Cleanup(func() {
		a.Close()
	})
	return a
}

// finishedSession builds a two-subtask session where the second depends on
// the first and used a tool.
func finishedSession(t *testing.T, id string, created time.Time) session.Snapshot {
	t.Helper()
	s := session.New(id, "chat-1", "write and review a parser", "orch")
	s.CreatedAt = created
	err := s.AddSubtasks(
		&session.Subtask{ID: "t1", Description: "write parser", RequiredCapabilities: []string{"code"}, Status: session.SubtaskAssigned, AssignedAgentID: "coder"},
		&session.Subtask{ID: "t2", Description: "review parser", Dependencies: []string{"t1"}, Status: session.SubtaskAssigned, AssignedAgentID: "reviewer"},
	)
	if err != nil {
		t.Fatalf("AddSubtasks: %v", err)
	}
	s.Finish("t1", session.SubtaskCompleted, "parser.go written")
	s.Finish("t2", session.SubtaskFailed, "Error: reviewer unavailable")
	s.PutSharedMemory(session.ToolResultsKey("t1"), []map[string]string{{"toolName": "write_file"}})
	s.SetStatus(session.StatusCompleted)
	return s.Snapshot()
}

func TestSaveAndGetSession(t *testing.T) {
	a := testArchive(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := a.SaveSession(ctx, finishedSession(t, "s1", created), "final answer"); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	rec, err := a.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if rec.ChatID != "chat-1" || rec.OrchestratorAgentID != "orch" {
		t.Errorf("ids mismatch: got %+v", rec)
	}
	if rec.Query != "write and review a parser" {
		t.Errorf("Query mismatch: got %s", rec.Query)
	}
	if rec.Status != session.StatusCompleted {
		t.Errorf("Status mismatch: got %s, want completed", rec.Status)
	}
	if rec.Answer != "final answer" {
		t.Errorf("Answer mismatch: got %s", rec.Answer)
	}
	if rec.SubtaskCount != 2 {
		t.Errorf("SubtaskCount mismatch: got %d, want 2", rec.SubtaskCount)
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", rec.CreatedAt, created)
	}
}

func TestGetSubtasks(t *testing.T) {
	a := testArchive(t)
	ctx := context.Background()

	if err := a.SaveSession(ctx, finishedSession(t, "s1", time.Now()), "answer"); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	subtasks, err := a.GetSubtasks(ctx, "s1")
	if err != nil {
		t.Fatalf("failed to get subtasks: %v", err)
	}
	if len(subtasks) != 2 {
		t.Fatalf("got %d subtasks, want 2", len(subtasks))
	}

	first, second := subtasks[0], subtasks[1]
	if first.ID != "t1" || second.ID != "t2" {
		t.Errorf("order mismatch: got %s, %s", first.ID, second.ID)
	}
	if first.Status != session.SubtaskCompleted || first.Result != "parser.go written" {
		t.Errorf("t1 mismatch: %+v", first)
	}
	if len(first.RequiredCapabilities) != 1 || first.RequiredCapabilities[0] != "code" {
		t.Errorf("t1 capabilities mismatch: %v", first.RequiredCapabilities)
	}
	if !strings.Contains(first.ToolResults, "write_file") {
		t.Errorf("t1 tool results missing: %q", first.ToolResults)
	}
	if len(first.Dependencies) != 0 {
		t.Errorf("t1 should have no dependencies, got %v", first.Dependencies)
	}

	if second.Status != session.SubtaskFailed || second.Result != "Error: reviewer unavailable" {
		t.Errorf("t2 mismatch: %+v", second)
	}
	if second.AssignedAgentID != "reviewer" {
		t.Errorf("t2 agent mismatch: got %s", second.AssignedAgentID)
	}
	if len(second.Dependencies) != 1 || second.Dependencies[0] != "t1" {
		t.Errorf("t2 dependencies mismatch: %v", second.Dependencies)
	}
	if second.ToolResults != "" {
		t.Errorf("t2 should have no tool results, got %q", second.ToolResults)
	}
}

func TestSaveSessionIdempotent(t *testing.T) {
	a := testArchive(t)
	ctx := context.Background()
	snap := finishedSession(t, "s1", time.Now())

	if err := a.SaveSession(ctx, snap, "first"); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
	snap.Status = session.StatusFailed
	snap.Subtasks = snap.Subtasks[:1]
	if err := a.SaveSession(ctx, snap, "second"); err != nil {
		t.Fatalf("failed to save session second time: %v", err)
	}

	rec, err := a.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if rec.Answer != "second" || rec.Status != session.StatusFailed {
		t.Errorf("session not replaced: %+v", rec)
	}
	subtasks, err := a.GetSubtasks(ctx, "s1")
	if err != nil {
		t.Fatalf("failed to get subtasks: %v", err)
	}
	if len(subtasks) != 1 {
		t.Errorf("got %d subtasks after resave, want 1", len(subtasks))
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	a := testArchive(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		snap := finishedSession(t, id, base.Add(time.Duration(i)*time.Hour))
		if err := a.SaveSession(ctx, snap, "answer "+id); err != nil {
			t.Fatalf("failed to save %s: %v", id, err)
		}
	}

	all, err := a.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d sessions, want 3", len(all))
	}
	if all[0].ID != "new" || all[2].ID != "old" {
		t.Errorf("order mismatch: got %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	limited, err := a.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "new" {
		t.Errorf("limit not applied: got %d sessions", len(limited))
	}
}

func TestListSessionsEmpty(t *testing.T) {
	a := testArchive(t)

	sessions, err := a.ListSessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", sessions)
	}
}

func TestGetMissingSession(t *testing.T) {
	a := testArchive(t)
	ctx := context.Background()

	if _, err := a.GetSession(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession error = %v, want ErrNotFound", err)
	}
	if _, err := a.GetSubtasks(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSubtasks error = %v, want ErrNotFound", err)
	}
}

func TestMemoryArchivesAreIsolated(t *testing.T) {
	a := testArchive(t)
	b := testArchive(t)
	ctx := context.Background()

	if err := a.SaveSession(ctx, finishedSession(t, "s1", time.Now()), "answer"); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
	if _, err := b.GetSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("session leaked across memory archives: %v", err)
	}
}

func TestFileArchivePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	a, err := NewSQLiteArchive(ctx, path)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	if err := a.SaveSession(ctx, finishedSession(t, "s1", time.Now()), "kept"); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
	a.Close()

	reopened, err := NewSQLiteArchive(ctx, path)
	if err != nil {
		t.Fatalf("failed to reopen archive: %v", err)
	}
	defer reopened.Close()

	rec, err := reopened.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("failed to get session after reopen: %v", err)
	}
	if rec.Answer != "kept" {
		t.Errorf("Answer mismatch after reopen: got %s", rec.Answer)
	}
}
