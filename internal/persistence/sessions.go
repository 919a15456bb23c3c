package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aristath/agentorch/internal/session"
)

// SaveSession archives a session snapshot together with its final answer.
// Saving the same session again replaces the earlier copy.
func (a *SQLiteArchive) SaveSession(ctx context.Context, snap session.Snapshot, answer string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Serializable isolation maps to BEGIN IMMEDIATE.
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, chat_id, orchestrator_agent_id, query, status, answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			answer = excluded.answer,
			archived_at = CURRENT_TIMESTAMP
	`, snap.ID, snap.ChatID, snap.OrchestratorAgentID, snap.OriginalQuery, string(snap.Status), answer, snap.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM subtask_dependencies WHERE session_id = ?`, snap.ID); err != nil {
		return fmt.Errorf("failed to delete old dependencies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE session_id = ?`, snap.ID); err != nil {
		return fmt.Errorf("failed to delete old subtasks: %w", err)
	}

	for i, t := range snap.Subtasks {
		if err := saveSubtask(ctx, tx, snap, i, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func saveSubtask(ctx context.Context, tx *sql.Tx, snap session.Snapshot, position int, t session.Subtask) error {
	caps, err := json.Marshal(nonNil(t.RequiredCapabilities))
	if err != nil {
		return fmt.Errorf("failed to encode capabilities of %s: %w", t.ID, err)
	}

	var toolResults sql.NullString
	if v, ok := snap.SharedMemory[session.ToolResultsKey(t.ID)]; ok {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode tool results of %s: %w", t.ID, err)
		}
		toolResults = sql.NullString{String: string(data), Valid: true}
	}

	result := t.Result
	if r, ok := snap.Results[t.ID]; ok {
		result = r
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subtasks (session_id, id, position, description, required_capabilities, status, assigned_agent_id, result, tool_results)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, t.ID, position, t.Description, string(caps), string(t.Status), t.AssignedAgentID, result, toolResults)
	if err != nil {
		return fmt.Errorf("failed to insert subtask %s: %w", t.ID, err)
	}

	for _, dep := range t.Dependencies {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO subtask_dependencies (session_id, subtask_id, depends_on_id)
			VALUES (?, ?, ?)
		`, snap.ID, t.ID, dep)
		if err != nil {
			return fmt.Errorf("failed to insert dependency %s -> %s: %w", t.ID, dep, err)
		}
	}
	return nil
}

const sessionColumns = `
	s.id, s.chat_id, s.orchestrator_agent_id, s.query, s.status, COALESCE(s.answer, ''),
	(SELECT COUNT(*) FROM subtasks t WHERE t.session_id = s.id),
	s.created_at, s.archived_at`

func scanSession(row interface{ Scan(...any) error }) (SessionRecord, error) {
	var rec SessionRecord
	var status string
	err := row.Scan(&rec.ID, &rec.ChatID, &rec.OrchestratorAgentID, &rec.Query, &status, &rec.Answer,
		&rec.SubtaskCount, &rec.CreatedAt, &rec.ArchivedAt)
	rec.Status = session.Status(status)
	return rec, err
}

// GetSession returns one archived session. Returns a wrapped ErrNotFound if it
// was never archived.
func (a *SQLiteArchive) GetSession(ctx context.Context, sessionID string) (SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rec, err := scanSession(a.db.QueryRowContext(ctx, `SELECT`+sessionColumns+` FROM sessions s WHERE s.id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("failed to query session: %w", err)
	}
	return rec, nil
}

// ListSessions returns archived sessions, newest first. A limit of zero or
// less returns all of them.
func (a *SQLiteArchive) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := a.db.QueryContext(ctx, `SELECT`+sessionColumns+`
		FROM sessions s
		ORDER BY s.created_at DESC, s.id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionRecord{}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
