package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aristath/agentorch/internal/session"
)

// GetSubtasks returns the archived subtasks of a session in plan order.
// Returns a wrapped ErrNotFound if the session was never archived.
func (a *SQLiteArchive) GetSubtasks(ctx context.Context, sessionID string) ([]SubtaskRecord, error) {
	if _, err := a.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	deps, err := a.dependencies(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, position, description, COALESCE(required_capabilities, '[]'), status,
			COALESCE(assigned_agent_id, ''), COALESCE(result, ''), COALESCE(tool_results, '')
		FROM subtasks
		WHERE session_id = ?
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subtasks: %w", err)
	}
	defer rows.Close()

	out := []SubtaskRecord{}
	for rows.Next() {
		var rec SubtaskRecord
		var caps, status string
		if err := rows.Scan(&rec.ID, &rec.Position, &rec.Description, &caps, &status,
			&rec.AssignedAgentID, &rec.Result, &rec.ToolResults); err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}
		if err := json.Unmarshal([]byte(caps), &rec.RequiredCapabilities); err != nil {
			return nil, fmt.Errorf("failed to decode capabilities of %s: %w", rec.ID, err)
		}
		rec.Status = session.SubtaskStatus(status)
		rec.Dependencies = deps[rec.ID]
		if rec.Dependencies == nil {
			rec.Dependencies = []string{}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subtasks: %w", err)
	}
	return out, nil
}

// dependencies loads every dependency edge of a session, keyed by subtask.
// Reading them up front avoids a nested query per subtask row.
func (a *SQLiteArchive) dependencies(ctx context.Context, sessionID string) (map[string][]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT subtask_id, depends_on_id
		FROM subtask_dependencies
		WHERE session_id = ?
		ORDER BY rowid ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	deps := make(map[string][]string)
	for rows.Next() {
		var id, dep string
		if err := rows.Scan(&id, &dep); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps[id] = append(deps[id], dep)
	}
	return deps, rows.Err()
}
