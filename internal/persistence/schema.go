package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (a *SQLiteArchive) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		orchestrator_agent_id TEXT NOT NULL,
		query TEXT NOT NULL,
		status TEXT NOT NULL,
		answer TEXT,
		created_at DATETIME NOT NULL,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);

	CREATE TABLE IF NOT EXISTS subtasks (
		session_id TEXT NOT NULL,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		description TEXT NOT NULL,
		required_capabilities TEXT,
		status TEXT NOT NULL,
		assigned_agent_id TEXT,
		result TEXT,
		tool_results TEXT,
		PRIMARY KEY (session_id, id),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS subtask_dependencies (
		session_id TEXT NOT NULL,
		subtask_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (session_id, subtask_id, depends_on_id),
		FOREIGN KEY (session_id, subtask_id) REFERENCES subtasks(session_id, id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_subtask_dependencies_subtask
		ON subtask_dependencies(session_id, subtask_id);
	`

	_, err := a.db.ExecContext(ctx, schema)
	return err
}
