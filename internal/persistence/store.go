// Package persistence archives finished orchestration sessions in SQLite so
// they can be listed and inspected after the process exits.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aristath/agentorch/internal/session"
)

// ErrNotFound is returned when a session id is not in the archive.
var ErrNotFound = errors.New("session not archived")

// SessionRecord is one archived session.
type SessionRecord struct {
	ID                  string
	ChatID              string
	OrchestratorAgentID string
	Query               string
	Status              session.Status
	Answer              string
	SubtaskCount        int
	CreatedAt           time.Time
	ArchivedAt          time.Time
}

// SubtaskRecord is one archived subtask.
type SubtaskRecord struct {
	ID                   string
	Position             int
	Description          string
	RequiredCapabilities []string
	Dependencies         []string
	Status               session.SubtaskStatus
	AssignedAgentID      string
	Result               string
	ToolResults          string // JSON, empty when the agent used no tools
}

// Archive stores finished sessions.
type Archive interface {
	SaveSession(ctx context.Context, snap session.Snapshot, answer string) error
	GetSession(ctx context.Context, sessionID string) (SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]SessionRecord, error)
	GetSubtasks(ctx context.Context, sessionID string) ([]SubtaskRecord, error)
	Close() error
}

// SQLiteArchive implements Archive using SQLite.
type SQLiteArchive struct {
	db *sql.DB
}

// opTimeout bounds every archive statement.
const opTimeout = 5 * time.Second

// connPragmas are applied by modernc.org/sqlite to every pooled connection,
// unlike a one-off PRAGMA statement.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// NewSQLiteArchive opens the archive at dbPath, creating parent directories
// and the schema as needed.
func NewSQLiteArchive(ctx context.Context, dbPath string) (*SQLiteArchive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?%s&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath, connPragmas)
	return open(ctx, connStr)
}

// NewMemoryArchive creates a private in-memory archive for tests. The shared
// cache lets the pool's connections see one database; the random name keeps
// archives apart.
func NewMemoryArchive(ctx context.Context) (*SQLiteArchive, error) {
	return open(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", uuid.NewString(), connPragmas))
}

func open(ctx context.Context, connStr string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(2)

	a := &SQLiteArchive{db: db}
	if err := a.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return a, nil
}

// Close closes the database connection.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
