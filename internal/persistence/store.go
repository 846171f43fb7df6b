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

	"github.com/aristath/nexflow/internal/scheduler"
)

// ErrProjectNotFound is returned when a project ID or name has no stored row.
var ErrProjectNotFound = errors.New("project not found")

// ProjectRecord is a stored project snapshot. Tasks are kept in insertion
// order so that scheduling tie-breaks survive a round trip.
type ProjectRecord struct {
	ID        string
	Name      string
	Policy    scheduler.RemovalPolicy
	Tasks     []scheduler.Task
	UpdatedAt time.Time
}

// ProjectSummary is a lightweight listing entry.
type ProjectSummary struct {
	ID        string
	Name      string
	TaskCount int
	UpdatedAt time.Time
}

// Store defines the persistence interface for project snapshots.
type Store interface {
	SaveProject(ctx context.Context, rec *ProjectRecord) error
	LoadProject(ctx context.Context, projectID string) (*ProjectRecord, error)
	FindProject(ctx context.Context, name string) (string, error)
	ListProjects(ctx context.Context) ([]ProjectSummary, error)
	DeleteProject(ctx context.Context, projectID string) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// modernc.org/sqlite ignores _foreign_keys in the DSN, see open.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Each call gets its own named database shared by the pool's connections.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:nexflow-%s?mode=memory&cache=shared", uuid.NewString())
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: PRAGMA foreign_keys is per connection, and every
	// query here is short.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
