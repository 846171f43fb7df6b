package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		removal_policy INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tasks (
		project_id TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		owner TEXT NOT NULL DEFAULT '',
		duration REAL,
		completed INTEGER NOT NULL DEFAULT 0,
		in_progress INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, id),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_project_seq ON tasks(project_id, seq);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		project_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (project_id, task_id, depends_on_id),
		FOREIGN KEY (project_id, task_id) REFERENCES tasks(project_id, id) ON DELETE CASCADE,
		FOREIGN KEY (project_id, depends_on_id) REFERENCES tasks(project_id, id) ON DELETE CASCADE
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
