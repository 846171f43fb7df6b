package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aristath/nexflow/internal/scheduler"
)

// SaveProject replaces the stored snapshot of a project.
// Uses ON CONFLICT so first save and later saves share one path.
func (s *SQLiteStore) SaveProject(ctx context.Context, rec *ProjectRecord) error {
	// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, removal_policy, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			removal_policy = excluded.removal_policy,
			updated_at = CURRENT_TIMESTAMP
	`, rec.ID, rec.Name, int(rec.Policy))
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}

	// Dependencies go with their tasks via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to delete old tasks: %w", err)
	}

	for seq, task := range rec.Tasks {
		var duration sql.NullFloat64
		if task.Duration != nil {
			duration = sql.NullFloat64{Float64: *task.Duration, Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO tasks (project_id, id, seq, name, owner, duration, completed, in_progress)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, task.ID, seq, task.Name, task.Owner, duration, task.Completed, task.InProgress)
		if err != nil {
			return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
		}
	}

	// Second pass: every task row exists before any dependency references it.
	for _, task := range rec.Tasks {
		for _, depID := range task.DependsOn {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO task_dependencies (project_id, task_id, depends_on_id)
				VALUES (?, ?, ?)
			`, rec.ID, task.ID, depID)
			if err != nil {
				return fmt.Errorf("failed to insert dependency %s -> %s: %w", depID, task.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// LoadProject retrieves a project snapshot with its tasks in insertion order.
func (s *SQLiteStore) LoadProject(ctx context.Context, projectID string) (*ProjectRecord, error) {
	rec := &ProjectRecord{ID: projectID}
	var policy int

	err := s.db.QueryRowContext(ctx, `
		SELECT name, removal_policy, updated_at
		FROM projects
		WHERE id = ?
	`, projectID).Scan(&rec.Name, &policy, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	rec.Policy = scheduler.RemovalPolicy(policy)

	tasks, index, err := s.loadTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, depends_on_id
		FROM task_dependencies
		WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, depID string
		if err := rows.Scan(&taskID, &depID); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		i, ok := index[taskID]
		if !ok {
			return nil, fmt.Errorf("dependency references missing task %s", taskID)
		}
		tasks[i].DependsOn = append(tasks[i].DependsOn, depID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}

	rec.Tasks = tasks
	return rec, nil
}

func (s *SQLiteStore) loadTasks(ctx context.Context, projectID string) ([]scheduler.Task, map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, owner, duration, completed, in_progress
		FROM tasks
		WHERE project_id = ?
		ORDER BY seq
	`, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []scheduler.Task
	index := make(map[string]int)
	for rows.Next() {
		var task scheduler.Task
		var duration sql.NullFloat64
		if err := rows.Scan(&task.ID, &task.Name, &task.Owner, &duration, &task.Completed, &task.InProgress); err != nil {
			return nil, nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if duration.Valid {
			task.Duration = scheduler.Float64(duration.Float64)
		}
		index[task.ID] = len(tasks)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, index, nil
}

// FindProject returns the ID of the project with the given name.
func (s *SQLiteStore) FindProject(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM projects WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query project: %w", err)
	}
	return id, nil
}

// ListProjects returns every project, most recently updated first.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.updated_at, COUNT(t.id)
		FROM projects p
		LEFT JOIN tasks t ON t.project_id = p.id
		GROUP BY p.id
		ORDER BY p.updated_at DESC, p.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectSummary
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.UpdatedAt, &p.TaskCount); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// DeleteProject removes a project and everything it owns.
func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	return nil
}
