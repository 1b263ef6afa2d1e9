package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/task"
)

const taskColumnsSQL = "id, project_id, title, description, status, priority, " +
	"order_index, metadata, created_at, updated_at"

// TaskRepo implements task.Repository backed by a pgx-compatible pool.
type TaskRepo struct {
	db DB
}

func NewTaskRepo(db DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// Create inserts the task. A zero OrderIndex is assigned the next slot for
// the project; the chosen value is written back to the task.
func (r *TaskRepo) Create(ctx context.Context, t *task.Task) error {
	metadata, err := ToJSONB(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling task metadata: %w", err)
	}
	row := r.db.QueryRow(ctx, `
INSERT INTO tasks (id, project_id, title, description, status, priority,
    order_index, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6,
    CASE WHEN $7::int > 0 THEN $7::int
         ELSE (SELECT COALESCE(MAX(order_index), 0) + 1 FROM tasks WHERE project_id = $2)
    END,
    $8, $9, $10)
RETURNING order_index
`, t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority,
		t.OrderIndex, metadata, t.CreatedAt, t.UpdatedAt)
	if err := row.Scan(&t.OrderIndex); err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

func (r *TaskRepo) Get(ctx context.Context, id core.ID) (*task.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE id = $1", taskColumnsSQL)
	var t task.Task
	if err := pgxscan.Get(ctx, r.db, &t, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	return &t, nil
}

// ListByProject returns tasks ordered by order_index ascending.
func (r *TaskRepo) ListByProject(ctx context.Context, projectID core.ID) ([]*task.Task, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM tasks WHERE project_id = $1 ORDER BY order_index, created_at",
		taskColumnsSQL)
	var tasks []*task.Task
	if err := pgxscan.Select(ctx, r.db, &tasks, query, projectID); err != nil {
		return nil, fmt.Errorf("scanning tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepo) Update(ctx context.Context, t *task.Task) error {
	metadata, err := ToJSONB(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling task metadata: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
UPDATE tasks
SET title = $2, description = $3, status = $4, priority = $5,
    order_index = $6, metadata = $7, updated_at = $8
WHERE id = $1
`, t.ID, t.Title, t.Description, t.Status, t.Priority,
		t.OrderIndex, metadata, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, id core.ID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
