package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/dbadmin"
)

// MigrationRepo implements dbadmin.MigrationRepository, the per-project
// ledger of model-authored schema changes.
type MigrationRepo struct {
	db DB
}

func NewMigrationRepo(db DB) *MigrationRepo {
	return &MigrationRepo{db: db}
}

func (r *MigrationRepo) Insert(ctx context.Context, migration *dbadmin.Migration) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO project_migrations (id, project_id, migration_name, sql, status,
    error_message, applied_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, migration.ID, migration.ProjectID, migration.Name, migration.SQL,
		migration.Status, migration.ErrorMessage, migration.AppliedAt)
	if err != nil {
		return fmt.Errorf("inserting migration record: %w", err)
	}
	return nil
}

func (r *MigrationRepo) SetStatus(ctx context.Context, id core.ID, status dbadmin.Status, errorMessage string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE project_migrations SET status = $2, error_message = $3 WHERE id = $1",
		id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("updating migration status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListByProject returns migrations newest first.
func (r *MigrationRepo) ListByProject(ctx context.Context, projectID core.ID) ([]*dbadmin.Migration, error) {
	var migrations []*dbadmin.Migration
	err := pgxscan.Select(ctx, r.db, &migrations, `
SELECT id, project_id, migration_name, sql, status, error_message, applied_at
FROM project_migrations WHERE project_id = $1
ORDER BY applied_at DESC, id DESC
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("scanning migration records: %w", err)
	}
	return migrations, nil
}

// LogRepo implements dbadmin.LogRepository.
type LogRepo struct {
	db DB
}

func NewLogRepo(db DB) *LogRepo {
	return &LogRepo{db: db}
}

func (r *LogRepo) Insert(ctx context.Context, log *dbadmin.Log) error {
	metadata, err := ToJSONB(log.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling log metadata: %w", err)
	}
	_, err = r.db.Exec(ctx, `
INSERT INTO project_logs (id, project_id, level, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, log.ID, log.ProjectID, log.Level, log.Message, metadata, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting log: %w", err)
	}
	return nil
}

// ListByProject returns logs newest first; empty level means all levels.
func (r *LogRepo) ListByProject(
	ctx context.Context,
	projectID core.ID,
	level string,
	limit int,
) ([]*dbadmin.Log, error) {
	var logs []*dbadmin.Log
	var err error
	if level == "" {
		err = pgxscan.Select(ctx, r.db, &logs, `
SELECT id, project_id, level, message, metadata, created_at
FROM project_logs WHERE project_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, projectID, limit)
	} else {
		err = pgxscan.Select(ctx, r.db, &logs, `
SELECT id, project_id, level, message, metadata, created_at
FROM project_logs WHERE project_id = $1 AND level = $2
ORDER BY created_at DESC, id DESC
LIMIT $3
`, projectID, level, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning logs: %w", err)
	}
	return logs, nil
}

// Executor implements dbadmin.Executor, running model-authored SQL against
// the platform database.
type Executor struct {
	db DB
}

func NewExecutor(db DB) *Executor {
	return &Executor{db: db}
}

// Exec runs a statement and returns its command tag.
func (e *Executor) Exec(ctx context.Context, sql string, args ...any) (string, error) {
	tag, err := e.db.Exec(ctx, sql, args...)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

// Query runs a row-returning statement, shaping each row as a column-keyed
// map.
func (e *Executor) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := e.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	fields := rows.FieldDescriptions()
	out := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, field := range fields {
			if i < len(values) {
				row[field.Name] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
