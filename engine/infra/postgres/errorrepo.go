package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/errorlog"
)

var errorColumns = []string{
	"id",
	"project_id",
	"error_type",
	"message",
	"stack_trace",
	"file_path",
	"line_number",
	"code_snippet",
	"context",
	"status",
	"heal_attempts",
	"resolved_at",
	"created_at",
	"updated_at",
}

const errorColumnsSQL = "id, project_id, error_type, message, stack_trace, " +
	"file_path, line_number, code_snippet, context, status, heal_attempts, " +
	"resolved_at, created_at, updated_at"

// ErrorRepo implements errorlog.Repository.
type ErrorRepo struct {
	db DB
}

func NewErrorRepo(db DB) *ErrorRepo {
	return &ErrorRepo{db: db}
}

func (r *ErrorRepo) Insert(ctx context.Context, record *errorlog.Record) error {
	errCtx, err := ToJSONB(record.Context)
	if err != nil {
		return fmt.Errorf("marshaling error context: %w", err)
	}
	_, err = r.db.Exec(ctx, `
INSERT INTO errors (id, project_id, error_type, message, stack_trace, file_path,
    line_number, code_snippet, context, status, heal_attempts, resolved_at,
    created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`, record.ID, record.ProjectID, record.Kind, record.Message, record.StackTrace,
		record.FilePath, record.LineNumber, record.CodeSnippet, errCtx,
		record.Status, record.HealAttempts, record.ResolvedAt,
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting error record: %w", err)
	}
	return nil
}

func (r *ErrorRepo) Get(ctx context.Context, id core.ID) (*errorlog.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM errors WHERE id = $1", errorColumnsSQL)
	var record errorlog.Record
	if err := pgxscan.Get(ctx, r.db, &record, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scanning error record: %w", err)
	}
	return &record, nil
}

// ListByProject returns records newest first; empty status means all.
func (r *ErrorRepo) ListByProject(
	ctx context.Context,
	projectID core.ID,
	status errorlog.Status,
) ([]*errorlog.Record, error) {
	sb := squirrel.Select(errorColumns...).From("errors").
		PlaceholderFormat(squirrel.Dollar).
		Where(squirrel.Eq{"project_id": projectID}).
		OrderBy("created_at DESC")
	if status != "" {
		sb = sb.Where(squirrel.Eq{"status": status})
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var records []*errorlog.Record
	if err := pgxscan.Select(ctx, r.db, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning error records: %w", err)
	}
	return records, nil
}

// Resolve flips the record to resolved, stamps resolved_at and merges the
// resolution notes into the context bag.
func (r *ErrorRepo) Resolve(ctx context.Context, id core.ID, notes string) (*errorlog.Record, error) {
	query := fmt.Sprintf(`
UPDATE errors
SET status = 'resolved', resolved_at = now(), updated_at = now(),
    context = CASE WHEN $2::text = '' THEN context
        ELSE COALESCE(context, '{}'::jsonb) || jsonb_build_object('resolution_notes', $2::text)
    END
WHERE id = $1
RETURNING %s
`, errorColumnsSQL)
	var record errorlog.Record
	if err := pgxscan.Get(ctx, r.db, &record, query, id, notes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("resolving error record: %w", err)
	}
	return &record, nil
}

func (r *ErrorRepo) IncrementHealAttempts(ctx context.Context, id core.ID) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE errors SET heal_attempts = heal_attempts + 1, updated_at = now() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("incrementing heal attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *ErrorRepo) Delete(ctx context.Context, id core.ID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM errors WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting error record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
