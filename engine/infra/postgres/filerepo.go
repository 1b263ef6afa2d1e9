package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/genfile"
)

const fileColumnsSQL = "id, project_id, path, content, language, description, " +
	"is_active, created_at, updated_at"

// FileRepo implements genfile.Repository. The partial unique index on
// (project_id, path) WHERE is_active enforces the single-active-file rule.
type FileRepo struct {
	db DB
}

func NewFileRepo(db DB) *FileRepo {
	return &FileRepo{db: db}
}

func (r *FileRepo) Create(ctx context.Context, file *genfile.File) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO generated_files (id, project_id, path, content, language, description,
    is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, file.ID, file.ProjectID, file.Path, file.Content, file.Language,
		file.Description, file.IsActive, file.CreatedAt, file.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrConflict
		}
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

func (r *FileRepo) Update(ctx context.Context, file *genfile.File) error {
	tag, err := r.db.Exec(ctx, `
UPDATE generated_files
SET content = $2, language = $3, description = $4, updated_at = $5
WHERE id = $1
`, file.ID, file.Content, file.Language, file.Description, file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *FileRepo) GetByID(ctx context.Context, id core.ID) (*genfile.File, error) {
	query := fmt.Sprintf("SELECT %s FROM generated_files WHERE id = $1", fileColumnsSQL)
	var file genfile.File
	if err := pgxscan.Get(ctx, r.db, &file, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scanning file: %w", err)
	}
	return &file, nil
}

func (r *FileRepo) GetByPath(ctx context.Context, projectID core.ID, path string) (*genfile.File, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM generated_files WHERE project_id = $1 AND path = $2 AND is_active",
		fileColumnsSQL)
	var file genfile.File
	if err := pgxscan.Get(ctx, r.db, &file, query, projectID, path); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scanning file: %w", err)
	}
	return &file, nil
}

func (r *FileRepo) ListActive(ctx context.Context, projectID core.ID) ([]*genfile.File, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM generated_files WHERE project_id = $1 AND is_active ORDER BY path",
		fileColumnsSQL)
	var files []*genfile.File
	if err := pgxscan.Select(ctx, r.db, &files, query, projectID); err != nil {
		return nil, fmt.Errorf("scanning files: %w", err)
	}
	return files, nil
}

// Search matches query case-insensitively against path and content of active
// files.
func (r *FileRepo) Search(ctx context.Context, projectID core.ID, query string) ([]*genfile.File, error) {
	sql := fmt.Sprintf(`
SELECT %s FROM generated_files
WHERE project_id = $1 AND is_active AND (path ILIKE $2 OR content ILIKE $2)
ORDER BY path
`, fileColumnsSQL)
	var files []*genfile.File
	if err := pgxscan.Select(ctx, r.db, &files, sql, projectID, "%"+query+"%"); err != nil {
		return nil, fmt.Errorf("searching files: %w", err)
	}
	return files, nil
}

func (r *FileRepo) SoftDelete(ctx context.Context, id core.ID) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE generated_files SET is_active = FALSE, updated_at = now() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("soft deleting file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
