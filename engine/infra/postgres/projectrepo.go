package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/project"
)

const projectColumnsSQL = "id, title, description, status, created_at, updated_at"

// ProjectRepo implements project.Repository backed by a pgx-compatible pool.
type ProjectRepo struct {
	db DB
}

func NewProjectRepo(db DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

const projectInsertSQL = `
INSERT INTO projects (id, title, description, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

func (r *ProjectRepo) Create(ctx context.Context, p *project.Project) error {
	_, err := r.db.Exec(ctx, projectInsertSQL,
		p.ID, p.Title, p.Description, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrConflict
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// CreateWithSetup creates the project and its seed integrations in one
// transaction.
func (r *ProjectRepo) CreateWithSetup(
	ctx context.Context,
	p *project.Project,
	integrations []*project.Integration,
) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, projectInsertSQL,
			p.ID, p.Title, p.Description, p.Status, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("inserting project: %w", err)
		}
		for _, integration := range integrations {
			config, err := ToJSONB(integration.Config)
			if err != nil {
				return fmt.Errorf("marshaling integration config: %w", err)
			}
			if _, err := tx.Exec(ctx, integrationUpsertSQL,
				integration.ID, integration.ProjectID, integration.Name,
				integration.Status, config, integration.CreatedAt); err != nil {
				return fmt.Errorf("inserting integration %q: %w", integration.Name, err)
			}
		}
		return nil
	})
}

func (r *ProjectRepo) Get(ctx context.Context, id core.ID) (*project.Project, error) {
	query := fmt.Sprintf("SELECT %s FROM projects WHERE id = $1", projectColumnsSQL)
	var p project.Project
	if err := pgxscan.Get(ctx, r.db, &p, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	return &p, nil
}

// List returns every non-deleted project, newest first.
func (r *ProjectRepo) List(ctx context.Context) ([]*project.Project, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM projects WHERE status <> $1 ORDER BY created_at DESC",
		projectColumnsSQL)
	var projects []*project.Project
	if err := pgxscan.Select(ctx, r.db, &projects, query, project.StatusDeleted); err != nil {
		return nil, fmt.Errorf("scanning projects: %w", err)
	}
	return projects, nil
}

func (r *ProjectRepo) Update(ctx context.Context, p *project.Project) error {
	tag, err := r.db.Exec(ctx, `
UPDATE projects SET title = $2, description = $3, status = $4, updated_at = $5
WHERE id = $1
`, p.ID, p.Title, p.Description, p.Status, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *ProjectRepo) UpdateStatus(ctx context.Context, id core.ID, status project.Status) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE projects SET status = $2, updated_at = now() WHERE id = $1", id, status)
	if err != nil {
		return fmt.Errorf("updating project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Stats aggregates per-project counts for progress reporting.
func (r *ProjectRepo) Stats(ctx context.Context, id core.ID) (*project.Stats, error) {
	stats := &project.Stats{
		Files: project.FileStats{ByLanguage: make(map[string]int)},
		Tasks: make(map[string]int),
	}
	if err := r.countFiles(ctx, id, stats); err != nil {
		return nil, err
	}
	if err := r.countTasks(ctx, id, stats); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM errors WHERE project_id = $1 AND status = $2",
		id, "open").Scan(&stats.OpenErrors); err != nil {
		return nil, fmt.Errorf("counting open errors: %w", err)
	}
	if err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM chat_messages WHERE project_id = $1",
		id).Scan(&stats.Messages); err != nil {
		return nil, fmt.Errorf("counting chat messages: %w", err)
	}
	return stats, nil
}

func (r *ProjectRepo) countFiles(ctx context.Context, id core.ID, stats *project.Stats) error {
	rows, err := r.db.Query(ctx, `
SELECT language, COUNT(*) FROM generated_files
WHERE project_id = $1 AND is_active
GROUP BY language
`, id)
	if err != nil {
		return fmt.Errorf("counting files: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var language string
		var count int
		if err := rows.Scan(&language, &count); err != nil {
			return fmt.Errorf("scanning file count: %w", err)
		}
		stats.Files.ByLanguage[language] = count
		stats.Files.Total += count
	}
	return rows.Err()
}

func (r *ProjectRepo) countTasks(ctx context.Context, id core.ID, stats *project.Stats) error {
	rows, err := r.db.Query(ctx,
		"SELECT status, COUNT(*) FROM tasks WHERE project_id = $1 GROUP BY status", id)
	if err != nil {
		return fmt.Errorf("counting tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return fmt.Errorf("scanning task count: %w", err)
		}
		stats.Tasks[status] = count
	}
	return rows.Err()
}
