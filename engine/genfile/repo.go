package genfile

import (
	"context"

	"github.com/appforge/appforge/engine/core"
)

type Repository interface {
	// Create inserts an active file. Returns core.ErrConflict when an active
	// file already exists at (project_id, path).
	Create(ctx context.Context, file *File) error
	Update(ctx context.Context, file *File) error
	GetByID(ctx context.Context, id core.ID) (*File, error)
	// GetByPath resolves the active file at a path. Returns core.ErrNotFound
	// when absent or soft-deleted.
	GetByPath(ctx context.Context, projectID core.ID, path string) (*File, error)
	ListActive(ctx context.Context, projectID core.ID) ([]*File, error)
	// Search matches query case-insensitively against path and content of
	// active files.
	Search(ctx context.Context, projectID core.ID, query string) ([]*File, error)
	// SoftDelete flips is_active. Returns core.ErrNotFound when the file does
	// not exist.
	SoftDelete(ctx context.Context, id core.ID) error
}
