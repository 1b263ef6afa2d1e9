package errorlog

import (
	"context"

	"github.com/appforge/appforge/engine/core"
)

type Repository interface {
	Insert(ctx context.Context, record *Record) error
	Get(ctx context.Context, id core.ID) (*Record, error)
	// ListByProject returns records newest first; empty status means all.
	ListByProject(ctx context.Context, projectID core.ID, status Status) ([]*Record, error)
	// Resolve flips the record to resolved, stamps resolved_at and merges
	// resolution notes into context. Returns core.ErrNotFound when missing.
	Resolve(ctx context.Context, id core.ID, notes string) (*Record, error)
	IncrementHealAttempts(ctx context.Context, id core.ID) error
	Delete(ctx context.Context, id core.ID) error
}
