package task

import (
	"context"

	"github.com/appforge/appforge/engine/core"
)

type Repository interface {
	// Create inserts the task, assigning the next order_index for the project
	// when OrderIndex is zero.
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id core.ID) (*Task, error)
	// ListByProject returns tasks ordered by order_index ascending.
	ListByProject(ctx context.Context, projectID core.ID) ([]*Task, error)
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, id core.ID) error
}
