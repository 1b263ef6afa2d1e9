package chat

import (
	"context"

	"github.com/appforge/appforge/engine/core"
)

type Repository interface {
	Append(ctx context.Context, message *Message) error
	// History returns the most recent limit messages in chronological order.
	History(ctx context.Context, projectID core.ID, limit int) ([]*Message, error)
	CountByProject(ctx context.Context, projectID core.ID) (int, error)
}
