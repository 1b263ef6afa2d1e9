package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/appforge/appforge/engine/core"
)

const defaultHistoryLimit = 50

// Service records and replays conversation turns.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends one message. Unknown roles are rejected; content may be
// empty for tool bookkeeping turns.
func (s *Service) Record(ctx context.Context, projectID core.ID, role Role, content string, metadata map[string]any) (*Message, error) {
	if !role.Valid() {
		return nil, core.NewError(fmt.Errorf("invalid role %q", role), "INVALID_INPUT", nil)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message ID: %w", err)
	}
	message := &Message{
		ID:        id,
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Append(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to append chat message: %w", err)
	}
	return message, nil
}

// History returns the last limit messages, oldest first.
func (s *Service) History(ctx context.Context, projectID core.ID, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.repo.History(ctx, projectID, limit)
}
