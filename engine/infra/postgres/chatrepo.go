package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/appforge/appforge/engine/chat"
	"github.com/appforge/appforge/engine/core"
)

const defaultHistoryLimit = 50

// ChatRepo implements chat.Repository. Messages are append-only.
type ChatRepo struct {
	db DB
}

func NewChatRepo(db DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) Append(ctx context.Context, message *chat.Message) error {
	metadata, err := ToJSONB(message.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling message metadata: %w", err)
	}
	_, err = r.db.Exec(ctx, `
INSERT INTO chat_messages (id, project_id, role, content, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, message.ID, message.ProjectID, message.Role, message.Content, metadata, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting chat message: %w", err)
	}
	return nil
}

// History returns the most recent limit messages in chronological order.
// The query scans newest first so the window stays cheap on long
// conversations, then reverses in place.
func (r *ChatRepo) History(ctx context.Context, projectID core.ID, limit int) ([]*chat.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var messages []*chat.Message
	err := pgxscan.Select(ctx, r.db, &messages, `
SELECT id, project_id, role, content, metadata, created_at
FROM chat_messages WHERE project_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("scanning chat history: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *ChatRepo) CountByProject(ctx context.Context, projectID core.ID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM chat_messages WHERE project_id = $1", projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chat messages: %w", err)
	}
	return count, nil
}
