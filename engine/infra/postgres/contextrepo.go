package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/appforge/appforge/engine/aicontext"
	"github.com/appforge/appforge/engine/core"
)

// agentContextDB is the scan target for agent_contexts rows. The context_data
// jsonb column lands raw and is unmarshaled during conversion.
type agentContextDB struct {
	ProjectID   core.ID   `db:"project_id"`
	SessionID   string    `db:"session_id"`
	ContextData []byte    `db:"context_data"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row *agentContextDB) toRecord() (*aicontext.AgentContext, error) {
	record := &aicontext.AgentContext{
		ProjectID: row.ProjectID,
		SessionID: row.SessionID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.ContextData) > 0 {
		if err := json.Unmarshal(row.ContextData, &record.Data); err != nil {
			return nil, fmt.Errorf("unmarshaling context data: %w", err)
		}
	}
	return record, nil
}

// ContextRepo implements aicontext.Repository. Exactly one row per project,
// keyed by project_id.
type ContextRepo struct {
	db DB
}

func NewContextRepo(db DB) *ContextRepo {
	return &ContextRepo{db: db}
}

func (r *ContextRepo) Get(ctx context.Context, projectID core.ID) (*aicontext.AgentContext, error) {
	var row agentContextDB
	err := pgxscan.Get(ctx, r.db, &row, `
SELECT project_id, session_id, context_data, created_at, updated_at
FROM agent_contexts WHERE project_id = $1
`, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scanning agent context: %w", err)
	}
	return row.toRecord()
}

func (r *ContextRepo) Upsert(ctx context.Context, record *aicontext.AgentContext) error {
	data, err := json.Marshal(record.Data)
	if err != nil {
		return fmt.Errorf("marshaling context data: %w", err)
	}
	_, err = r.db.Exec(ctx, `
INSERT INTO agent_contexts (project_id, session_id, context_data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (project_id) DO UPDATE SET
    session_id = EXCLUDED.session_id,
    context_data = EXCLUDED.context_data,
    updated_at = EXCLUDED.updated_at
`, record.ProjectID, record.SessionID, data, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting agent context: %w", err)
	}
	return nil
}

// Delete removes the stored context. Deleting an absent row is a no-op so
// context resets stay idempotent.
func (r *ContextRepo) Delete(ctx context.Context, projectID core.ID) error {
	if _, err := r.db.Exec(ctx,
		"DELETE FROM agent_contexts WHERE project_id = $1", projectID); err != nil {
		return fmt.Errorf("deleting agent context: %w", err)
	}
	return nil
}
