package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/aicontext"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/infra/postgres"
)

var contextColumns = []string{"project_id", "session_id", "context_data", "created_at", "updated_at"}

func TestContextRepo_Get(t *testing.T) {
	t.Run("Should unmarshal the stored context bag", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewContextRepo(mockPool)
		projectID := core.MustNewID()
		now := time.Now().UTC()
		raw := []byte(`{"current_phase":"backend","files_generated":["backend/main.py"]}`)
		mockPool.ExpectQuery("FROM agent_contexts WHERE project_id = \\$1").
			WithArgs(projectID).
			WillReturnRows(mockPool.NewRows(contextColumns).
				AddRow(projectID, "sess-1", raw, now, now))
		record, err := repo.Get(context.Background(), projectID)
		require.NoError(t, err)
		assert.Equal(t, "backend", record.Data.CurrentPhase)
		assert.Equal(t, []string{"backend/main.py"}, record.Data.FilesGenerated)
		assert.Equal(t, "sess-1", record.SessionID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should map a missing context to core.ErrNotFound", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewContextRepo(mockPool)
		projectID := core.MustNewID()
		mockPool.ExpectQuery("FROM agent_contexts WHERE project_id = \\$1").
			WithArgs(projectID).
			WillReturnRows(mockPool.NewRows(contextColumns))
		_, err = repo.Get(context.Background(), projectID)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestContextRepo_Upsert(t *testing.T) {
	t.Run("Should write the marshaled bag", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewContextRepo(mockPool)
		now := time.Now().UTC()
		record := &aicontext.AgentContext{
			ProjectID: core.MustNewID(),
			SessionID: "sess-2",
			Data: aicontext.Data{
				CurrentPhase:   "frontend",
				TasksCompleted: []string{"schema", "backend"},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		data, err := json.Marshal(record.Data)
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO agent_contexts").
			WithArgs(record.ProjectID, record.SessionID, data, record.CreatedAt, record.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		assert.NoError(t, repo.Upsert(context.Background(), record))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestContextRepo_Delete(t *testing.T) {
	t.Run("Should treat deleting an absent row as a no-op", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewContextRepo(mockPool)
		projectID := core.MustNewID()
		mockPool.ExpectExec("DELETE FROM agent_contexts WHERE project_id = \\$1").
			WithArgs(projectID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		assert.NoError(t, repo.Delete(context.Background(), projectID))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
