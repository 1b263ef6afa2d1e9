package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/errorlog"
	"github.com/appforge/appforge/engine/infra/postgres"
)

var errorColumns = []string{
	"id", "project_id", "error_type", "message", "stack_trace", "file_path",
	"line_number", "code_snippet", "context", "status", "heal_attempts",
	"resolved_at", "created_at", "updated_at",
}

func newRecord(projectID core.ID) *errorlog.Record {
	now := time.Now().UTC()
	return &errorlog.Record{
		ID:          core.MustNewID(),
		ProjectID:   projectID,
		Kind:        errorlog.KindBuild,
		Message:     "Cannot find module './components/TodoList'",
		FilePath:    "frontend/src/App.tsx",
		LineNumber:  3,
		CodeSnippet: "import TodoList from './components/TodoList'",
		Status:      errorlog.StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestErrorRepo_Insert(t *testing.T) {
	t.Run("Should insert a build error record", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewErrorRepo(mockPool)
		record := newRecord(core.MustNewID())
		var nilTime *time.Time
		mockPool.ExpectExec("INSERT INTO errors").
			WithArgs(record.ID, record.ProjectID, record.Kind, record.Message, "",
				record.FilePath, record.LineNumber, record.CodeSnippet, []byte(nil),
				record.Status, 0, nilTime, record.CreatedAt, record.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		assert.NoError(t, repo.Insert(context.Background(), record))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestErrorRepo_ListByProject(t *testing.T) {
	t.Run("Should filter by status when one is given", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewErrorRepo(mockPool)
		record := newRecord(core.MustNewID())
		var nilTime *time.Time
		rows := mockPool.NewRows(errorColumns).
			AddRow(record.ID, record.ProjectID, record.Kind, record.Message, "",
				record.FilePath, record.LineNumber, record.CodeSnippet,
				map[string]any(nil), record.Status, 0, nilTime,
				record.CreatedAt, record.UpdatedAt)
		mockPool.ExpectQuery("FROM errors WHERE project_id = \\$1 AND status = \\$2 ORDER BY created_at DESC").
			WithArgs(record.ProjectID, errorlog.StatusOpen).
			WillReturnRows(rows)
		records, err := repo.ListByProject(context.Background(), record.ProjectID, errorlog.StatusOpen)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, record.Message, records[0].Message)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should list every record when status is empty", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewErrorRepo(mockPool)
		projectID := core.MustNewID()
		mockPool.ExpectQuery("FROM errors WHERE project_id = \\$1 ORDER BY created_at DESC").
			WithArgs(projectID).
			WillReturnRows(mockPool.NewRows(errorColumns))
		records, err := repo.ListByProject(context.Background(), projectID, "")
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestErrorRepo_Resolve(t *testing.T) {
	t.Run("Should return the resolved record with merged notes", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewErrorRepo(mockPool)
		record := newRecord(core.MustNewID())
		resolvedAt := time.Now().UTC()
		rows := mockPool.NewRows(errorColumns).
			AddRow(record.ID, record.ProjectID, record.Kind, record.Message, "",
				record.FilePath, record.LineNumber, record.CodeSnippet,
				map[string]any{"resolution_notes": "created the missing component"},
				errorlog.StatusResolved, 1, &resolvedAt,
				record.CreatedAt, resolvedAt)
		mockPool.ExpectQuery("UPDATE errors").
			WithArgs(record.ID, "created the missing component").
			WillReturnRows(rows)
		resolved, err := repo.Resolve(context.Background(), record.ID, "created the missing component")
		require.NoError(t, err)
		assert.Equal(t, errorlog.StatusResolved, resolved.Status)
		require.NotNil(t, resolved.ResolvedAt)
		assert.Equal(t, "created the missing component", resolved.Context["resolution_notes"])
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should map a missing record to core.ErrNotFound", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewErrorRepo(mockPool)
		id := core.MustNewID()
		mockPool.ExpectQuery("UPDATE errors").
			WithArgs(id, "").
			WillReturnRows(mockPool.NewRows(errorColumns))
		_, err = repo.Resolve(context.Background(), id, "")
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestErrorRepo_IncrementHealAttempts(t *testing.T) {
	t.Run("Should bump the attempt counter", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewErrorRepo(mockPool)
		id := core.MustNewID()
		mockPool.ExpectExec("UPDATE errors SET heal_attempts = heal_attempts \\+ 1").
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		assert.NoError(t, repo.IncrementHealAttempts(context.Background(), id))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
