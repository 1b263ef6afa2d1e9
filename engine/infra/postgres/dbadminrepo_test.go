package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/dbadmin"
	"github.com/appforge/appforge/engine/infra/postgres"
)

func TestMigrationRepo(t *testing.T) {
	t.Run("Should record a pending migration and flip it to failed", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewMigrationRepo(mockPool)
		migration := &dbadmin.Migration{
			ID:        core.MustNewID(),
			ProjectID: core.MustNewID(),
			Name:      dbadmin.DefaultMigrationName,
			SQL:       "CREATE TABLE todos (id SERIAL PRIMARY KEY)",
			Status:    dbadmin.StatusPending,
			AppliedAt: time.Now().UTC(),
		}
		mockPool.ExpectExec("INSERT INTO project_migrations").
			WithArgs(migration.ID, migration.ProjectID, migration.Name, migration.SQL,
				migration.Status, "", migration.AppliedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec("UPDATE project_migrations SET status = \\$2").
			WithArgs(migration.ID, dbadmin.StatusFailed, `relation "todos" already exists`).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		require.NoError(t, repo.Insert(context.Background(), migration))
		err = repo.SetStatus(context.Background(), migration.ID, dbadmin.StatusFailed,
			`relation "todos" already exists`)
		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should map a missing migration to core.ErrNotFound", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewMigrationRepo(mockPool)
		id := core.MustNewID()
		mockPool.ExpectExec("UPDATE project_migrations SET status = \\$2").
			WithArgs(id, dbadmin.StatusSuccess, "").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err = repo.SetStatus(context.Background(), id, dbadmin.StatusSuccess, "")
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestLogRepo_ListByProject(t *testing.T) {
	t.Run("Should filter by level when one is given", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewLogRepo(mockPool)
		projectID := core.MustNewID()
		now := time.Now().UTC()
		rows := mockPool.NewRows([]string{"id", "project_id", "level", "message", "metadata", "created_at"}).
			AddRow(core.MustNewID(), projectID, "ERROR", "todos fetch failed",
				map[string]any(nil), now)
		mockPool.ExpectQuery("FROM project_logs WHERE project_id = \\$1 AND level = \\$2").
			WithArgs(projectID, "ERROR", 20).
			WillReturnRows(rows)
		logs, err := repo.ListByProject(context.Background(), projectID, "ERROR", 20)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "todos fetch failed", logs[0].Message)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should list every level when the filter is empty", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := postgres.NewLogRepo(mockPool)
		projectID := core.MustNewID()
		mockPool.ExpectQuery("FROM project_logs WHERE project_id = \\$1").
			WithArgs(projectID, 100).
			WillReturnRows(mockPool.NewRows(
				[]string{"id", "project_id", "level", "message", "metadata", "created_at"}))
		logs, err := repo.ListByProject(context.Background(), projectID, "", 100)
		require.NoError(t, err)
		assert.Empty(t, logs)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestExecutor(t *testing.T) {
	t.Run("Should return the command tag from exec", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		executor := postgres.NewExecutor(mockPool)
		mockPool.ExpectExec("UPDATE todos SET done = TRUE").
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))
		tag, err := executor.Exec(context.Background(), "UPDATE todos SET done = TRUE")
		require.NoError(t, err)
		assert.Contains(t, tag, "UPDATE")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should shape rows as column-keyed maps", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		executor := postgres.NewExecutor(mockPool)
		rows := mockPool.NewRows([]string{"id", "title"}).
			AddRow(int64(1), "buy milk").
			AddRow(int64(2), "walk the dog")
		mockPool.ExpectQuery("SELECT id, title FROM todos").
			WillReturnRows(rows)
		out, err := executor.Query(context.Background(), "SELECT id, title FROM todos")
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, int64(1), out[0]["id"])
		assert.Equal(t, "buy milk", out[0]["title"])
		assert.Equal(t, "walk the dog", out[1]["title"])
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
