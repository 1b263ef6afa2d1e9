package dbadmin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/pkg/logger"
)

const (
	// DefaultLogLimit matches the read_logs tool's default window.
	DefaultLogLimit = 100

	schemaDumpSQL = `SELECT table_name, column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = 'public'
ORDER BY table_name, ordinal_position`
)

// Service exposes the database surfaces the agent drives directly:
// migrations, ad-hoc SQL and the schema dump, plus the stored project log.
type Service struct {
	migrations MigrationRepository
	logs       LogRepository
	db         Executor
}

func NewService(migrations MigrationRepository, logs LogRepository, db Executor) *Service {
	return &Service{migrations: migrations, logs: logs, db: db}
}

// MigrationInput is one run_migration request.
type MigrationInput struct {
	ProjectID core.ID `json:"project_id" validate:"required"`
	Name      string  `json:"migration_name"`
	SQL       string  `json:"sql" validate:"required"`
}

// RunMigration records the migration pending, executes it, and flips the
// record to success or failed. The failed record keeps the database error so
// the agent can read back why. Names are slugified; the model tends to send
// free-form titles like "Create Users Table".
func (s *Service) RunMigration(ctx context.Context, input *MigrationInput) (*Migration, error) {
	if strings.TrimSpace(input.SQL) == "" {
		return nil, core.NewError(fmt.Errorf("migration sql is required"), "INVALID_INPUT", nil)
	}
	name := slug.Make(input.Name)
	if name == "" {
		name = DefaultMigrationName
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate migration ID: %w", err)
	}
	migration := &Migration{
		ID:        id,
		ProjectID: input.ProjectID,
		Name:      name,
		SQL:       input.SQL,
		Status:    StatusPending,
		AppliedAt: time.Now().UTC(),
	}
	if err := s.migrations.Insert(ctx, migration); err != nil {
		return nil, fmt.Errorf("failed to record migration: %w", err)
	}
	log := logger.FromContext(ctx)
	if _, execErr := s.db.Exec(ctx, input.SQL); execErr != nil {
		if err := s.migrations.SetStatus(ctx, id, StatusFailed, execErr.Error()); err != nil {
			log.Error("failed to mark migration failed", "migration_id", id, "error", err)
		}
		migration.Status = StatusFailed
		migration.ErrorMessage = execErr.Error()
		return nil, core.NewError(fmt.Errorf("migration failed: %w", execErr), "MIGRATION_FAILED",
			map[string]any{"migration_id": id, "migration_name": name})
	}
	if err := s.migrations.SetStatus(ctx, id, StatusSuccess, ""); err != nil {
		return nil, fmt.Errorf("failed to mark migration applied: %w", err)
	}
	migration.Status = StatusSuccess
	log.Info("migration applied", "project_id", input.ProjectID, "migration_name", name)
	return migration, nil
}

// ListMigrations returns the project's migration ledger newest first.
func (s *Service) ListMigrations(ctx context.Context, projectID core.ID) ([]*Migration, error) {
	return s.migrations.ListByProject(ctx, projectID)
}

// QueryInput is one run_sql_query request.
type QueryInput struct {
	ProjectID core.ID `json:"project_id"`
	Query     string  `json:"query" validate:"required"`
	Params    []any   `json:"params,omitempty"`
}

// QueryResult carries either rows (SELECT) or the command tag (everything
// else).
type QueryResult struct {
	Rows     []map[string]any `json:"rows,omitempty"`
	RowCount int              `json:"row_count"`
	Result   string           `json:"result,omitempty"`
}

// RunQuery executes one statement. SELECTs return their rows; any other
// statement returns its command tag.
func (s *Service) RunQuery(ctx context.Context, input *QueryInput) (*QueryResult, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, core.NewError(fmt.Errorf("query is required"), "INVALID_INPUT", nil)
	}
	if strings.HasPrefix(strings.ToUpper(query), "SELECT") {
		rows, err := s.db.Query(ctx, query, input.Params...)
		if err != nil {
			return nil, core.NewError(fmt.Errorf("query failed: %w", err), "QUERY_FAILED", nil)
		}
		return &QueryResult{Rows: rows, RowCount: len(rows)}, nil
	}
	tag, err := s.db.Exec(ctx, query, input.Params...)
	if err != nil {
		return nil, core.NewError(fmt.Errorf("query failed: %w", err), "QUERY_FAILED", nil)
	}
	return &QueryResult{Result: tag}, nil
}

// SchemaDump reads the public schema from information_schema, one entry per
// table with columns in ordinal order.
func (s *Service) SchemaDump(ctx context.Context) (Schema, error) {
	rows, err := s.db.Query(ctx, schemaDumpSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	schema := make(Schema)
	for _, row := range rows {
		table, _ := row["table_name"].(string)
		if table == "" {
			continue
		}
		column := Column{Nullable: row["is_nullable"] == "YES"}
		column.Name, _ = row["column_name"].(string)
		column.Type, _ = row["data_type"].(string)
		if def, ok := row["column_default"].(string); ok {
			column.Default = def
		}
		schema[table] = append(schema[table], column)
	}
	return schema, nil
}

// RecordLog stores one project log line. Level is normalized to upper case.
func (s *Service) RecordLog(ctx context.Context, projectID core.ID, level, message string, metadata map[string]any) error {
	id, err := core.NewID()
	if err != nil {
		return fmt.Errorf("failed to generate log ID: %w", err)
	}
	entry := &Log{
		ID:        id,
		ProjectID: projectID,
		Level:     strings.ToUpper(strings.TrimSpace(level)),
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if entry.Level == "" {
		entry.Level = "INFO"
	}
	return s.logs.Insert(ctx, entry)
}

// ReadStoredLogs returns stored log lines newest first, optionally filtered
// by level.
func (s *Service) ReadStoredLogs(ctx context.Context, projectID core.ID, level string, limit int) ([]*Log, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return s.logs.ListByProject(ctx, projectID, strings.ToUpper(strings.TrimSpace(level)), limit)
}
