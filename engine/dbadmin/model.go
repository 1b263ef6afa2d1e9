package dbadmin

import (
	"context"
	"time"

	"github.com/appforge/appforge/engine/core"
)

// Status tracks a migration through its lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// DefaultMigrationName is used when the caller supplies none. Generated
// schema migrations all land under this name.
const DefaultMigrationName = "auto_generated_schema"

// Migration is one recorded schema change. Rows are inserted pending before
// the SQL runs and flipped to success or failed afterwards, so the ledger
// keeps failures too.
type Migration struct {
	ID           core.ID   `db:"id,pk" json:"id"`
	ProjectID    core.ID   `db:"project_id" json:"project_id"`
	Name         string    `db:"migration_name" json:"migration_name"`
	SQL          string    `db:"sql" json:"sql"`
	Status       Status    `db:"status" json:"status"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	AppliedAt    time.Time `db:"applied_at" json:"applied_at"`
}

type MigrationRepository interface {
	Insert(ctx context.Context, migration *Migration) error
	SetStatus(ctx context.Context, id core.ID, status Status, errorMessage string) error
	// ListByProject returns migrations newest first.
	ListByProject(ctx context.Context, projectID core.ID) ([]*Migration, error)
}

// Log is one stored application log line for a project, written by tool
// activity and read back by the read_logs tool.
type Log struct {
	ID        core.ID        `db:"id,pk" json:"id"`
	ProjectID core.ID        `db:"project_id" json:"project_id"`
	Level     string         `db:"level" json:"level"`
	Message   string         `db:"message" json:"message"`
	Metadata  map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

type LogRepository interface {
	Insert(ctx context.Context, log *Log) error
	// ListByProject returns logs newest first; empty level means all levels.
	ListByProject(ctx context.Context, projectID core.ID, level string, limit int) ([]*Log, error)
}

// Executor runs model-authored SQL against the platform database. It is the
// seam between dbadmin and the pgx pool.
type Executor interface {
	// Exec runs a statement and returns the command tag, e.g. "INSERT 0 1".
	Exec(ctx context.Context, sql string, args ...any) (string, error)
	// Query runs a row-returning statement with rows as column-keyed maps.
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
}

// Column describes one column in the schema dump.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
}

// Schema maps table names to their columns in ordinal order.
type Schema map[string][]Column
