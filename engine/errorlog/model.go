package errorlog

import (
	"time"

	"github.com/appforge/appforge/engine/core"
)

// Kind is the channel an error arrived through
type Kind string

const (
	KindBuild   Kind = "build"
	KindRuntime Kind = "runtime"
	KindAPI     Kind = "api"
)

func (k Kind) Valid() bool {
	return k == KindBuild || k == KindRuntime || k == KindAPI
}

// Status is the healing state of a record
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Record is one captured build or runtime failure. A healing pass either
// resolves the record or increments HealAttempts.
type Record struct {
	ID           core.ID        `db:"id,pk" json:"id"`
	ProjectID    core.ID        `db:"project_id" json:"project_id"`
	Kind         Kind           `db:"error_type" json:"error_type"`
	Message      string         `db:"message" json:"message"`
	StackTrace   string         `db:"stack_trace" json:"stack_trace,omitempty"`
	FilePath     string         `db:"file_path" json:"file_path,omitempty"`
	LineNumber   int            `db:"line_number" json:"line_number,omitempty"`
	CodeSnippet  string         `db:"code_snippet" json:"code_snippet,omitempty"`
	Context      map[string]any `db:"context" json:"context,omitempty"`
	Status       Status         `db:"status" json:"status"`
	HealAttempts int            `db:"heal_attempts" json:"heal_attempts"`
	ResolvedAt   *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}
