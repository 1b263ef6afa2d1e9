package task

import (
	"time"

	"github.com/appforge/appforge/engine/core"
)

// Status represents the workflow state of a task
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked:
		return true
	}
	return false
}

// Priority represents task urgency
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Task is one unit of planned work, ordered per project by OrderIndex.
type Task struct {
	ID          core.ID        `db:"id,pk" json:"id"`
	ProjectID   core.ID        `db:"project_id" json:"project_id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Status      Status         `db:"status" json:"status"`
	Priority    Priority       `db:"priority" json:"priority"`
	OrderIndex  int            `db:"order_index" json:"order_index"`
	Metadata    map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Comment is one progress note stored inside the task metadata bag.
type Comment struct {
	Comment   string    `json:"comment"`
	Type      string    `json:"comment_type"`
	CreatedAt time.Time `json:"created_at"`
}
