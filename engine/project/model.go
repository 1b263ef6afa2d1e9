package project

import (
	"time"

	"github.com/appforge/appforge/engine/core"
)

// Status represents the lifecycle state of a project
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// Valid checks if the status is a valid value
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusArchived || s == StatusDeleted
}

// Project is the root aggregate; every other entity is scoped by project id.
type Project struct {
	ID          core.ID   `db:"id,pk" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Status      Status    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Integration is a third-party capability requested for a project.
type Integration struct {
	ID        core.ID        `db:"id,pk" json:"id"`
	ProjectID core.ID        `db:"project_id" json:"project_id"`
	Name      string         `db:"name" json:"name"`
	Status    string         `db:"status" json:"status"`
	Config    map[string]any `db:"config" json:"config,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

const (
	IntegrationRequested = "requested"
	IntegrationEnabled   = "enabled"
)

// Visualization records a chart the model asked the frontend to render.
type Visualization struct {
	ID        core.ID          `db:"id,pk" json:"id"`
	ProjectID core.ID          `db:"project_id" json:"project_id"`
	Title     string           `db:"title" json:"title"`
	ChartType string           `db:"chart_type" json:"chart_type"`
	Data      []map[string]any `db:"data" json:"data"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

const DataRequestPending = "pending"

// DataRequest records the model asking the user for data or files.
type DataRequest struct {
	ID        core.ID   `db:"id,pk" json:"id"`
	ProjectID core.ID   `db:"project_id" json:"project_id"`
	Message   string    `db:"message" json:"message"`
	DataType  string    `db:"data_type" json:"data_type"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Stats summarises a project for progress reporting.
type Stats struct {
	Files      FileStats      `json:"files"`
	Tasks      map[string]int `json:"tasks"`
	OpenErrors int            `json:"open_errors"`
	Messages   int            `json:"chat_messages"`
}

type FileStats struct {
	Total      int            `json:"total"`
	ByLanguage map[string]int `json:"by_language"`
}
