package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/project"
)

const integrationUpsertSQL = `
INSERT INTO project_integrations (id, project_id, name, status, config, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (project_id, name) DO UPDATE SET
    status = EXCLUDED.status,
    config = EXCLUDED.config
`

// IntegrationRepo implements project.IntegrationRepository.
type IntegrationRepo struct {
	db DB
}

func NewIntegrationRepo(db DB) *IntegrationRepo {
	return &IntegrationRepo{db: db}
}

func (r *IntegrationRepo) Upsert(ctx context.Context, integration *project.Integration) error {
	config, err := ToJSONB(integration.Config)
	if err != nil {
		return fmt.Errorf("marshaling integration config: %w", err)
	}
	if _, err := r.db.Exec(ctx, integrationUpsertSQL,
		integration.ID, integration.ProjectID, integration.Name,
		integration.Status, config, integration.CreatedAt); err != nil {
		return fmt.Errorf("upserting integration: %w", err)
	}
	return nil
}

func (r *IntegrationRepo) ListByProject(ctx context.Context, projectID core.ID) ([]*project.Integration, error) {
	var integrations []*project.Integration
	err := pgxscan.Select(ctx, r.db, &integrations, `
SELECT id, project_id, name, status, config, created_at
FROM project_integrations WHERE project_id = $1 ORDER BY created_at
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("scanning integrations: %w", err)
	}
	return integrations, nil
}

// VisualizationRepo implements project.VisualizationRepository.
type VisualizationRepo struct {
	db DB
}

func NewVisualizationRepo(db DB) *VisualizationRepo {
	return &VisualizationRepo{db: db}
}

func (r *VisualizationRepo) Create(ctx context.Context, viz *project.Visualization) error {
	data, err := ToJSONB(viz.Data)
	if err != nil {
		return fmt.Errorf("marshaling visualization data: %w", err)
	}
	_, err = r.db.Exec(ctx, `
INSERT INTO project_visualizations (id, project_id, title, chart_type, data, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, viz.ID, viz.ProjectID, viz.Title, viz.ChartType, data, viz.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting visualization: %w", err)
	}
	return nil
}

func (r *VisualizationRepo) ListByProject(ctx context.Context, projectID core.ID) ([]*project.Visualization, error) {
	var visualizations []*project.Visualization
	err := pgxscan.Select(ctx, r.db, &visualizations, `
SELECT id, project_id, title, chart_type, data, created_at
FROM project_visualizations WHERE project_id = $1 ORDER BY created_at DESC
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("scanning visualizations: %w", err)
	}
	return visualizations, nil
}

// DataRequestRepo implements project.DataRequestRepository.
type DataRequestRepo struct {
	db DB
}

func NewDataRequestRepo(db DB) *DataRequestRepo {
	return &DataRequestRepo{db: db}
}

func (r *DataRequestRepo) Create(ctx context.Context, req *project.DataRequest) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO project_data_requests (id, project_id, message, data_type, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, req.ID, req.ProjectID, req.Message, req.DataType, req.Status, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting data request: %w", err)
	}
	return nil
}

func (r *DataRequestRepo) ListByProject(ctx context.Context, projectID core.ID) ([]*project.DataRequest, error) {
	var requests []*project.DataRequest
	err := pgxscan.Select(ctx, r.db, &requests, `
SELECT id, project_id, message, data_type, status, created_at
FROM project_data_requests WHERE project_id = $1 ORDER BY created_at DESC
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("scanning data requests: %w", err)
	}
	return requests, nil
}
