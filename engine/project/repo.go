package project

import (
	"context"

	"github.com/appforge/appforge/engine/core"
)

type Repository interface {
	Create(ctx context.Context, project *Project) error
	// CreateWithSetup creates the project and its seed integrations in one
	// transaction.
	CreateWithSetup(ctx context.Context, project *Project, integrations []*Integration) error
	Get(ctx context.Context, id core.ID) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Update(ctx context.Context, project *Project) error
	UpdateStatus(ctx context.Context, id core.ID, status Status) error
	Stats(ctx context.Context, id core.ID) (*Stats, error)
}

type IntegrationRepository interface {
	Upsert(ctx context.Context, integration *Integration) error
	ListByProject(ctx context.Context, projectID core.ID) ([]*Integration, error)
}

type VisualizationRepository interface {
	Create(ctx context.Context, viz *Visualization) error
	ListByProject(ctx context.Context, projectID core.ID) ([]*Visualization, error)
}

type DataRequestRepository interface {
	Create(ctx context.Context, req *DataRequest) error
	ListByProject(ctx context.Context, projectID core.ID) ([]*DataRequest, error)
}
