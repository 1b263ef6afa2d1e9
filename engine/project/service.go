package project

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/pkg/logger"
)

// WorkspaceProvisioner creates the on-disk workspace for a project.
type WorkspaceProvisioner interface {
	EnsureProject(ctx context.Context, projectID core.ID) error
}

// Service owns project lifecycle operations.
type Service struct {
	repo           Repository
	integrations   IntegrationRepository
	visualizations VisualizationRepository
	dataRequests   DataRequestRepository
	workspace      WorkspaceProvisioner
}

func NewService(
	repo Repository,
	integrations IntegrationRepository,
	visualizations VisualizationRepository,
	dataRequests DataRequestRepository,
	workspace WorkspaceProvisioner,
) *Service {
	return &Service{
		repo:           repo,
		integrations:   integrations,
		visualizations: visualizations,
		dataRequests:   dataRequests,
		workspace:      workspace,
	}
}

// InitInput seeds a new project.
type InitInput struct {
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description"`
	Integrations []string `json:"integrations"`
}

// Init creates the project row and its requested integrations in one
// transaction, then provisions the workspace. Workspace failures do not roll
// back the project; the materializer re-runs on first use.
func (s *Service) Init(ctx context.Context, input *InitInput) (*Project, error) {
	log := logger.FromContext(ctx)
	if strings.TrimSpace(input.Title) == "" {
		return nil, core.NewError(fmt.Errorf("title is required"), "INVALID_INPUT", nil)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate project ID: %w", err)
	}
	now := time.Now().UTC()
	proj := &Project{
		ID:          id,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	integrations := make([]*Integration, 0, len(input.Integrations))
	for _, name := range input.Integrations {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		intID, err := core.NewID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate integration ID: %w", err)
		}
		integrations = append(integrations, &Integration{
			ID:        intID,
			ProjectID: id,
			Name:      name,
			Status:    IntegrationRequested,
			CreatedAt: now,
		})
	}
	if err := s.repo.CreateWithSetup(ctx, proj, integrations); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	if s.workspace != nil {
		if err := s.workspace.EnsureProject(ctx, id); err != nil {
			log.Warn("workspace provisioning failed; will retry on first use",
				"project_id", id, "error", err)
		}
	}
	log.Info("project created", "project_id", id, "title", proj.Title)
	return proj, nil
}

func (s *Service) Get(ctx context.Context, id core.ID) (*Project, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Project, error) {
	return s.repo.List(ctx)
}

func (s *Service) Stats(ctx context.Context, id core.ID) (*Stats, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Stats(ctx, id)
}

// Archive flips the project to archived without touching its files.
func (s *Service) Archive(ctx context.Context, id core.ID) error {
	return s.repo.UpdateStatus(ctx, id, StatusArchived)
}

// EnableIntegration upserts an integration as enabled, recording optional
// configuration.
func (s *Service) EnableIntegration(ctx context.Context, projectID core.ID, name string, config map[string]any) (*Integration, error) {
	if strings.TrimSpace(name) == "" {
		return nil, core.NewError(fmt.Errorf("integration name is required"), "INVALID_INPUT", nil)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate integration ID: %w", err)
	}
	integration := &Integration{
		ID:        id,
		ProjectID: projectID,
		Name:      strings.TrimSpace(name),
		Status:    IntegrationEnabled,
		Config:    config,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.integrations.Upsert(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to enable integration: %w", err)
	}
	return integration, nil
}

func (s *Service) ListIntegrations(ctx context.Context, projectID core.ID) ([]*Integration, error) {
	return s.integrations.ListByProject(ctx, projectID)
}

// Visualize stores a chart definition for the frontend to pick up.
func (s *Service) Visualize(ctx context.Context, projectID core.ID, title, chartType string, data []map[string]any) (*Visualization, error) {
	if strings.TrimSpace(chartType) == "" {
		return nil, core.NewError(fmt.Errorf("chart_type is required"), "INVALID_INPUT", nil)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate visualization ID: %w", err)
	}
	viz := &Visualization{
		ID:        id,
		ProjectID: projectID,
		Title:     title,
		ChartType: chartType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.visualizations.Create(ctx, viz); err != nil {
		return nil, fmt.Errorf("failed to store visualization: %w", err)
	}
	return viz, nil
}

func (s *Service) ListVisualizations(ctx context.Context, projectID core.ID) ([]*Visualization, error) {
	return s.visualizations.ListByProject(ctx, projectID)
}

// RequestData records the model asking the user for input; the request stays
// pending until the frontend answers it.
func (s *Service) RequestData(ctx context.Context, projectID core.ID, message, dataType string) (*DataRequest, error) {
	if strings.TrimSpace(message) == "" {
		return nil, core.NewError(fmt.Errorf("message is required"), "INVALID_INPUT", nil)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate data request ID: %w", err)
	}
	req := &DataRequest{
		ID:        id,
		ProjectID: projectID,
		Message:   message,
		DataType:  dataType,
		Status:    DataRequestPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.dataRequests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to store data request: %w", err)
	}
	return req, nil
}

func (s *Service) ListDataRequests(ctx context.Context, projectID core.ID) ([]*DataRequest, error) {
	return s.dataRequests.ListByProject(ctx, projectID)
}
