package tool

import (
	"context"
	"encoding/json"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/project"
)

const dataPreviewRows = 5

// ProjectService is the slice of the project service the tool handlers
// consume.
type ProjectService interface {
	Stats(ctx context.Context, id core.ID) (*project.Stats, error)
	EnableIntegration(ctx context.Context, projectID core.ID, name string, config map[string]any) (*project.Integration, error)
	ListIntegrations(ctx context.Context, projectID core.ID) ([]*project.Integration, error)
	Visualize(ctx context.Context, projectID core.ID, title, chartType string, data []map[string]any) (*project.Visualization, error)
	RequestData(ctx context.Context, projectID core.ID, message, dataType string) (*project.DataRequest, error)
}

func (d *Dispatcher) registerProjectTools() error {
	tools := []struct {
		def     Definition
		handler Handler
	}{
		{
			def: Definition{
				Name:        "get_project_stats",
				Description: "Get statistics about the project (file count, task count, etc.). Useful for progress updates.",
				Parameters:  objectSchema(nil, map[string]any{}),
			},
			handler: d.projectStats,
		},
		{
			def: Definition{
				Name:        "enable_integration",
				Description: "Enable a third-party integration (e.g., GitHub, OpenAI, database).",
				Parameters: objectSchema([]string{"integration_name"}, map[string]any{
					"integration_name": map[string]any{
						"type":        "string",
						"description": "Name of the integration to enable",
					},
					"config": map[string]any{
						"type":        "object",
						"description": "Integration configuration (API keys, settings, etc.)",
					},
				}),
			},
			handler: d.enableIntegration,
		},
		{
			def: Definition{
				Name:        "list_integrations",
				Description: "List all enabled integrations for the project.",
				Parameters:  objectSchema(nil, map[string]any{}),
			},
			handler: d.listIntegrations,
		},
		{
			def: Definition{
				Name:        "visualize_data",
				Description: "Create a data visualization (chart, graph, table) from data.",
				Parameters: objectSchema([]string{"data", "chart_type"}, map[string]any{
					"data": map[string]any{
						"type":        "array",
						"description": "Array of data objects to visualize",
					},
					"chart_type": map[string]any{
						"type":        "string",
						"enum":        []string{"bar", "line", "pie", "table", "scatter"},
						"description": "Type of visualization",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Chart title",
					},
				}),
			},
			handler: d.visualizeData,
		},
		{
			def: Definition{
				Name:        "request_data",
				Description: "Request data or files from the user.",
				Parameters: objectSchema([]string{"message", "data_type"}, map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "Message asking the user for specific data",
					},
					"data_type": map[string]any{
						"type":        "string",
						"enum":        []string{"file", "text", "json", "csv"},
						"description": "Type of data being requested",
					},
				}),
			},
			handler: d.requestData,
		},
	}
	for _, t := range tools {
		if err := d.register(t.def, t.handler); err != nil {
			return err
		}
	}
	return nil
}

type projectScopedArgs struct {
	ProjectID core.ID `json:"project_id"`
}

func (d *Dispatcher) projectStats(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[projectScopedArgs](args)
	if err != nil {
		return FailErr(err)
	}
	stats, err := d.deps.Projects.Stats(ctx, req.ProjectID)
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{"stats": stats})
}

type enableIntegrationArgs struct {
	ProjectID       core.ID        `json:"project_id"`
	IntegrationName string         `json:"integration_name"`
	Config          map[string]any `json:"config"`
}

func (d *Dispatcher) enableIntegration(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[enableIntegrationArgs](args)
	if err != nil {
		return FailErr(err)
	}
	integration, err := d.deps.Projects.EnableIntegration(ctx, req.ProjectID, req.IntegrationName, req.Config)
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{
		"message": "Integration '" + integration.Name + "' enabled",
		"data": map[string]any{
			"integration_id":   integration.ID.String(),
			"integration_name": integration.Name,
		},
	})
}

func (d *Dispatcher) listIntegrations(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[projectScopedArgs](args)
	if err != nil {
		return FailErr(err)
	}
	integrations, err := d.deps.Projects.ListIntegrations(ctx, req.ProjectID)
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{"integrations": integrations})
}

type visualizeDataArgs struct {
	ProjectID core.ID          `json:"project_id"`
	Data      []map[string]any `json:"data"`
	ChartType string           `json:"chart_type"`
	Title     string           `json:"title"`
}

func (d *Dispatcher) visualizeData(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[visualizeDataArgs](args)
	if err != nil {
		return FailErr(err)
	}
	viz, err := d.deps.Projects.Visualize(ctx, req.ProjectID, req.Title, req.ChartType, req.Data)
	if err != nil {
		return FailErr(err)
	}
	preview := req.Data
	if len(preview) > dataPreviewRows {
		preview = preview[:dataPreviewRows]
	}
	return Succeed(map[string]any{
		"visualization_id": viz.ID.String(),
		"chart_type":       viz.ChartType,
		"data_preview":     preview,
	})
}

type requestDataArgs struct {
	ProjectID core.ID `json:"project_id"`
	Message   string  `json:"message"`
	DataType  string  `json:"data_type"`
}

func (d *Dispatcher) requestData(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[requestDataArgs](args)
	if err != nil {
		return FailErr(err)
	}
	request, err := d.deps.Projects.RequestData(ctx, req.ProjectID, req.Message, req.DataType)
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{
		"message": "Data request created: " + request.Message,
		"data": map[string]any{
			"request_id": request.ID.String(),
			"status":     request.Status,
		},
	})
}
