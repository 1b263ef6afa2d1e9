package tool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/project"
)

func TestProjectTools(t *testing.T) {
	t.Run("Should report project statistics", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.projects.stats = func(core.ID) (*project.Stats, error) {
			return &project.Stats{
				Files:      project.FileStats{Total: 4, ByLanguage: map[string]int{"python": 2, "typescript": 2}},
				Tasks:      map[string]int{"done": 3, "todo": 1},
				OpenErrors: 1,
				Messages:   12,
			}, nil
		}
		result := f.dispatch(t, "get_project_stats", `{}`)
		require.True(t, result.Success)
		decoded := decodeResult(t, result)
		stats := decoded["stats"].(map[string]any)
		files := stats["files"].(map[string]any)
		assert.Equal(t, float64(4), files["total"])
		assert.Equal(t, float64(1), stats["open_errors"])
	})

	t.Run("Should enable an integration with config", func(t *testing.T) {
		f := newDispatcherFixture(t)
		var gotName string
		var gotConfig map[string]any
		f.projects.enable = func(_ core.ID, name string, config map[string]any) (*project.Integration, error) {
			gotName = name
			gotConfig = config
			return &project.Integration{ID: "i1", Name: name, Status: project.IntegrationEnabled}, nil
		}
		result := f.dispatch(t, "enable_integration",
			`{"integration_name": "stripe", "config": {"mode": "test"}}`)
		require.True(t, result.Success)
		assert.Equal(t, "stripe", gotName)
		assert.Equal(t, "test", gotConfig["mode"])

		decoded := decodeResult(t, result)
		assert.Equal(t, "Integration 'stripe' enabled", decoded["message"])
		data := decoded["data"].(map[string]any)
		assert.Equal(t, "i1", data["integration_id"])
		assert.Equal(t, "stripe", data["integration_name"])
	})

	t.Run("Should list project integrations", func(t *testing.T) {
		f := newDispatcherFixture(t)
		f.projects.list = func(core.ID) ([]*project.Integration, error) {
			return []*project.Integration{
				{ID: "i1", Name: "stripe", Status: project.IntegrationEnabled},
				{ID: "i2", Name: "sendgrid", Status: project.IntegrationRequested},
			}, nil
		}
		result := f.dispatch(t, "list_integrations", `{}`)
		require.True(t, result.Success)
		decoded := decodeResult(t, result)
		assert.Len(t, decoded["integrations"], 2)
	})

	t.Run("Should store a visualization and preview its data", func(t *testing.T) {
		f := newDispatcherFixture(t)
		var gotTitle, gotChart string
		var gotRows int
		f.projects.visualize = func(_ core.ID, title, chartType string, data []map[string]any) (*project.Visualization, error) {
			gotTitle = title
			gotChart = chartType
			gotRows = len(data)
			return &project.Visualization{ID: "v1", Title: title, ChartType: chartType, Data: data}, nil
		}
		result := f.dispatch(t, "visualize_data",
			`{"title": "Signups by week", "chart_type": "bar", "data": [{"week": 1, "count": 4}, {"week": 2, "count": 9}]}`)
		require.True(t, result.Success)
		assert.Equal(t, "Signups by week", gotTitle)
		assert.Equal(t, "bar", gotChart)
		assert.Equal(t, 2, gotRows)

		decoded := decodeResult(t, result)
		assert.Equal(t, "v1", decoded["visualization_id"])
		assert.Equal(t, "bar", decoded["chart_type"])
		assert.Len(t, decoded["data_preview"], 2)
	})

	t.Run("Should cap the visualization preview", func(t *testing.T) {
		f := newDispatcherFixture(t)
		rows := ""
		for i := 0; i < dataPreviewRows+3; i++ {
			if i > 0 {
				rows += ", "
			}
			rows += fmt.Sprintf(`{"n": %d}`, i)
		}
		result := f.dispatch(t, "visualize_data",
			`{"chart_type": "table", "data": [`+rows+`]}`)
		require.True(t, result.Success)
		decoded := decodeResult(t, result)
		assert.Len(t, decoded["data_preview"], dataPreviewRows)
	})

	t.Run("Should reject chart types outside the schema", func(t *testing.T) {
		f := newDispatcherFixture(t)
		result := f.dispatch(t, "visualize_data", `{"chart_type": "donut", "data": []}`)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "schema validation failed")
	})

	t.Run("Should create a data request", func(t *testing.T) {
		f := newDispatcherFixture(t)
		var gotMessage, gotType string
		f.projects.requestData = func(_ core.ID, message, dataType string) (*project.DataRequest, error) {
			gotMessage = message
			gotType = dataType
			return &project.DataRequest{ID: "r1", Message: message, DataType: dataType, Status: project.DataRequestPending}, nil
		}
		result := f.dispatch(t, "request_data",
			`{"message": "Upload your product catalog as CSV", "data_type": "csv"}`)
		require.True(t, result.Success)
		assert.Equal(t, "Upload your product catalog as CSV", gotMessage)
		assert.Equal(t, "csv", gotType)

		decoded := decodeResult(t, result)
		assert.Equal(t, "Data request created: Upload your product catalog as CSV", decoded["message"])
		data := decoded["data"].(map[string]any)
		assert.Equal(t, "r1", data["request_id"])
		assert.Equal(t, "pending", data["status"])
	})
}
