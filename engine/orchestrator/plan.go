package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gosimple/slug"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/schema"
)

// Plan is the structured output of the planning call. Every list may be empty;
// generation steps skip sections the model left out.
type Plan struct {
	Description    string      `json:"description"`
	Tasks          []PlanTask  `json:"tasks" validate:"dive"`
	DatabaseSchema []TableSpec `json:"database_schema" validate:"dive"`
	APIs           []APISpec   `json:"apis" validate:"dive"`
	Pages          []PageSpec  `json:"pages"`
	Integrations   []string    `json:"integrations"`
}

type PlanTask struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Priority     string   `json:"priority" validate:"omitempty,oneof=low medium high"`
	Integrations []string `json:"integrations"`
	Labels       []string `json:"labels"`
}

type TableSpec struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Columns     []ColumnSpec `json:"columns"`
}

type ColumnSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Constraints string `json:"constraints"`
}

type APISpec struct {
	Method      string `json:"method" validate:"omitempty,oneof=GET POST PUT DELETE"`
	Endpoint    string `json:"endpoint"`
	Description string `json:"description"`
}

type PageSpec struct {
	Name        string `json:"name"`
	Route       string `json:"route"`
	Description string `json:"description"`
}

// ParsePlan decodes the model's planning reply. Markdown fences and prose
// around the outermost JSON object are tolerated; anything that still fails
// to decode or validate is an INVALID_PLAN error.
func ParsePlan(ctx context.Context, raw string) (*Plan, error) {
	cleaned := extractObject(stripFences(raw))
	if cleaned == "" {
		return nil, core.NewError(nil, "INVALID_PLAN", map[string]any{
			"reason": "no JSON object found in planning response",
		})
	}
	var plan Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, core.NewError(err, "INVALID_PLAN", map[string]any{
			"reason": "planning response is not valid JSON",
		})
	}
	if err := schema.NewStructValidator(&plan).Validate(ctx); err != nil {
		return nil, core.NewError(err, "INVALID_PLAN", map[string]any{
			"reason": "plan failed validation",
		})
	}
	return &plan, nil
}

// fenceInfoStrings are info-string labels the model commonly attaches to the
// opening fence. The first line after the fence is dropped when it matches.
var fenceInfoStrings = map[string]struct{}{
	"python":     {},
	"typescript": {},
	"tsx":        {},
	"ts":         {},
	"javascript": {},
	"jsx":        {},
	"json":       {},
	"sql":        {},
	"html":       {},
	"css":        {},
}

// stripFences removes a surrounding markdown code fence when present,
// including a recognised language label on the opening line.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	start := strings.Index(trimmed, "```")
	if start == -1 {
		return trimmed
	}
	end := strings.LastIndex(trimmed, "```")
	if end <= start {
		return trimmed
	}
	inner := trimmed[start+3 : end]
	if nl := strings.Index(inner, "\n"); nl != -1 {
		label := strings.ToLower(strings.TrimSpace(inner[:nl]))
		_, known := fenceInfoStrings[label]
		if label == "" || known {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}

// extractObject returns the outermost {...} span, or "" when none exists.
func extractObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// MigrationSQL renders the plan's tables as an idempotent migration script.
func (p *Plan) MigrationSQL() string {
	var b strings.Builder
	b.WriteString("-- Auto-generated migration from project plan\n\n")
	for _, table := range p.DatabaseSchema {
		name := table.Name
		if name == "" {
			name = "unknown_table"
		}
		b.WriteString("CREATE TABLE IF NOT EXISTS " + name + " (\n")
		defs := make([]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			colName := col.Name
			if colName == "" {
				colName = "col"
			}
			colType := col.Type
			if colType == "" {
				colType = "TEXT"
			}
			def := "    " + colName + " " + colType
			if col.Constraints != "" {
				def += " " + col.Constraints
			}
			defs = append(defs, def)
		}
		b.WriteString(strings.Join(defs, ",\n"))
		b.WriteString("\n);\n\n")
	}
	return b.String()
}

// APIModuleName slugifies an endpoint path into a backend module name,
// e.g. "/api/user-profiles" becomes "user_profiles". Python modules cannot
// carry dashes, so the slug's separators become underscores.
func APIModuleName(endpoint string) string {
	trimmed := strings.Trim(endpoint, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx != -1 {
		trimmed = trimmed[idx+1:]
	}
	name := strings.ReplaceAll(slug.Make(trimmed), "-", "_")
	if name == "" {
		return "unnamed_api"
	}
	return name
}

// PageComponentName reduces a page name to a valid component identifier.
func PageComponentName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "UnknownPage"
	}
	return b.String()
}
