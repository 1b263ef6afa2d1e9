package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/go-resty/resty/v2"
	"github.com/kaptinlin/jsonschema"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/pkg/cmdexec"
	"github.com/appforge/appforge/pkg/logger"
)

// Deps carries every service the tool handlers reach into. All fields are
// required unless noted; NewDispatcher rejects missing ones lazily, at the
// first call that needs them.
type Deps struct {
	Tasks     TaskService
	Files     FileService
	Projects  ProjectService
	Database  DatabaseService
	Errors    ErrorService
	Backends  BackendService
	Builder   BuildService
	Installer PackageInstaller
	Paths     WorkspacePaths
	Runner    cmdexec.Runner
	// Probe issues test_endpoint requests; defaults to a fresh client.
	Probe *resty.Client
}

type registration struct {
	def      Definition
	compiled *jsonschema.Schema
	handler  Handler
}

// Dispatcher owns the tool registry and routes model tool calls to their
// handlers. A dispatched call never fails with an error: every outcome,
// including unknown names, bad arguments and handler panics, comes back as a
// Result the model can read.
type Dispatcher struct {
	deps     Deps
	order    []string
	handlers map[string]registration
}

func NewDispatcher(deps Deps) (*Dispatcher, error) {
	if deps.Probe == nil {
		deps.Probe = resty.New().SetTimeout(probeTimeout)
	}
	d := &Dispatcher{
		deps:     deps,
		handlers: make(map[string]registration),
	}
	groups := []func() error{
		d.registerTaskTools,
		d.registerFileTools,
		d.registerProjectTools,
		d.registerDatabaseTools,
		d.registerDevelopmentTools,
	}
	for _, register := range groups {
		if err := register(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dispatcher) register(def Definition, handler Handler) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition requires a name")
	}
	if handler == nil {
		return fmt.Errorf("tool %s requires a handler", def.Name)
	}
	if _, exists := d.handlers[def.Name]; exists {
		return fmt.Errorf("tool %s registered twice", def.Name)
	}
	compiled, err := def.Parameters.Compile()
	if err != nil {
		return fmt.Errorf("tool %s has an invalid parameter schema: %w", def.Name, err)
	}
	d.handlers[def.Name] = registration{def: def, compiled: compiled, handler: handler}
	d.order = append(d.order, def.Name)
	return nil
}

// Definitions returns the registry in registration order.
func (d *Dispatcher) Definitions() []Definition {
	defs := make([]Definition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.handlers[name].def)
	}
	return defs
}

// LLMTools renders the registry for a model call.
func (d *Dispatcher) LLMTools() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.handlers[name].def.LLMDefinition())
	}
	return defs
}

// Dispatch validates the arguments against the registered schema, injects the
// project scope and invokes the handler. project_id always comes from the
// caller, never from the model's arguments.
func (d *Dispatcher) Dispatch(ctx context.Context, projectID core.ID, name string, args json.RawMessage) (result Result) {
	log := logger.FromContext(ctx)
	entry, ok := d.handlers[name]
	if !ok {
		log.Warn("unknown tool requested", "tool", name)
		return Fail("unknown tool: %s", name)
	}
	payload := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &payload); err != nil {
			return Fail("invalid JSON arguments: %v", err)
		}
	}
	if entry.compiled != nil {
		if validation := entry.compiled.Validate(payload); !validation.Valid {
			return Fail("schema validation failed: %v", validation.Errors)
		}
	}
	payload["project_id"] = projectID.String()
	enriched, err := json.Marshal(payload)
	if err != nil {
		return Fail("failed to encode arguments: %v", err)
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("tool handler panicked", "tool", name, "panic", rec)
			result = Result{
				Success:   false,
				Error:     fmt.Sprintf("Tool execution failed: %v", rec),
				Traceback: string(debug.Stack()),
			}
		}
		d.recordActivity(ctx, projectID, name, result)
	}()
	result = entry.handler(ctx, enriched)
	return result
}

// recordActivity keeps an audit line per tool call in the project logs, the
// same stream read_logs serves back to the model. Failures only warn.
func (d *Dispatcher) recordActivity(ctx context.Context, projectID core.ID, name string, result Result) {
	if d.deps.Database == nil {
		return
	}
	level := "INFO"
	message := fmt.Sprintf("tool %s executed", name)
	metadata := map[string]any{"tool": name}
	if !result.Success {
		level = "ERROR"
		message = fmt.Sprintf("tool %s failed", name)
		if result.Error != "" {
			metadata["error"] = result.Error
		}
	}
	if err := d.deps.Database.RecordLog(ctx, projectID, level, message, metadata); err != nil {
		logger.FromContext(ctx).Warn("failed to record tool activity", "tool", name, "error", err)
	}
}
