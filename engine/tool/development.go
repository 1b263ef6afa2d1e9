package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/appforge/appforge/engine/backend"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/errorlog"
	"github.com/appforge/appforge/engine/pkgmanager"
	"github.com/appforge/appforge/engine/preview"
	"github.com/appforge/appforge/pkg/cmdexec"
)

const (
	scriptTimeout     = 30 * time.Second
	probeTimeout      = 10 * time.Second
	maxProbeBodyChars = 4000
	defaultResolution = "Auto-resolved"
)

// ErrorService is the slice of the error log service the tool handlers
// consume.
type ErrorService interface {
	List(ctx context.Context, projectID core.ID, onlyOpen bool) ([]*errorlog.Record, error)
	Resolve(ctx context.Context, id core.ID, notes string) (*errorlog.Record, error)
}

// BackendService reports the running state of a project backend.
type BackendService interface {
	Status(ctx context.Context, projectID core.ID) *backend.Status
}

// BuildService runs the preview build pipeline.
type BuildService interface {
	Build(ctx context.Context, projectID core.ID) (*preview.Result, error)
}

// PackageInstaller applies package sets to the project workspace and keeps
// the install ledger current. *workspace.PackageService satisfies it.
type PackageInstaller interface {
	InstallPython(ctx context.Context, projectID core.ID, packages []string) (*pkgmanager.InstallResult, error)
	InstallNode(ctx context.Context, projectID core.ID, packages []string) (*pkgmanager.InstallResult, error)
}

// WorkspacePaths resolves on-disk locations for script execution.
type WorkspacePaths interface {
	BackendDir(projectID core.ID) string
	VenvDir(projectID core.ID) string
	VenvReady(projectID core.ID) bool
}

func (d *Dispatcher) registerDevelopmentTools() error {
	tools := []struct {
		def     Definition
		handler Handler
	}{
		{
			def: Definition{
				Name:        "run_python_script",
				Description: "Execute a Python script for testing, data processing, or prototyping.",
				Parameters: objectSchema([]string{"script"}, map[string]any{
					"script": map[string]any{
						"type":        "string",
						"description": "Python code to execute",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Description of what the script does",
					},
				}),
			},
			handler: d.runPythonScript,
		},
		{
			def: Definition{
				Name:        "test_endpoint",
				Description: "Test an API endpoint with sample data to verify it works correctly.",
				Parameters: objectSchema([]string{"endpoint_path", "method"}, map[string]any{
					"endpoint_path": map[string]any{
						"type":        "string",
						"description": "API endpoint path to test",
					},
					"method": map[string]any{
						"type":        "string",
						"enum":        []string{"GET", "POST", "PUT", "DELETE"},
						"description": "HTTP method",
					},
					"test_data": map[string]any{
						"type":        "object",
						"description": "Test data to send to the endpoint",
					},
				}),
			},
			handler: d.testEndpoint,
		},
		{
			def: Definition{
				Name:        "troubleshoot",
				Description: "Analyze errors and get suggestions for fixing issues.",
				Parameters: objectSchema([]string{"error_message"}, map[string]any{
					"error_message": map[string]any{
						"type":        "string",
						"description": "Error message or description of the problem",
					},
					"context": map[string]any{
						"type":        "string",
						"description": "Additional context about when/where the error occurred",
					},
				}),
			},
			handler: d.troubleshoot,
		},
		{
			def: Definition{
				Name:        "install_packages",
				Description: "Install Python (pip) or NPM packages required by generated code. Use this when creating code that imports external libraries like pandas, axios, recharts, etc.",
				Parameters: objectSchema([]string{"packages", "package_manager"}, map[string]any{
					"packages": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "List of package names to install (e.g., ['pandas', 'numpy'] or ['axios', 'recharts'])",
					},
					"package_manager": map[string]any{
						"type":        "string",
						"enum":        []string{"pip", "npm"},
						"description": "Which package manager to use: 'pip' for Python packages, 'npm' for JavaScript/TypeScript packages",
					},
				}),
			},
			handler: d.installPackages,
		},
		{
			def: Definition{
				Name:        "trigger_build",
				Description: "Run the preview build so new or changed files are compiled and build errors get recorded.",
				Parameters:  objectSchema(nil, map[string]any{}),
			},
			handler: d.triggerBuild,
		},
		{
			def: Definition{
				Name:        "get_open_errors",
				Description: "Get the unresolved build and runtime errors for the project. Check this after builds to see if fixes are needed.",
				Parameters:  objectSchema(nil, map[string]any{}),
			},
			handler: d.openErrors,
		},
		{
			def: Definition{
				Name:        "resolve_error",
				Description: "Mark an error as resolved after fixing it.",
				Parameters: objectSchema([]string{"error_id"}, map[string]any{
					"error_id": map[string]any{
						"type":        "string",
						"description": "UUID of the error to resolve",
					},
					"resolution_notes": map[string]any{
						"type":        "string",
						"description": "How the error was fixed",
					},
				}),
			},
			handler: d.resolveError,
		},
	}
	for _, t := range tools {
		if err := d.register(t.def, t.handler); err != nil {
			return err
		}
	}
	return nil
}

type runPythonScriptArgs struct {
	ProjectID core.ID `json:"project_id"`
	Script    string  `json:"script"`
}

// runPythonScript executes the snippet with the project's interpreter inside
// the backend workspace, so generated modules and installed packages are
// importable.
func (d *Dispatcher) runPythonScript(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[runPythonScriptArgs](args)
	if err != nil {
		return FailErr(err)
	}
	if strings.TrimSpace(req.Script) == "" {
		return Fail("script is required")
	}
	python := "python3"
	if d.deps.Paths.VenvReady(req.ProjectID) {
		python = filepath.Join(d.deps.Paths.VenvDir(req.ProjectID), "bin", "python3")
	}
	run, err := d.deps.Runner.Run(ctx, cmdexec.Spec{
		Name:    python,
		Args:    []string{"-c", req.Script},
		Dir:     d.deps.Paths.BackendDir(req.ProjectID),
		Timeout: scriptTimeout,
	})
	if err != nil {
		return FailErr(err)
	}
	data := map[string]any{
		"stdout": run.Stdout,
		"stderr": run.Stderr,
		"error":  nil,
	}
	if run.Success() {
		return Succeed(data)
	}
	message := fmt.Sprintf("script exited with code %d", run.ExitCode)
	if run.TimedOut {
		message = fmt.Sprintf("script timed out after %s", scriptTimeout)
	}
	data["error"] = map[string]any{
		"message":   message,
		"exit_code": run.ExitCode,
	}
	return Result{Success: false, Data: data}
}

type testEndpointArgs struct {
	ProjectID    core.ID        `json:"project_id"`
	EndpointPath string         `json:"endpoint_path"`
	Method       string         `json:"method"`
	TestData     map[string]any `json:"test_data"`
}

// testEndpoint issues a real request against the project's running backend.
func (d *Dispatcher) testEndpoint(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[testEndpointArgs](args)
	if err != nil {
		return FailErr(err)
	}
	status := d.deps.Backends.Status(ctx, req.ProjectID)
	if status.Status != backend.StatusRunning {
		return Fail("backend is not running; start it before testing endpoints")
	}
	path := req.EndpointPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := fmt.Sprintf("http://127.0.0.1:%d%s", status.Port, path)
	request := d.deps.Probe.R().SetContext(ctx)
	if req.TestData != nil {
		request.SetBody(req.TestData)
	}
	resp, err := request.Execute(strings.ToUpper(req.Method), url)
	if err != nil {
		return Fail("endpoint request failed: %v", err)
	}
	body := resp.String()
	if len(body) > maxProbeBodyChars {
		body = body[:maxProbeBodyChars]
	}
	return Succeed(map[string]any{
		"endpoint":    req.EndpointPath,
		"method":      strings.ToUpper(req.Method),
		"status_code": resp.StatusCode(),
		"response":    body,
	})
}

type troubleshootArgs struct {
	ProjectID    core.ID `json:"project_id"`
	ErrorMessage string  `json:"error_message"`
	Context      string  `json:"context"`
}

// troubleshoot pattern-matches the error text against known failure classes;
// first match wins.
func (d *Dispatcher) troubleshoot(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[troubleshootArgs](args)
	if err != nil {
		return FailErr(err)
	}
	var suggestions []string
	lowered := strings.ToLower(req.ErrorMessage)
	switch {
	case strings.Contains(lowered, "relation") && strings.Contains(lowered, "does not exist"):
		suggestions = append(suggestions, "Table doesn't exist. Run migration to create the table.")
	case strings.Contains(lowered, "duplicate key"):
		suggestions = append(suggestions, "Unique constraint violation. Check for duplicate data.")
	case strings.Contains(lowered, "null value") && strings.Contains(lowered, "violates not-null"):
		suggestions = append(suggestions, "Required field is missing. Check input data.")
	case strings.Contains(lowered, "modulenotfounderror"), strings.Contains(lowered, "no module named"):
		suggestions = append(suggestions, "Missing Python package. Install required dependencies.")
	case strings.Contains(lowered, "typeerror"):
		suggestions = append(suggestions, "Type mismatch. Check function arguments and data types.")
	}
	return Succeed(map[string]any{
		"analysis": map[string]any{
			"suggestions": suggestions,
			"context":     req.Context,
		},
	})
}

type installPackagesArgs struct {
	ProjectID      core.ID  `json:"project_id"`
	Packages       []string `json:"packages"`
	PackageManager string   `json:"package_manager"`
}

func (d *Dispatcher) installPackages(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[installPackagesArgs](args)
	if err != nil {
		return FailErr(err)
	}
	if len(req.Packages) == 0 {
		return Fail("packages must not be empty")
	}
	var result *pkgmanager.InstallResult
	switch req.PackageManager {
	case "pip":
		result, err = d.deps.Installer.InstallPython(ctx, req.ProjectID, req.Packages)
	case "npm":
		result, err = d.deps.Installer.InstallNode(ctx, req.ProjectID, req.Packages)
	default:
		return Fail("unsupported package manager: %s", req.PackageManager)
	}
	if err != nil {
		return FailErr(err)
	}
	return Result{
		Success: result.Success,
		Data: map[string]any{
			"message":   result.Message,
			"installed": result.Installed,
			"failed":    result.Failed,
		},
	}
}

func (d *Dispatcher) triggerBuild(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[projectScopedArgs](args)
	if err != nil {
		return FailErr(err)
	}
	result, err := d.deps.Builder.Build(ctx, req.ProjectID)
	if err != nil {
		// A bundler failure still counts as a triggered build: the
		// diagnostics are on record and get_open_errors reports them.
		var coded *core.Error
		if errors.As(err, &coded) && coded.Code == "BUILD_FAILED" {
			return Succeed(map[string]any{
				"message":         "Build triggered",
				"build_succeeded": false,
			})
		}
		return Fail("build failed: %v", err)
	}
	return Succeed(map[string]any{
		"message":         "Build triggered",
		"build_succeeded": true,
		"files_processed": result.FilesProcessed,
	})
}

func (d *Dispatcher) openErrors(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[projectScopedArgs](args)
	if err != nil {
		return FailErr(err)
	}
	records, err := d.deps.Errors.List(ctx, req.ProjectID, true)
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{
		"has_errors": len(records) > 0,
		"count":      len(records),
		"errors":     records,
	})
}

type resolveErrorArgs struct {
	ProjectID       core.ID `json:"project_id"`
	ErrorID         core.ID `json:"error_id"`
	ResolutionNotes string  `json:"resolution_notes"`
}

func (d *Dispatcher) resolveError(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[resolveErrorArgs](args)
	if err != nil {
		return FailErr(err)
	}
	notes := req.ResolutionNotes
	if notes == "" {
		notes = defaultResolution
	}
	if _, err := d.deps.Errors.Resolve(ctx, req.ErrorID, notes); err != nil {
		return FailErr(err)
	}
	return Message("Error resolved")
}
