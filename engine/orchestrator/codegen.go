package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/appforge/appforge/engine/aicontext"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/engine/pkgmanager"
	"github.com/appforge/appforge/engine/tool"
	"github.com/appforge/appforge/pkg/logger"
)

// runFeatureRequest plans the feature, creates tasks for it, generates the
// code and heals the build. Tool failures along the way degrade to warning
// chunks; only planning failures abort the turn.
func (o *Orchestrator) runFeatureRequest(ctx context.Context, message string, emit emitFunc) error {
	emit("🎯 Creating project plan...\n\n")
	plan, err := o.CreateProjectPlan(ctx, message)
	if err != nil {
		return err
	}

	emit("**Project Plan Generated:**\n\n")
	description := plan.Description
	if description == "" {
		description = "N/A"
	}
	emit(fmt.Sprintf("**Description:** %s\n\n", description))

	emit(fmt.Sprintf("**Tasks (%d):**\n", len(plan.Tasks)))
	for i, task := range plan.Tasks {
		title := task.Title
		if title == "" {
			title = "Untitled"
		}
		desc := task.Description
		if desc == "" {
			desc = "No description"
		}
		emit(fmt.Sprintf("%d. %s\n", i+1, title))
		emit(fmt.Sprintf("   - %s\n", desc))
	}

	if len(plan.DatabaseSchema) > 0 {
		emit(fmt.Sprintf("\n**Database Tables (%d):**\n", len(plan.DatabaseSchema)))
		for _, table := range plan.DatabaseSchema {
			name := table.Name
			if name == "" {
				name = "unknown"
			}
			emit(fmt.Sprintf("- %s\n", name))
		}
	}
	if len(plan.APIs) > 0 {
		emit(fmt.Sprintf("\n**APIs (%d):**\n", len(plan.APIs)))
		for _, api := range plan.APIs {
			endpoint := api.Endpoint
			if endpoint == "" {
				endpoint = "unknown"
			}
			method := api.Method
			if method == "" {
				method = "GET"
			}
			emit(fmt.Sprintf("- %s (%s)\n", endpoint, method))
		}
	}
	if len(plan.Pages) > 0 {
		emit(fmt.Sprintf("\n**Pages (%d):**\n", len(plan.Pages)))
		for _, page := range plan.Pages {
			name := page.Name
			if name == "" {
				name = "unknown"
			}
			emit(fmt.Sprintf("- %s\n", name))
		}
	}

	emit("\n📝 Creating tasks automatically...\n\n")
	taskIDs := make([]string, 0, len(plan.Tasks))
	for _, task := range plan.Tasks {
		title := task.Title
		if title == "" {
			title = "Untitled Task"
		}
		priority := task.Priority
		if priority == "" {
			priority = "medium"
		}
		result := o.dispatch(ctx, "create_task", map[string]any{
			"title":       title,
			"description": task.Description,
			"priority":    priority,
		})
		if !result.Success {
			emit(fmt.Sprintf("⚠️ Failed: %s - %s\n", title, resultError(result)))
			continue
		}
		id := nestedString(result.Data, "data", "task_id")
		taskIDs = append(taskIDs, id)
		emit(fmt.Sprintf("✅ Created: %s (ID: %s...)\n", title, shortID(id)))
	}
	emit(fmt.Sprintf("\n✅ Successfully created %d/%d tasks!\n\n", len(taskIDs), len(plan.Tasks)))
	emit("You can now start working on these tasks in the task panel.\n")

	o.generateFromPlan(ctx, plan, emit)

	update := &aicontext.UpdateInput{
		ProjectID: o.projectID,
		SessionID: o.sessionID,
		Data: aicontext.Data{
			CurrentPhase:   "code_generation_complete",
			CurrentTask:    "feature_request",
			TasksCompleted: taskIDs,
			AIMemory: map[string]any{
				"last_feature_request": firstChars(message, 100),
				"plan_type":            "full_feature",
				"tables_created":       len(plan.DatabaseSchema),
				"apis_created":         len(plan.APIs),
				"pages_created":        len(plan.Pages),
			},
		},
		Merge: true,
	}
	if _, err := o.contexts.UpdateMemory(ctx, update); err != nil {
		logger.FromContext(ctx).Warn("memory update failed",
			"project_id", o.projectID, "error", err)
	} else {
		emit("\n[Context updated]")
	}
	return nil
}

// generateFromPlan turns the plan into files: one migration, one backend
// module per API, one page component per page, then installs whatever
// packages the generated code imports and heals the build.
func (o *Orchestrator) generateFromPlan(ctx context.Context, plan *Plan, emit emitFunc) {
	emit("\n\n🔨 **Generating Code from Plan...**\n\n")

	if len(plan.DatabaseSchema) > 0 {
		emit(fmt.Sprintf("📊 Creating database schema (%d tables)...\n", len(plan.DatabaseSchema)))
		result := o.dispatch(ctx, "run_migration", map[string]any{
			"migration_name": "auto_generated_schema",
			"sql":            plan.MigrationSQL(),
		})
		if result.Success {
			emit("✅ Database schema created\n")
		} else {
			emit(fmt.Sprintf("⚠️ Migration failed: %s\n", resultError(result)))
		}
	}

	if len(plan.APIs) > 0 {
		emit(fmt.Sprintf("\n🔧 Creating backend APIs (%d endpoints)...\n", len(plan.APIs)))
		for _, api := range plan.APIs {
			name := APIModuleName(api.Endpoint)
			method := api.Method
			if method == "" {
				method = "GET"
			}
			resp, err := o.llm.GenerateContent(ctx, &llm.Request{
				SystemPrompt: apiCodegenSystem,
				Messages: []llm.Message{
					{Role: llm.RoleUser, Content: apiPrompt(method, api.Endpoint, api.Description)},
				},
				Options: llm.CallOptions{Temperature: llm.Temp(0.3)},
			})
			if err != nil {
				emit(fmt.Sprintf("⚠️ Failed to create %s: %s\n", name, err))
				continue
			}
			result := o.dispatch(ctx, "create_file", map[string]any{
				"file_path":    "backend/app/apis/" + name + "/__init__.py",
				"file_content": stripFences(resp.Content),
				"file_type":    "python",
			})
			if result.Success {
				emit(fmt.Sprintf("✅ Created %s API\n", name))
			} else {
				emit(fmt.Sprintf("⚠️ Failed to create %s: %s\n", name, resultError(result)))
			}
		}
	}

	if len(plan.Pages) > 0 {
		emit(fmt.Sprintf("\n🎨 Creating frontend pages (%d pages)...\n", len(plan.Pages)))
		for _, page := range plan.Pages {
			name := PageComponentName(page.Name)
			resp, err := o.llm.GenerateContent(ctx, &llm.Request{
				SystemPrompt: pageCodegenSystem,
				Messages: []llm.Message{
					{Role: llm.RoleUser, Content: pagePrompt(page.Name, page.Route, page.Description)},
				},
				Options: llm.CallOptions{Temperature: llm.Temp(0.3)},
			})
			if err != nil {
				emit(fmt.Sprintf("⚠️ Failed to create %s: %s\n", name, err))
				continue
			}
			result := o.dispatch(ctx, "create_file", map[string]any{
				"file_path":    "frontend/src/pages/" + name + ".tsx",
				"file_content": stripFences(resp.Content),
				"file_type":    "typescript",
			})
			if result.Success {
				emit(fmt.Sprintf("✅ Created %s page\n", name))
			} else {
				emit(fmt.Sprintf("⚠️ Failed to create %s: %s\n", name, resultError(result)))
			}
		}
	}

	emit("\n✨ **Code Generation Complete!**\n")
	emit("Files are now available in the code editor.\n")

	o.installDetectedPackages(ctx, emit)
	o.runHealLoop(ctx, emit)
}

// installDetectedPackages reads back the generated sources and installs the
// third-party imports they reference. Detection failures only warn.
func (o *Orchestrator) installDetectedPackages(ctx context.Context, emit emitFunc) {
	emit("\n📦 **Detecting Required Packages...**\n")
	result := o.dispatch(ctx, "read_files", map[string]any{"file_paths": []string{}})
	if !result.Success {
		emit(fmt.Sprintf("⚠️ Package detection failed: %s\n", resultError(result)))
		return
	}
	files, err := decodeFiles(result)
	if err != nil {
		emit(fmt.Sprintf("⚠️ Package detection failed: %s\n", err))
		return
	}
	inputs := make([]pkgmanager.FileInput, 0, len(files))
	for _, f := range files {
		if !strings.HasPrefix(f.FilePath, "backend/app/apis/") &&
			!strings.HasPrefix(f.FilePath, "frontend/src/pages/") {
			continue
		}
		inputs = append(inputs, pkgmanager.FileInput{Path: f.FilePath, Content: f.FileContent})
	}
	detected := pkgmanager.DetectFromFiles(inputs)

	installed := false
	if len(detected.Python) > 0 {
		installed = true
		emit(fmt.Sprintf("🐍 Installing Python packages: %s\n", strings.Join(detected.Python, ", ")))
		result := o.dispatch(ctx, "install_packages", map[string]any{
			"packages":        detected.Python,
			"package_manager": "pip",
		})
		if result.Success {
			emit("   ✅ Python packages installed\n")
		} else {
			emit(fmt.Sprintf("   ⚠️ Some packages failed: %s\n", resultError(result)))
		}
	}
	if len(detected.NPM) > 0 {
		installed = true
		emit(fmt.Sprintf("📦 Installing NPM packages: %s\n", strings.Join(detected.NPM, ", ")))
		result := o.dispatch(ctx, "install_packages", map[string]any{
			"packages":        detected.NPM,
			"package_manager": "npm",
		})
		if result.Success {
			emit("   ✅ NPM packages installed\n")
		} else {
			emit(fmt.Sprintf("   ⚠️ Some packages failed: %s\n", resultError(result)))
		}
	}
	if !installed {
		emit("   ℹ️ No additional packages needed\n")
	}
}

// openError mirrors the diagnostic shape get_open_errors returns.
type openError struct {
	ID          string `json:"id"`
	FilePath    string `json:"file_path"`
	LineNumber  int    `json:"line_number"`
	Message     string `json:"message"`
	CodeSnippet string `json:"code_snippet"`
}

// runHealLoop builds the project and fixes reported diagnostics until the
// build comes back clean or the attempt budget runs out. A diagnostic is
// only resolved after a later check shows it gone, so a bad fix never closes
// the record it failed to fix.
func (o *Orchestrator) runHealLoop(ctx context.Context, emit emitFunc) {
	log := logger.FromContext(ctx)
	emit("\n🔄 **Starting Auto-Healing Loop...**\n")
	pending := make(map[string]int)

	for attempt := 1; attempt <= maxHealAttempts; attempt++ {
		emit(fmt.Sprintf("\n--- Attempt %d/%d ---\n", attempt, maxHealAttempts))
		emit("🔨 Building project...\n")
		result := o.dispatch(ctx, "trigger_build", nil)
		if !result.Success {
			emit(fmt.Sprintf("⚠️ Build trigger failed: %s\n", resultError(result)))
			break
		}
		emit("✅ Build triggered\n")

		select {
		case <-time.After(o.settle):
		case <-ctx.Done():
			return
		}

		emit("🔍 Checking for errors...\n")
		result = o.dispatch(ctx, "get_open_errors", nil)
		if !result.Success {
			emit(fmt.Sprintf("❌ Error checking errors: %s\n", resultError(result)))
			break
		}
		open, err := decodeOpenErrors(result)
		if err != nil {
			emit(fmt.Sprintf("❌ Error checking errors: %s\n", err))
			break
		}

		stillOpen := make(map[string]struct{}, len(open))
		for _, e := range open {
			stillOpen[e.ID] = struct{}{}
		}
		for id, fixedIn := range pending {
			if _, exists := stillOpen[id]; exists {
				continue
			}
			res := o.dispatch(ctx, "resolve_error", map[string]any{
				"error_id":         id,
				"resolution_notes": fmt.Sprintf("Auto-fixed in attempt %d", fixedIn),
			})
			if !res.Success {
				log.Warn("failed to resolve healed error", "error_id", id, "error", res.Error)
			}
			delete(pending, id)
		}

		if len(open) == 0 {
			emit("🎉 No errors found! Auto-healing complete.\n")
			break
		}
		emit(fmt.Sprintf("⚠️ Found %d error(s)\n", len(open)))

		limit := len(open)
		if limit > maxFixesPerAttempt {
			limit = maxFixesPerAttempt
		}
		for i := 0; i < limit; i++ {
			e := open[i]
			emit(fmt.Sprintf("\n%d. Fixing %s:%d\n", i+1, e.FilePath, e.LineNumber))
			emit(fmt.Sprintf("   Error: %s\n", e.Message))

			readResult := o.dispatch(ctx, "read_files", map[string]any{
				"file_paths": []string{e.FilePath},
			})
			var content string
			if readResult.Success {
				if files, err := decodeFiles(readResult); err == nil && len(files) > 0 {
					content = files[0].FileContent
				}
			}
			if content == "" {
				emit("   ⚠️ Could not read file\n")
				continue
			}

			if err := o.errors.IncrementHealAttempts(ctx, core.ID(e.ID)); err != nil {
				log.Warn("failed to bump heal attempts", "error_id", e.ID, "error", err)
			}

			resp, err := o.llm.GenerateContent(ctx, &llm.Request{
				SystemPrompt: errorFixSystem,
				Messages: []llm.Message{
					{Role: llm.RoleUser, Content: errorFixPrompt(e.FilePath, e.LineNumber, e.Message, e.CodeSnippet, content)},
				},
				Options: llm.CallOptions{Temperature: llm.Temp(0.1)},
			})
			if err != nil {
				emit(fmt.Sprintf("   ❌ Error fixing: %s\n", err))
				continue
			}

			updateResult := o.dispatch(ctx, "update_file", map[string]any{
				"file_path":    e.FilePath,
				"file_content": stripFences(resp.Content),
			})
			if updateResult.Success {
				emit(fmt.Sprintf("   ✅ Fixed %s\n", e.FilePath))
				pending[e.ID] = attempt
			} else {
				emit(fmt.Sprintf("   ⚠️ Failed to update file: %s\n", resultError(updateResult)))
			}
		}
	}
	emit("\n✨ Auto-healing loop complete!\n")
}

func (o *Orchestrator) dispatch(ctx context.Context, name string, args map[string]any) tool.Result {
	var encoded json.RawMessage
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return tool.Result{Success: false, Error: fmt.Sprintf("failed to encode arguments: %v", err)}
		}
		encoded = raw
	}
	return o.tools.Dispatch(ctx, o.projectID, name, encoded)
}

// filePayload mirrors the shape read_files returns per file.
type filePayload struct {
	FilePath    string `json:"file_path"`
	FileContent string `json:"file_content"`
}

func decodeFiles(result tool.Result) ([]filePayload, error) {
	raw, err := json.Marshal(result.Data["files"])
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode files payload: %w", err)
	}
	var files []filePayload
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("unexpected files payload: %w", err)
	}
	return files, nil
}

func decodeOpenErrors(result tool.Result) ([]openError, error) {
	raw, err := json.Marshal(result.Data["errors"])
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode errors payload: %w", err)
	}
	var open []openError
	if err := json.Unmarshal(raw, &open); err != nil {
		return nil, fmt.Errorf("unexpected errors payload: %w", err)
	}
	return open, nil
}

func resultError(result tool.Result) string {
	if result.Error != "" {
		return result.Error
	}
	return "Unknown error"
}

func nestedString(data map[string]any, keys ...string) string {
	current := any(data)
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = m[key]
	}
	s, _ := current.(string)
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
