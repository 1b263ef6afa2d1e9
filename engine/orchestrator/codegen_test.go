package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/engine/tool"
)

const featurePlanJSON = `{
	"description": "Todo app",
	"tasks": [{"title": "Set up database", "description": "Create the todos table", "priority": "high"}],
	"database_schema": [{"name": "todos", "columns": [
		{"name": "id", "type": "uuid", "constraints": "PRIMARY KEY"},
		{"name": "title", "type": "text", "constraints": "NOT NULL"}
	]}],
	"apis": [{"method": "POST", "endpoint": "/api/todos", "description": "Create a todo"}],
	"pages": [{"name": "Todo List", "route": "/", "description": "Shows all todos"}]
}`

func openErrorsResult(errs ...map[string]any) tool.Result {
	list := make([]any, 0, len(errs))
	for _, e := range errs {
		list = append(list, e)
	}
	return tool.Result{Success: true, Data: map[string]any{
		"has_errors": len(list) > 0,
		"count":      len(list),
		"errors":     list,
	}}
}

func filesResult(pathContent ...string) tool.Result {
	files := make([]any, 0, len(pathContent)/2)
	for i := 0; i+1 < len(pathContent); i += 2 {
		files = append(files, map[string]any{
			"file_path":    pathContent[i],
			"file_content": pathContent[i+1],
		})
	}
	return tool.Result{Success: true, Data: map[string]any{"files": files}}
}

func taskCreatedResult(id string) tool.Result {
	return tool.Result{Success: true, Data: map[string]any{
		"message": "Task created",
		"data":    map[string]any{"task_id": id},
	}}
}

func TestRunFeatureRequest(t *testing.T) {
	t.Run("Should plan, generate and heal end to end", func(t *testing.T) {
		f := newFixture(t)
		f.llm.reply = func(req *llm.Request) (*llm.Response, error) {
			switch req.SystemPrompt {
			case intentPrompt:
				return &llm.Response{Content: "feature_request"}, nil
			case planningPrompt:
				return &llm.Response{Content: "```json\n" + featurePlanJSON + "\n```"}, nil
			case apiCodegenSystem:
				return &llm.Response{Content: "```python\nfrom fastapi import APIRouter\nimport httpx\n\nrouter = APIRouter()\n```"}, nil
			case pageCodegenSystem:
				return &llm.Response{Content: "```tsx\nexport default function TodoList() {\n  return null\n}\n```"}, nil
			}
			return nil, fmt.Errorf("unexpected system prompt: %.40s", req.SystemPrompt)
		}
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			switch name {
			case "create_task":
				return taskCreatedResult("task-abc-12345"), true
			case "read_files":
				return filesResult(
					"backend/app/apis/todos/__init__.py",
					"from fastapi import APIRouter\nimport httpx\n\nrouter = APIRouter()",
				), true
			case "get_open_errors":
				return openErrorsResult(), true
			}
			return tool.Result{}, false
		}

		ch, err := f.orch.GenerateWithPlanning(context.Background(), "build a todo app")
		require.NoError(t, err)
		out := drain(t, ch)

		assert.Contains(t, out, "[Intent: feature_request]")
		assert.Contains(t, out, "🎯 Creating project plan...")
		assert.Contains(t, out, "**Project Plan Generated:**")
		assert.Contains(t, out, "**Description:** Todo app")
		assert.Contains(t, out, "**Tasks (1):**")
		assert.Contains(t, out, "1. Set up database")
		assert.Contains(t, out, "   - Create the todos table")
		assert.Contains(t, out, "**Database Tables (1):**")
		assert.Contains(t, out, "- todos")
		assert.Contains(t, out, "**APIs (1):**")
		assert.Contains(t, out, "- /api/todos (POST)")
		assert.Contains(t, out, "**Pages (1):**")
		assert.Contains(t, out, "- Todo List")
		assert.Contains(t, out, "✅ Created: Set up database (ID: task-abc...)")
		assert.Contains(t, out, "✅ Successfully created 1/1 tasks!")

		assert.Contains(t, out, "🔨 **Generating Code from Plan...**")
		assert.Contains(t, out, "📊 Creating database schema (1 tables)...")
		assert.Contains(t, out, "✅ Database schema created")
		assert.Contains(t, out, "🔧 Creating backend APIs (1 endpoints)...")
		assert.Contains(t, out, "✅ Created todos API")
		assert.Contains(t, out, "🎨 Creating frontend pages (1 pages)...")
		assert.Contains(t, out, "✅ Created TodoList page")
		assert.Contains(t, out, "✨ **Code Generation Complete!**")

		assert.Contains(t, out, "📦 **Detecting Required Packages...**")
		assert.Contains(t, out, "🐍 Installing Python packages: httpx")
		assert.Contains(t, out, "   ✅ Python packages installed")

		assert.Contains(t, out, "🔄 **Starting Auto-Healing Loop...**")
		assert.Contains(t, out, "--- Attempt 1/3 ---")
		assert.Contains(t, out, "✅ Build triggered")
		assert.Contains(t, out, "🎉 No errors found! Auto-healing complete.")
		assert.Contains(t, out, "✨ Auto-healing loop complete!")
		assert.Contains(t, out, "[Context updated]")

		migrations := f.runner.named("run_migration")
		require.Len(t, migrations, 1)
		assert.Equal(t, "auto_generated_schema", migrations[0].args["migration_name"])
		sql, _ := migrations[0].args["sql"].(string)
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS todos")
		assert.Contains(t, sql, "    id uuid PRIMARY KEY")

		created := f.runner.named("create_file")
		require.Len(t, created, 2)
		assert.Equal(t, "backend/app/apis/todos/__init__.py", created[0].args["file_path"])
		assert.Equal(t, "python", created[0].args["file_type"])
		assert.Equal(t,
			"from fastapi import APIRouter\nimport httpx\n\nrouter = APIRouter()",
			created[0].args["file_content"])
		assert.Equal(t, "frontend/src/pages/TodoList.tsx", created[1].args["file_path"])
		assert.Equal(t, "typescript", created[1].args["file_type"])

		installs := f.runner.named("install_packages")
		require.Len(t, installs, 1)
		assert.Equal(t, "pip", installs[0].args["package_manager"])
		assert.Equal(t, []any{"httpx"}, installs[0].args["packages"])

		assert.Len(t, f.runner.named("trigger_build"), 1)
		assert.Len(t, f.runner.named("get_open_errors"), 1)

		require.Len(t, f.contexts.updates, 1)
		update := f.contexts.updates[0]
		assert.True(t, update.Merge)
		assert.Equal(t, "sess-1", update.SessionID)
		assert.Equal(t, "code_generation_complete", update.Data.CurrentPhase)
		assert.Equal(t, "feature_request", update.Data.CurrentTask)
		assert.Equal(t, []string{"task-abc-12345"}, update.Data.TasksCompleted)
		assert.Equal(t, "build a todo app", update.Data.AIMemory["last_feature_request"])
		assert.Equal(t, "full_feature", update.Data.AIMemory["plan_type"])
		assert.Equal(t, 1, update.Data.AIMemory["tables_created"])
		assert.Equal(t, 1, update.Data.AIMemory["apis_created"])
		assert.Equal(t, 1, update.Data.AIMemory["pages_created"])
	})

	t.Run("Should keep going when task creation fails", func(t *testing.T) {
		f := newFixture(t)
		f.llm.reply = func(req *llm.Request) (*llm.Response, error) {
			switch req.SystemPrompt {
			case intentPrompt:
				return &llm.Response{Content: "feature_request"}, nil
			case planningPrompt:
				return &llm.Response{Content: `{"tasks": [{"title": "Broken task"}]}`}, nil
			}
			return &llm.Response{Content: "code"}, nil
		}
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			switch name {
			case "create_task":
				return tool.Result{Success: false, Error: "validation failed"}, true
			case "read_files":
				return filesResult(), true
			case "get_open_errors":
				return openErrorsResult(), true
			}
			return tool.Result{}, false
		}

		ch, err := f.orch.GenerateWithPlanning(context.Background(), "build something")
		require.NoError(t, err)
		out := drain(t, ch)

		assert.Contains(t, out, "⚠️ Failed: Broken task - validation failed")
		assert.Contains(t, out, "✅ Successfully created 0/1 tasks!")
		assert.Contains(t, out, "ℹ️ No additional packages needed")
	})

	t.Run("Should abort the turn when planning fails", func(t *testing.T) {
		f := newFixture(t)
		f.llm.reply = func(req *llm.Request) (*llm.Response, error) {
			if req.SystemPrompt == intentPrompt {
				return &llm.Response{Content: "feature_request"}, nil
			}
			return nil, errors.New("model refused")
		}
		ch, err := f.orch.GenerateWithPlanning(context.Background(), "build an app")
		require.NoError(t, err)
		out := drain(t, ch)

		assert.Contains(t, out, "🎯 Creating project plan...")
		assert.Contains(t, out, "❌ Error:")
		assert.Empty(t, f.runner.calls)
	})

	t.Run("Should default task fields in create_task arguments", func(t *testing.T) {
		f := newFixture(t)
		f.llm.reply = func(req *llm.Request) (*llm.Response, error) {
			switch req.SystemPrompt {
			case intentPrompt:
				return &llm.Response{Content: "feature_request"}, nil
			case planningPrompt:
				return &llm.Response{Content: `{"tasks": [{"description": "only a description"}]}`}, nil
			}
			return &llm.Response{Content: "code"}, nil
		}
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			switch name {
			case "create_task":
				return taskCreatedResult("t1"), true
			case "read_files":
				return filesResult(), true
			case "get_open_errors":
				return openErrorsResult(), true
			}
			return tool.Result{}, false
		}

		ch, err := f.orch.GenerateWithPlanning(context.Background(), "build")
		require.NoError(t, err)
		drain(t, ch)

		tasks := f.runner.named("create_task")
		require.Len(t, tasks, 1)
		assert.Equal(t, "Untitled Task", tasks[0].args["title"])
		assert.Equal(t, "only a description", tasks[0].args["description"])
		assert.Equal(t, "medium", tasks[0].args["priority"])
	})
}

func TestRunHealLoop(t *testing.T) {
	brokenFile := "backend/app/apis/todos/__init__.py"
	syntaxError := map[string]any{
		"id":           "err-1",
		"file_path":    brokenFile,
		"line_number":  3,
		"message":      "SyntaxError: invalid syntax",
		"code_snippet": "def x(",
	}

	t.Run("Should resolve fixed diagnostics only after they disappear", func(t *testing.T) {
		f := newFixture(t)
		builds := 0
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			switch name {
			case "trigger_build":
				builds++
				return tool.Result{}, false
			case "get_open_errors":
				if builds == 1 {
					return openErrorsResult(syntaxError), true
				}
				return openErrorsResult(), true
			case "read_files":
				return filesResult(brokenFile, "def x(\n    pass"), true
			}
			return tool.Result{}, false
		}
		f.llm.reply = func(req *llm.Request) (*llm.Response, error) {
			require.Equal(t, errorFixSystem, req.SystemPrompt)
			return &llm.Response{Content: "def x():\n    pass"}, nil
		}

		emit, out := collectEmit()
		f.orch.runHealLoop(context.Background(), emit)

		assert.Contains(t, out.String(), "--- Attempt 1/3 ---")
		assert.Contains(t, out.String(), "1. Fixing "+brokenFile+":3")
		assert.Contains(t, out.String(), "   Error: SyntaxError: invalid syntax")
		assert.Contains(t, out.String(), "   ✅ Fixed "+brokenFile)
		assert.Contains(t, out.String(), "--- Attempt 2/3 ---")
		assert.Contains(t, out.String(), "🎉 No errors found! Auto-healing complete.")
		assert.Equal(t, 2, builds)

		assert.Equal(t, []core.ID{"err-1"}, f.marker.incremented)

		updates := f.runner.named("update_file")
		require.Len(t, updates, 1)
		assert.Equal(t, brokenFile, updates[0].args["file_path"])
		assert.Equal(t, "def x():\n    pass", updates[0].args["file_content"])

		resolved := f.runner.named("resolve_error")
		require.Len(t, resolved, 1)
		assert.Equal(t, "err-1", resolved[0].args["error_id"])
		assert.Equal(t, "Auto-fixed in attempt 1", resolved[0].args["resolution_notes"])

		fixReq := f.llm.requests[0]
		require.Len(t, fixReq.Messages, 1)
		assert.Contains(t, fixReq.Messages[0].Content, "File: "+brokenFile)
		assert.Contains(t, fixReq.Messages[0].Content, "Line: 3")
		assert.Contains(t, fixReq.Messages[0].Content, "def x(")
		require.NotNil(t, fixReq.Options.Temperature)
		assert.InDelta(t, 0.1, *fixReq.Options.Temperature, 1e-9)
	})

	t.Run("Should keep the record pending while its diagnostic persists", func(t *testing.T) {
		f := newFixture(t)
		builds := 0
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			switch name {
			case "trigger_build":
				builds++
				return tool.Result{}, false
			case "get_open_errors":
				if builds <= 2 {
					return openErrorsResult(syntaxError), true
				}
				return openErrorsResult(), true
			case "read_files":
				return filesResult(brokenFile, "def x(\n    pass"), true
			}
			return tool.Result{}, false
		}
		f.llm.reply = func(*llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "still broken fix"}, nil
		}

		emit, _ := collectEmit()
		f.orch.runHealLoop(context.Background(), emit)

		assert.Equal(t, 3, builds)
		assert.Len(t, f.runner.named("update_file"), 2)
		assert.Equal(t, []core.ID{"err-1", "err-1"}, f.marker.incremented)

		resolved := f.runner.named("resolve_error")
		require.Len(t, resolved, 1)
		assert.Equal(t, "Auto-fixed in attempt 2", resolved[0].args["resolution_notes"])
	})

	t.Run("Should stop when the build trigger fails", func(t *testing.T) {
		f := newFixture(t)
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			if name == "trigger_build" {
				return tool.Result{Success: false, Error: "docker unavailable"}, true
			}
			return tool.Result{}, false
		}

		emit, out := collectEmit()
		f.orch.runHealLoop(context.Background(), emit)

		assert.Contains(t, out.String(), "⚠️ Build trigger failed: docker unavailable")
		assert.Contains(t, out.String(), "✨ Auto-healing loop complete!")
		assert.Empty(t, f.runner.named("get_open_errors"))
	})

	t.Run("Should cap fixes per attempt", func(t *testing.T) {
		f := newFixture(t)
		many := make([]map[string]any, 0, 4)
		for i := 1; i <= 4; i++ {
			many = append(many, map[string]any{
				"id":          fmt.Sprintf("err-%d", i),
				"file_path":   fmt.Sprintf("backend/app/apis/m%d/__init__.py", i),
				"line_number": i,
				"message":     "boom",
			})
		}
		checks := 0
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			switch name {
			case "get_open_errors":
				checks++
				if checks == 1 {
					return openErrorsResult(many...), true
				}
				return tool.Result{Success: false, Error: "store offline"}, true
			case "read_files":
				return filesResult("whatever.py", "content"), true
			}
			return tool.Result{}, false
		}
		f.llm.reply = func(*llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "fixed"}, nil
		}

		emit, out := collectEmit()
		f.orch.runHealLoop(context.Background(), emit)

		assert.Contains(t, out.String(), "⚠️ Found 4 error(s)")
		assert.Contains(t, out.String(), "3. Fixing")
		assert.NotContains(t, out.String(), "4. Fixing")
		assert.Len(t, f.marker.incremented, maxFixesPerAttempt)
		assert.Contains(t, out.String(), "❌ Error checking errors: store offline")
	})

	t.Run("Should skip files it cannot read", func(t *testing.T) {
		f := newFixture(t)
		builds := 0
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			switch name {
			case "trigger_build":
				builds++
				return tool.Result{}, false
			case "get_open_errors":
				if builds == 1 {
					return openErrorsResult(syntaxError), true
				}
				return openErrorsResult(), true
			case "read_files":
				return filesResult(), true
			}
			return tool.Result{}, false
		}

		emit, out := collectEmit()
		f.orch.runHealLoop(context.Background(), emit)

		assert.Contains(t, out.String(), "   ⚠️ Could not read file")
		assert.Empty(t, f.marker.incremented)
		assert.Empty(t, f.llm.requests)
		assert.Empty(t, f.runner.named("resolve_error"))
	})
}

func TestInstallDetectedPackages(t *testing.T) {
	t.Run("Should only scan generated source directories", func(t *testing.T) {
		f := newFixture(t)
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			if name == "read_files" {
				return filesResult(
					"backend/app/apis/todos/__init__.py", "import httpx\n",
					"frontend/src/components/ui/button.tsx", `import axios from "axios"`,
				), true
			}
			return tool.Result{}, false
		}

		emit, out := collectEmit()
		f.orch.installDetectedPackages(context.Background(), emit)

		installs := f.runner.named("install_packages")
		require.Len(t, installs, 1)
		assert.Equal(t, "pip", installs[0].args["package_manager"])
		assert.Equal(t, []any{"httpx"}, installs[0].args["packages"])
		assert.NotContains(t, out.String(), "NPM")
	})

	t.Run("Should report when no packages are needed", func(t *testing.T) {
		f := newFixture(t)
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			if name == "read_files" {
				return filesResult("backend/app/apis/todos/__init__.py", "import os\nimport json\n"), true
			}
			return tool.Result{}, false
		}

		emit, out := collectEmit()
		f.orch.installDetectedPackages(context.Background(), emit)

		assert.Contains(t, out.String(), "ℹ️ No additional packages needed")
		assert.Empty(t, f.runner.named("install_packages"))
	})

	t.Run("Should warn when the file listing fails", func(t *testing.T) {
		f := newFixture(t)
		f.runner.handler = func(name string, _ map[string]any) (tool.Result, bool) {
			if name == "read_files" {
				return tool.Result{Success: false, Error: "db down"}, true
			}
			return tool.Result{}, false
		}

		emit, out := collectEmit()
		f.orch.installDetectedPackages(context.Background(), emit)

		assert.Contains(t, out.String(), "⚠️ Package detection failed: db down")
		assert.Empty(t, f.runner.named("install_packages"))
	})
}
