package server

import (
	"context"
	"fmt"

	"github.com/appforge/appforge/engine/aicontext"
	"github.com/appforge/appforge/engine/backend"
	"github.com/appforge/appforge/engine/chat"
	"github.com/appforge/appforge/engine/dbadmin"
	"github.com/appforge/appforge/engine/errorlog"
	"github.com/appforge/appforge/engine/genfile"
	"github.com/appforge/appforge/engine/llm"
	"github.com/appforge/appforge/engine/preview"
	"github.com/appforge/appforge/engine/project"
	"github.com/appforge/appforge/engine/task"
	"github.com/appforge/appforge/engine/tool"
	"github.com/appforge/appforge/engine/workspace"
)

// HealthChecker reports whether the backing store is reachable.
// *postgres.Store satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// State carries every service the route handlers reach into. The handler
// registration functions reject a nil State; individual fields are checked
// lazily by the routes that need them.
type State struct {
	Projects  *project.Service
	Files     *genfile.Service
	Tasks     *task.Service
	Chats     *chat.Service
	Errors    *errorlog.Service
	Contexts  *aicontext.Loader
	Database  *dbadmin.Service
	Builder   *preview.Builder
	Backends  *backend.Manager
	Packages  *workspace.PackageService
	Workspace *workspace.Manager
	Tools     *tool.Dispatcher
	LLM       llm.Client
	Store     HealthChecker
	Sessions  *Sessions
}

func (s *State) validate() error {
	if s == nil {
		return fmt.Errorf("server state is required")
	}
	if s.Projects == nil {
		return fmt.Errorf("project service is required")
	}
	if s.Files == nil {
		return fmt.Errorf("file service is required")
	}
	if s.Tasks == nil {
		return fmt.Errorf("task service is required")
	}
	if s.Chats == nil {
		return fmt.Errorf("chat service is required")
	}
	if s.Errors == nil {
		return fmt.Errorf("error service is required")
	}
	if s.Contexts == nil {
		return fmt.Errorf("context loader is required")
	}
	if s.Sessions == nil {
		return fmt.Errorf("session registry is required")
	}
	return nil
}
