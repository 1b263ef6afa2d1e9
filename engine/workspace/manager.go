package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/pkg/cmdexec"
	"github.com/appforge/appforge/pkg/config"
	"github.com/appforge/appforge/pkg/logger"
)

const venvTimeout = 10 * time.Minute

// Manager materialises per-project workspaces:
//
//	<base>/<project_id>/
//	  backend/   pyproject.toml, main.py, app/apis/, .venv (async)
//	  frontend/  package.json, src/
type Manager struct {
	fs        afero.Fs
	runner    cmdexec.Runner
	baseDir   string
	pythonBin string
	skipVenv  bool

	mu       sync.Mutex
	creating map[core.ID]struct{}
}

func NewManager(fs afero.Fs, runner cmdexec.Runner, cfg *config.WorkspaceConfig) *Manager {
	return &Manager{
		fs:        fs,
		runner:    runner,
		baseDir:   cfg.BaseDir,
		pythonBin: cfg.PythonBin,
		skipVenv:  cfg.SkipVenv,
		creating:  make(map[core.ID]struct{}),
	}
}

func (m *Manager) BaseDir() string {
	return m.baseDir
}

func (m *Manager) ProjectDir(projectID core.ID) string {
	return filepath.Join(m.baseDir, projectID.String())
}

func (m *Manager) BackendDir(projectID core.ID) string {
	return filepath.Join(m.ProjectDir(projectID), "backend")
}

func (m *Manager) FrontendDir(projectID core.ID) string {
	return filepath.Join(m.ProjectDir(projectID), "frontend")
}

func (m *Manager) VenvDir(projectID core.ID) string {
	return filepath.Join(m.BackendDir(projectID), ".venv")
}

// VenvReady reports whether the project virtualenv has a python interpreter.
func (m *Manager) VenvReady(projectID core.ID) bool {
	ok, _ := afero.Exists(m.fs, filepath.Join(m.VenvDir(projectID), "bin", "python"))
	return ok
}

// EnsureProject creates the workspace skeleton, filling in only missing
// scaffolding so re-runs never clobber generated files. The virtualenv is
// created by a background task; callers must cope with its absence.
func (m *Manager) EnsureProject(ctx context.Context, projectID core.ID) error {
	log := logger.FromContext(ctx)
	backendDir := m.BackendDir(projectID)
	frontendDir := m.FrontendDir(projectID)

	for _, dir := range []string{
		filepath.Join(backendDir, "app", "apis"),
		filepath.Join(frontendDir, "src"),
	} {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}

	seeds := []struct {
		path    string
		content string
	}{
		{filepath.Join(backendDir, "pyproject.toml"), pyprojectTemplate},
		{filepath.Join(backendDir, "main.py"), mainPyTemplate},
		{filepath.Join(backendDir, "app", "__init__.py"), ""},
		{filepath.Join(backendDir, "app", "apis", "__init__.py"), ""},
		{filepath.Join(frontendDir, "package.json"), packageJSONSeed},
	}
	for _, seed := range seeds {
		created, err := m.writeIfMissing(seed.path, seed.content)
		if err != nil {
			return err
		}
		if created {
			log.Debug("workspace file seeded", "project_id", projectID, "path", seed.path)
		}
	}

	if !m.skipVenv && !m.VenvReady(projectID) {
		m.startVenvCreation(ctx, projectID)
	}
	return nil
}

// WriteGeneratedFile maps a store path onto the workspace and writes it,
// overwriting. Bare src/ paths belong to the frontend tree.
func (m *Manager) WriteGeneratedFile(_ context.Context, projectID core.ID, path, content string) error {
	target := m.diskPath(projectID, path)
	if err := m.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(m.fs, target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (m *Manager) diskPath(projectID core.ID, path string) string {
	switch {
	case strings.HasPrefix(path, "backend/"), strings.HasPrefix(path, "frontend/"):
		return filepath.Join(m.ProjectDir(projectID), filepath.FromSlash(path))
	case strings.HasPrefix(path, "src/"):
		return filepath.Join(m.FrontendDir(projectID), filepath.FromSlash(path))
	default:
		return filepath.Join(m.ProjectDir(projectID), filepath.FromSlash(path))
	}
}

func (m *Manager) writeIfMissing(path, content string) (bool, error) {
	exists, err := afero.Exists(m.fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if exists {
		return false, nil
	}
	if err := afero.WriteFile(m.fs, path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to seed %s: %w", path, err)
	}
	return true, nil
}

// startVenvCreation kicks off the virtualenv build unless one is already in
// flight for the project.
func (m *Manager) startVenvCreation(ctx context.Context, projectID core.ID) {
	m.mu.Lock()
	if _, inFlight := m.creating[projectID]; inFlight {
		m.mu.Unlock()
		return
	}
	m.creating[projectID] = struct{}{}
	m.mu.Unlock()

	log := logger.FromContext(ctx)
	log.Info("virtualenv creation scheduled", "project_id", projectID)

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.creating, projectID)
			m.mu.Unlock()
		}()
		venvCtx, cancel := context.WithTimeout(logger.ContextWithLogger(context.Background(), log), venvTimeout)
		defer cancel()
		if err := m.createVenv(venvCtx, projectID); err != nil {
			log.Error("virtualenv creation failed", "project_id", projectID, "error", err)
			return
		}
		log.Info("virtualenv ready", "project_id", projectID)
	}()
}

// createVenv builds the environment in three steps: python -m venv, install
// uv into it, then resolve the manifest with uv.
func (m *Manager) createVenv(ctx context.Context, projectID core.ID) error {
	backendDir := m.BackendDir(projectID)
	venvDir := m.VenvDir(projectID)

	steps := []cmdexec.Spec{
		{Name: m.pythonBin, Args: []string{"-m", "venv", venvDir}, Dir: backendDir},
		{Name: filepath.Join(venvDir, "bin", "pip"), Args: []string{"install", "uv"}, Dir: backendDir},
		{
			Name: filepath.Join(venvDir, "bin", "uv"),
			Args: []string{"pip", "install", "-r", "pyproject.toml"},
			Dir:  backendDir,
			Env:  map[string]string{"VIRTUAL_ENV": venvDir},
		},
	}
	for _, step := range steps {
		res, err := m.runner.Run(ctx, step)
		if err != nil {
			return fmt.Errorf("%s failed: %w", step.Name, err)
		}
		if !res.Success() {
			return fmt.Errorf("%s exited with code %d: %s", step.Name, res.ExitCode, res.Stderr)
		}
	}
	return nil
}
