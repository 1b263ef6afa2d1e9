package backend

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/workspace"
	"github.com/appforge/appforge/pkg/config"
	"github.com/appforge/appforge/pkg/logger"
)

const (
	StatusRunning = "running"
	StatusStopped = "stopped"

	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"

	stopGraceTimeout   = 5 * time.Second
	restartDelay       = 1 * time.Second
	healthProbeTimeout = 2 * time.Second
	logFileName        = "backend.log"
)

// RunningBackend tracks one live per-project server process.
type RunningBackend struct {
	ProjectID     core.ID
	PID           int
	Port          int
	StartedAt     time.Time
	WorkspacePath string
	process       Process
}

// Status is the externally visible state of a project backend.
type Status struct {
	ProjectID     core.ID    `json:"project_id"`
	Status        string     `json:"status"`
	PID           int        `json:"pid,omitempty"`
	Port          int        `json:"port,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	UptimeSeconds float64    `json:"uptime_seconds,omitempty"`
	WorkspacePath string     `json:"workspace_path,omitempty"`
	Health        string     `json:"health,omitempty"`
}

// StartResult describes a started (or already running) backend.
type StartResult struct {
	ProjectID      core.ID `json:"project_id"`
	Message        string  `json:"message"`
	Port           int     `json:"port"`
	PID            int     `json:"pid"`
	URL            string  `json:"url"`
	Workspace      string  `json:"workspace"`
	AlreadyRunning bool    `json:"already_running,omitempty"`
}

// Manager owns the project_id -> RunningBackend map. At most one backend runs
// per project and every allocated port belongs to exactly one tracked entry.
type Manager struct {
	mu        sync.Mutex
	running   map[core.ID]*RunningBackend
	workspace *workspace.Manager
	spawner   Spawner
	fs        afero.Fs
	probe     *resty.Client
	basePort  int
	maxPool   int
}

func NewManager(ws *workspace.Manager, spawner Spawner, fsys afero.Fs, cfg *config.BackendsConfig) *Manager {
	return &Manager{
		running:   make(map[core.ID]*RunningBackend),
		workspace: ws,
		spawner:   spawner,
		fs:        fsys,
		probe:     resty.New().SetTimeout(healthProbeTimeout),
		basePort:  cfg.BasePort,
		maxPool:   cfg.Max,
	}
}

func (m *Manager) allocatePortLocked() (int, error) {
	used := make(map[int]struct{}, len(m.running))
	for _, entry := range m.running {
		used[entry.Port] = struct{}{}
	}
	for i := 0; i < m.maxPool; i++ {
		candidate := m.basePort + i
		if _, taken := used[candidate]; !taken {
			return candidate, nil
		}
	}
	return 0, core.NewError(
		fmt.Errorf("no available ports (max %d backends)", m.maxPool), "NO_PORTS_AVAILABLE", nil)
}

// Start launches the project's server process. Idempotent: an already running
// backend is returned as-is. The workspace, its entry file and its virtual
// environment must exist.
func (m *Manager) Start(ctx context.Context, projectID core.ID) (*StartResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.running[projectID]; ok {
		return &StartResult{
			ProjectID:      projectID,
			Message:        "Backend already running",
			Port:           entry.Port,
			PID:            entry.PID,
			URL:            fmt.Sprintf("http://localhost:%d", entry.Port),
			Workspace:      entry.WorkspacePath,
			AlreadyRunning: true,
		}, nil
	}

	backendDir := m.workspace.BackendDir(projectID)
	if ok, err := afero.DirExists(m.fs, backendDir); err != nil || !ok {
		return nil, core.NewError(
			fmt.Errorf("backend workspace not found for project %s: %w", projectID, core.ErrNotFound),
			"WORKSPACE_NOT_FOUND", map[string]any{"workspace": backendDir})
	}
	if ok, err := afero.Exists(m.fs, filepath.Join(backendDir, "main.py")); err != nil || !ok {
		return nil, core.NewError(
			fmt.Errorf("main.py not found in workspace for project %s: %w", projectID, core.ErrNotFound),
			"ENTRYPOINT_NOT_FOUND", map[string]any{"workspace": backendDir})
	}
	if !m.workspace.VenvReady(projectID) {
		return nil, core.NewError(
			fmt.Errorf("virtual environment not ready for project %s", projectID),
			"VENV_NOT_READY", map[string]any{"venv": m.workspace.VenvDir(projectID)})
	}

	port, err := m.allocatePortLocked()
	if err != nil {
		return nil, err
	}
	python := filepath.Join(m.workspace.VenvDir(projectID), "bin", "python")
	proc, err := m.spawner.Spawn(ctx, SpawnSpec{
		Name: python,
		Args: []string{
			"-m", "uvicorn", "main:app",
			"--reload",
			"--host", "0.0.0.0",
			"--port", strconv.Itoa(port),
			"--log-level", "info",
		},
		Dir:     backendDir,
		LogPath: filepath.Join(backendDir, logFileName),
	})
	if err != nil {
		return nil, core.NewError(err, "BACKEND_START_FAILED", map[string]any{"port": port})
	}

	m.running[projectID] = &RunningBackend{
		ProjectID:     projectID,
		PID:           proc.PID(),
		Port:          port,
		StartedAt:     time.Now(),
		WorkspacePath: backendDir,
		process:       proc,
	}
	logger.FromContext(ctx).Info("backend started",
		"project_id", projectID, "port", port, "pid", proc.PID())
	return &StartResult{
		ProjectID: projectID,
		Message:   "Backend started successfully",
		Port:      port,
		PID:       proc.PID(),
		URL:       fmt.Sprintf("http://localhost:%d", port),
		Workspace: backendDir,
	}, nil
}

// Stop terminates the project's backend: SIGTERM, a 5 s grace period, then
// SIGKILL. The tracking entry is removed unconditionally.
func (m *Manager) Stop(ctx context.Context, projectID core.ID) error {
	m.mu.Lock()
	entry, ok := m.running[projectID]
	m.mu.Unlock()
	if !ok {
		return core.NewError(
			fmt.Errorf("no running backend for project %s: %w", projectID, core.ErrNotFound),
			"BACKEND_NOT_RUNNING", nil)
	}

	m.terminate(ctx, entry)

	m.mu.Lock()
	delete(m.running, projectID)
	m.mu.Unlock()
	logger.FromContext(ctx).Info("backend stopped", "project_id", projectID, "pid", entry.PID)
	return nil
}

func (m *Manager) terminate(ctx context.Context, entry *RunningBackend) {
	if !entry.process.Running() {
		return
	}
	if err := entry.process.Signal(syscall.SIGTERM); err != nil {
		_ = entry.process.Kill()
		return
	}
	if err := entry.process.Wait(stopGraceTimeout); err != nil {
		logger.FromContext(ctx).Warn("backend did not stop gracefully, killing",
			"project_id", entry.ProjectID, "pid", entry.PID)
		_ = entry.process.Kill()
		_ = entry.process.Wait(time.Second)
	}
}

// Restart stops a running backend, waits briefly for the port to release, and
// starts it again.
func (m *Manager) Restart(ctx context.Context, projectID core.ID) (*StartResult, error) {
	m.mu.Lock()
	_, wasRunning := m.running[projectID]
	m.mu.Unlock()
	if wasRunning {
		if err := m.Stop(ctx, projectID); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(restartDelay):
		}
	}
	return m.Start(ctx, projectID)
}

// Status reports the current state of a project's backend. Entries whose
// process has exited are pruned; live ones get an HTTP health probe.
func (m *Manager) Status(ctx context.Context, projectID core.ID) *Status {
	m.mu.Lock()
	entry, ok := m.running[projectID]
	if !ok {
		m.mu.Unlock()
		return &Status{ProjectID: projectID, Status: StatusStopped}
	}
	snapshot := *entry
	m.mu.Unlock()

	startedAt := snapshot.StartedAt
	if !snapshot.process.Running() {
		m.mu.Lock()
		delete(m.running, projectID)
		m.mu.Unlock()
		return &Status{
			ProjectID:     projectID,
			Status:        StatusStopped,
			Port:          snapshot.Port,
			StartedAt:     &startedAt,
			WorkspacePath: snapshot.WorkspacePath,
		}
	}
	return &Status{
		ProjectID:     projectID,
		Status:        StatusRunning,
		PID:           snapshot.PID,
		Port:          snapshot.Port,
		StartedAt:     &startedAt,
		UptimeSeconds: time.Since(snapshot.StartedAt).Seconds(),
		WorkspacePath: snapshot.WorkspacePath,
		Health:        m.probeHealth(ctx, snapshot.Port),
	}
}

func (m *Manager) probeHealth(ctx context.Context, port int) string {
	resp, err := m.probe.R().
		SetContext(ctx).
		Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil || resp.StatusCode() != http.StatusOK {
		return HealthUnhealthy
	}
	return HealthHealthy
}

// List reports every tracked backend, pruning dead entries along the way.
func (m *Manager) List(ctx context.Context) []*Status {
	ids := m.trackedIDs()
	statuses := make([]*Status, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, m.Status(ctx, id))
	}
	return statuses
}

// StopAll stops every running backend and returns the IDs that stopped.
func (m *Manager) StopAll(ctx context.Context) []core.ID {
	stopped := make([]core.ID, 0)
	for _, id := range m.trackedIDs() {
		if err := m.Stop(ctx, id); err == nil {
			stopped = append(stopped, id)
		}
	}
	return stopped
}

func (m *Manager) trackedIDs() []core.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]core.ID, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ReadLogs returns the tail of the project's backend process log.
func (m *Manager) ReadLogs(projectID core.ID, tailLines int) (string, error) {
	path := filepath.Join(m.workspace.BackendDir(projectID), logFileName)
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return "", fmt.Errorf("backend log for project %s: %w", projectID, core.ErrNotFound)
	}
	if tailLines <= 0 {
		return string(data), nil
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	return strings.Join(lines, "\n"), nil
}
