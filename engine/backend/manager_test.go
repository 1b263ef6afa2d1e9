package backend

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/workspace"
	"github.com/appforge/appforge/pkg/cmdexec"
	"github.com/appforge/appforge/pkg/config"
)

type nopRunner struct{}

func (nopRunner) Run(_ context.Context, _ cmdexec.Spec) (*cmdexec.Result, error) {
	return &cmdexec.Result{ExitCode: 0}, nil
}

type fakeProcess struct {
	mu                sync.Mutex
	pid               int
	running           bool
	terminateOnSignal bool
	signals           []os.Signal
	killed            bool
}

func (p *fakeProcess) PID() int {
	return p.pid
}

func (p *fakeProcess) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, sig)
	if p.terminateOnSignal {
		p.running = false
	}
	return nil
}

func (p *fakeProcess) Wait(_ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("process %d still running", p.pid)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
	p.running = false
	return nil
}

func (p *fakeProcess) exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

type fakeSpawner struct {
	mu       sync.Mutex
	specs    []SpawnSpec
	procs    []*fakeProcess
	nextPID  int
	stubborn bool
	spawnErr error
}

func (s *fakeSpawner) Spawn(_ context.Context, spec SpawnSpec) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spawnErr != nil {
		return nil, s.spawnErr
	}
	s.nextPID++
	proc := &fakeProcess{pid: 1000 + s.nextPID, running: true, terminateOnSignal: !s.stubborn}
	s.specs = append(s.specs, spec)
	s.procs = append(s.procs, proc)
	return proc, nil
}

func newTestManager(t *testing.T, basePort, maxPool int) (*Manager, *fakeSpawner, afero.Fs, *workspace.Manager) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	ws := workspace.NewManager(fsys, nopRunner{}, &config.WorkspaceConfig{
		BaseDir:   "/ws",
		PythonBin: "python3",
		UvBin:     "uv",
		SkipVenv:  true,
	})
	spawner := &fakeSpawner{}
	mgr := NewManager(ws, spawner, fsys, &config.BackendsConfig{BasePort: basePort, Max: maxPool})
	return mgr, spawner, fsys, ws
}

func seedBackendWorkspace(t *testing.T, fsys afero.Fs, ws *workspace.Manager, projectID core.ID) {
	t.Helper()
	backendDir := ws.BackendDir(projectID)
	require.NoError(t, fsys.MkdirAll(backendDir, 0o755))
	require.NoError(t, afero.WriteFile(fsys, filepath.Join(backendDir, "main.py"), []byte("app = None\n"), 0o644))
	python := filepath.Join(ws.VenvDir(projectID), "bin", "python")
	require.NoError(t, fsys.MkdirAll(filepath.Dir(python), 0o755))
	require.NoError(t, afero.WriteFile(fsys, python, []byte(""), 0o755))
}

func TestManagerStart(t *testing.T) {
	ctx := context.Background()

	t.Run("Should spawn uvicorn from the workspace venv", func(t *testing.T) {
		mgr, spawner, fsys, ws := newTestManager(t, 8001, 10)
		seedBackendWorkspace(t, fsys, ws, "p1")

		result, err := mgr.Start(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 8001, result.Port)
		assert.Equal(t, 1001, result.PID)
		assert.Equal(t, "http://localhost:8001", result.URL)
		assert.False(t, result.AlreadyRunning)

		require.Len(t, spawner.specs, 1)
		spec := spawner.specs[0]
		assert.Equal(t, filepath.Join(ws.VenvDir("p1"), "bin", "python"), spec.Name)
		assert.Equal(t, []string{
			"-m", "uvicorn", "main:app",
			"--reload",
			"--host", "0.0.0.0",
			"--port", "8001",
			"--log-level", "info",
		}, spec.Args)
		assert.Equal(t, ws.BackendDir("p1"), spec.Dir)
		assert.Equal(t, filepath.Join(ws.BackendDir("p1"), "backend.log"), spec.LogPath)
	})

	t.Run("Should be idempotent for a running backend", func(t *testing.T) {
		mgr, spawner, fsys, ws := newTestManager(t, 8001, 10)
		seedBackendWorkspace(t, fsys, ws, "p1")

		first, err := mgr.Start(ctx, "p1")
		require.NoError(t, err)
		second, err := mgr.Start(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, second.AlreadyRunning)
		assert.Equal(t, first.Port, second.Port)
		assert.Equal(t, first.PID, second.PID)
		assert.Len(t, spawner.specs, 1)
	})

	t.Run("Should require the workspace to exist", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t, 8001, 10)
		_, err := mgr.Start(ctx, "ghost")
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("Should require the entry file", func(t *testing.T) {
		mgr, _, fsys, ws := newTestManager(t, 8001, 10)
		require.NoError(t, fsys.MkdirAll(ws.BackendDir("p1"), 0o755))
		_, err := mgr.Start(ctx, "p1")
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("Should require a ready virtual environment", func(t *testing.T) {
		mgr, _, fsys, ws := newTestManager(t, 8001, 10)
		backendDir := ws.BackendDir("p1")
		require.NoError(t, fsys.MkdirAll(backendDir, 0o755))
		require.NoError(t, afero.WriteFile(fsys, filepath.Join(backendDir, "main.py"), []byte("app"), 0o644))

		_, err := mgr.Start(ctx, "p1")
		require.Error(t, err)
		var coded *core.Error
		require.ErrorAs(t, err, &coded)
		assert.Equal(t, "VENV_NOT_READY", coded.Code)
	})
}

func TestManagerPortAllocation(t *testing.T) {
	ctx := context.Background()

	t.Run("Should hand out the lowest free port and reuse released ones", func(t *testing.T) {
		mgr, _, fsys, ws := newTestManager(t, 8001, 10)
		for _, id := range []core.ID{"p1", "p2", "p3"} {
			seedBackendWorkspace(t, fsys, ws, id)
		}

		first, err := mgr.Start(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 8001, first.Port)

		second, err := mgr.Start(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, 8002, second.Port)

		require.NoError(t, mgr.Stop(ctx, "p1"))

		third, err := mgr.Start(ctx, "p3")
		require.NoError(t, err)
		assert.Equal(t, 8001, third.Port, "released port is reused first")
	})

	t.Run("Should fail when the pool is exhausted", func(t *testing.T) {
		mgr, _, fsys, ws := newTestManager(t, 8001, 2)
		for _, id := range []core.ID{"p1", "p2", "p3"} {
			seedBackendWorkspace(t, fsys, ws, id)
		}
		_, err := mgr.Start(ctx, "p1")
		require.NoError(t, err)
		_, err = mgr.Start(ctx, "p2")
		require.NoError(t, err)

		_, err = mgr.Start(ctx, "p3")
		require.Error(t, err)
		var coded *core.Error
		require.ErrorAs(t, err, &coded)
		assert.Equal(t, "NO_PORTS_AVAILABLE", coded.Code)
	})
}

func TestManagerStop(t *testing.T) {
	ctx := context.Background()

	t.Run("Should terminate gracefully on SIGTERM", func(t *testing.T) {
		mgr, spawner, fsys, ws := newTestManager(t, 8001, 10)
		seedBackendWorkspace(t, fsys, ws, "p1")
		_, err := mgr.Start(ctx, "p1")
		require.NoError(t, err)

		require.NoError(t, mgr.Stop(ctx, "p1"))
		proc := spawner.procs[0]
		assert.Equal(t, []os.Signal{syscall.SIGTERM}, proc.signals)
		assert.False(t, proc.killed)
		assert.Equal(t, StatusStopped, mgr.Status(ctx, "p1").Status)
	})

	t.Run("Should escalate to kill when the process ignores SIGTERM", func(t *testing.T) {
		mgr, spawner, fsys, ws := newTestManager(t, 8001, 10)
		spawner.stubborn = true
		seedBackendWorkspace(t, fsys, ws, "p1")
		_, err := mgr.Start(ctx, "p1")
		require.NoError(t, err)

		require.NoError(t, mgr.Stop(ctx, "p1"))
		proc := spawner.procs[0]
		assert.True(t, proc.killed)
		assert.Equal(t, StatusStopped, mgr.Status(ctx, "p1").Status)
	})

	t.Run("Should report not found for an untracked project", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t, 8001, 10)
		err := mgr.Stop(ctx, "ghost")
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestManagerStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Should report stopped for untracked projects", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t, 8001, 10)
		status := mgr.Status(ctx, "p1")
		assert.Equal(t, StatusStopped, status.Status)
		assert.Zero(t, status.Port)
	})

	t.Run("Should prune entries whose process died", func(t *testing.T) {
		mgr, spawner, fsys, ws := newTestManager(t, 8001, 10)
		seedBackendWorkspace(t, fsys, ws, "p1")
		_, err := mgr.Start(ctx, "p1")
		require.NoError(t, err)

		spawner.procs[0].exit()
		status := mgr.Status(ctx, "p1")
		assert.Equal(t, StatusStopped, status.Status)
		assert.Equal(t, 8001, status.Port, "last known port is reported")

		again := mgr.Status(ctx, "p1")
		assert.Zero(t, again.Port, "entry was pruned")
	})

	t.Run("Should classify a responding backend as healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()
		_, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
		require.NoError(t, err)
		port, err := strconv.Atoi(portStr)
		require.NoError(t, err)

		mgr, _, fsys, ws := newTestManager(t, port, 1)
		seedBackendWorkspace(t, fsys, ws, "p1")
		_, err = mgr.Start(context.Background(), "p1")
		require.NoError(t, err)

		status := mgr.Status(context.Background(), "p1")
		assert.Equal(t, StatusRunning, status.Status)
		assert.Equal(t, HealthHealthy, status.Health)
		assert.Greater(t, status.UptimeSeconds, 0.0)
	})

	t.Run("Should classify an unreachable backend as unhealthy", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		_, portStr, err := net.SplitHostPort(listener.Addr().String())
		require.NoError(t, err)
		port, err := strconv.Atoi(portStr)
		require.NoError(t, err)
		require.NoError(t, listener.Close())

		mgr, _, fsys, ws := newTestManager(t, port, 1)
		seedBackendWorkspace(t, fsys, ws, "p1")
		_, err = mgr.Start(context.Background(), "p1")
		require.NoError(t, err)

		status := mgr.Status(context.Background(), "p1")
		assert.Equal(t, HealthUnhealthy, status.Health)
	})
}

func TestManagerListAndStopAll(t *testing.T) {
	ctx := context.Background()

	t.Run("Should list tracked backends in project order", func(t *testing.T) {
		mgr, _, fsys, ws := newTestManager(t, 8001, 10)
		for _, id := range []core.ID{"pb", "pa"} {
			seedBackendWorkspace(t, fsys, ws, id)
			_, err := mgr.Start(ctx, id)
			require.NoError(t, err)
		}

		statuses := mgr.List(ctx)
		require.Len(t, statuses, 2)
		assert.Equal(t, core.ID("pa"), statuses[0].ProjectID)
		assert.Equal(t, core.ID("pb"), statuses[1].ProjectID)
	})

	t.Run("Should stop every tracked backend", func(t *testing.T) {
		mgr, _, fsys, ws := newTestManager(t, 8001, 10)
		for _, id := range []core.ID{"p1", "p2"} {
			seedBackendWorkspace(t, fsys, ws, id)
			_, err := mgr.Start(ctx, id)
			require.NoError(t, err)
		}

		stopped := mgr.StopAll(ctx)
		assert.Equal(t, []core.ID{"p1", "p2"}, stopped)
		assert.Empty(t, mgr.List(ctx))
	})
}

func TestManagerReadLogs(t *testing.T) {
	t.Run("Should tail the backend log", func(t *testing.T) {
		mgr, _, fsys, ws := newTestManager(t, 8001, 10)
		logPath := filepath.Join(ws.BackendDir("p1"), "backend.log")
		require.NoError(t, fsys.MkdirAll(filepath.Dir(logPath), 0o755))
		require.NoError(t, afero.WriteFile(fsys, logPath, []byte("one\ntwo\nthree\n"), 0o644))

		tail, err := mgr.ReadLogs("p1", 2)
		require.NoError(t, err)
		assert.Equal(t, "two\nthree", tail)
	})

	t.Run("Should report missing logs as not found", func(t *testing.T) {
		mgr, _, _, _ := newTestManager(t, 8001, 10)
		_, err := mgr.ReadLogs("p1", 10)
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
	})
}
