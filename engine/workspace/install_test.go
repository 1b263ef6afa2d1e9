package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/pkgmanager"
	"github.com/appforge/appforge/pkg/cmdexec"
	"github.com/appforge/appforge/pkg/config"
)

// scriptedRunner fails the packages named in fail and succeeds everything
// else. The package name is the last argument of the install spec.
type scriptedRunner struct {
	mu    sync.Mutex
	specs []cmdexec.Spec
	fail  map[string]bool
}

func (r *scriptedRunner) Run(_ context.Context, spec cmdexec.Spec) (*cmdexec.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = append(r.specs, spec)
	if len(spec.Args) > 0 && r.fail[spec.Args[len(spec.Args)-1]] {
		return &cmdexec.Result{ExitCode: 1, Stderr: "no matching distribution"}, nil
	}
	return &cmdexec.Result{ExitCode: 0}, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	rows      []*pkgmanager.InstalledPackage
	recordErr error
}

func (l *fakeLedger) Record(_ context.Context, packages []*pkgmanager.InstalledPackage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	l.rows = append(l.rows, packages...)
	return nil
}

func (l *fakeLedger) ListByProject(_ context.Context, projectID core.ID) ([]*pkgmanager.InstalledPackage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*pkgmanager.InstalledPackage
	for _, row := range l.rows {
		if row.ProjectID == projectID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (l *fakeLedger) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, row := range l.rows {
		out = append(out, row.Name)
	}
	return out
}

func newTestPackageService(t *testing.T, projectID core.ID, runner cmdexec.Runner) (*PackageService, *fakeLedger, *Manager) {
	t.Helper()
	fs := afero.NewMemMapFs()
	cfg := &config.WorkspaceConfig{BaseDir: "/ws", PythonBin: "python3", UvBin: "uv", SkipVenv: true}
	manager := NewManager(fs, runner, cfg)
	require.NoError(t, manager.EnsureProject(context.Background(), projectID))
	ledger := &fakeLedger{}
	service := NewPackageService(manager, pkgmanager.NewInstaller(fs, runner, "uv"), ledger)
	return service, ledger, manager
}

func TestPackageServiceInstallPython(t *testing.T) {
	projectID := core.MustNewID()

	t.Run("Should record successful installs in the ledger", func(t *testing.T) {
		runner := &scriptedRunner{}
		service, ledger, manager := newTestPackageService(t, projectID, runner)

		result, err := service.InstallPython(context.Background(), projectID, []string{"requests", "stripe"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, []string{"requests", "stripe"}, result.Installed)

		rows, err := ledger.ListByProject(context.Background(), projectID)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		for _, row := range rows {
			assert.Equal(t, pkgmanager.EcosystemPip, row.Ecosystem)
			assert.Equal(t, projectID, row.ProjectID)
			assert.False(t, row.InstalledAt.IsZero())
			assert.False(t, row.ID.IsZero())
		}

		runner.mu.Lock()
		defer runner.mu.Unlock()
		require.Len(t, runner.specs, 2)
		assert.Equal(t, "uv", runner.specs[0].Name)
		assert.Equal(t, []string{"pip", "install", "requests"}, runner.specs[0].Args)
		assert.Equal(t, manager.BackendDir(projectID), runner.specs[0].Dir)
	})

	t.Run("Should only record the packages that installed", func(t *testing.T) {
		runner := &scriptedRunner{fail: map[string]bool{"leftpad": true}}
		service, ledger, _ := newTestPackageService(t, projectID, runner)

		result, err := service.InstallPython(context.Background(), projectID, []string{"requests", "leftpad"})
		require.NoError(t, err)
		assert.False(t, result.Success)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, "leftpad", result.Failed[0].Package)
		assert.Equal(t, []string{"requests"}, ledger.names())
	})

	t.Run("Should leave the ledger empty when nothing installs", func(t *testing.T) {
		runner := &scriptedRunner{fail: map[string]bool{"leftpad": true}}
		service, ledger, _ := newTestPackageService(t, projectID, runner)

		result, err := service.InstallPython(context.Background(), projectID, []string{"leftpad"})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Empty(t, ledger.names())
	})
}

func TestPackageServiceInstallNode(t *testing.T) {
	projectID := core.MustNewID()

	t.Run("Should record added dependencies in the ledger", func(t *testing.T) {
		service, ledger, _ := newTestPackageService(t, projectID, &scriptedRunner{})

		result, err := service.InstallNode(context.Background(), projectID, []string{"axios"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, []string{"axios"}, result.Installed)

		rows, err := ledger.ListByProject(context.Background(), projectID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, pkgmanager.EcosystemNPM, rows[0].Ecosystem)
		assert.Equal(t, "axios", rows[0].Name)
	})

	t.Run("Should not record dependencies the manifest already has", func(t *testing.T) {
		service, ledger, _ := newTestPackageService(t, projectID, &scriptedRunner{})

		_, err := service.InstallNode(context.Background(), projectID, []string{"axios"})
		require.NoError(t, err)
		result, err := service.InstallNode(context.Background(), projectID, []string{"axios"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Empty(t, result.Installed)
		assert.Equal(t, []string{"axios"}, ledger.names())
	})
}

func TestPackageServiceInstallDetected(t *testing.T) {
	projectID := core.MustNewID()

	t.Run("Should route detected packages through both ecosystems", func(t *testing.T) {
		service, ledger, _ := newTestPackageService(t, projectID, &scriptedRunner{})

		files := []pkgmanager.FileInput{
			{Path: "backend/app/apis/orders/__init__.py", Content: "import httpx\n"},
			{Path: "frontend/src/pages/Home.tsx", Content: `import axios from "axios";` + "\n"},
		}
		detection, warnings, err := service.InstallDetected(context.Background(), projectID, files)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, []string{"httpx"}, detection.Python)
		assert.Equal(t, []string{"axios"}, detection.NPM)
		assert.ElementsMatch(t, []string{"httpx", "axios"}, ledger.names())
	})

	t.Run("Should surface install failures as warnings", func(t *testing.T) {
		runner := &scriptedRunner{fail: map[string]bool{"httpx": true}}
		service, ledger, _ := newTestPackageService(t, projectID, runner)

		detection := &pkgmanager.Detection{Python: []string{"httpx"}}
		warnings := service.Install(context.Background(), projectID, detection)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "python install of httpx failed")
		assert.Empty(t, ledger.names())
	})
}

func TestPackageServiceInstalled(t *testing.T) {
	projectID := core.MustNewID()

	t.Run("Should list the recorded ledger", func(t *testing.T) {
		service, _, _ := newTestPackageService(t, projectID, &scriptedRunner{})

		_, err := service.InstallPython(context.Background(), projectID, []string{"requests"})
		require.NoError(t, err)
		rows, err := service.Installed(context.Background(), projectID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "requests", rows[0].Name)
	})

	t.Run("Should skip recording without a ledger", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		cfg := &config.WorkspaceConfig{BaseDir: "/ws", PythonBin: "python3", UvBin: "uv", SkipVenv: true}
		manager := NewManager(fs, &scriptedRunner{}, cfg)
		require.NoError(t, manager.EnsureProject(context.Background(), projectID))
		service := NewPackageService(manager, pkgmanager.NewInstaller(fs, &scriptedRunner{}, "uv"), nil)

		result, err := service.InstallPython(context.Background(), projectID, []string{"requests"})
		require.NoError(t, err)
		assert.True(t, result.Success)

		rows, err := service.Installed(context.Background(), projectID)
		require.NoError(t, err)
		assert.Nil(t, rows)
	})

	t.Run("Should not fail installs when recording fails", func(t *testing.T) {
		service, ledger, _ := newTestPackageService(t, projectID, &scriptedRunner{})
		ledger.recordErr = errors.New("ledger down")

		result, err := service.InstallPython(context.Background(), projectID, []string{"requests"})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Empty(t, ledger.names())
	})
}
