package preview

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/errorlog"
	"github.com/appforge/appforge/engine/genfile"
	"github.com/appforge/appforge/engine/workspace"
	"github.com/appforge/appforge/pkg/cmdexec"
	"github.com/appforge/appforge/pkg/config"
)

type fakeFileStore struct {
	files []*genfile.File
	err   error
}

func (f *fakeFileStore) ListActive(_ context.Context, _ core.ID) ([]*genfile.File, error) {
	return f.files, f.err
}

type recordedFailure struct {
	projectID   core.ID
	output      string
	frontendDir string
}

type fakeErrorRecorder struct {
	calls    []recordedFailure
	err      error
	cleared  []string
	openLeft int
}

func (f *fakeErrorRecorder) RecordBuildFailures(
	_ context.Context, projectID core.ID, output, frontendDir string,
) ([]*errorlog.Record, error) {
	f.calls = append(f.calls, recordedFailure{projectID: projectID, output: output, frontendDir: frontendDir})
	return nil, f.err
}

func (f *fakeErrorRecorder) ResolveOpenBuild(_ context.Context, _ core.ID, notes string) (int, error) {
	f.cleared = append(f.cleared, notes)
	return f.openLeft, nil
}

type scriptedRunner struct {
	mu      sync.Mutex
	specs   []cmdexec.Spec
	results map[string]*cmdexec.Result
}

func (r *scriptedRunner) Run(_ context.Context, spec cmdexec.Spec) (*cmdexec.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = append(r.specs, spec)
	key := spec.Name + " " + strings.Join(spec.Args, " ")
	for prefix, result := range r.results {
		if strings.HasPrefix(key, prefix) {
			return result, nil
		}
	}
	return &cmdexec.Result{ExitCode: 0}, nil
}

func newTestBuilder(t *testing.T, store *fakeFileStore, recorder *fakeErrorRecorder) (*Builder, afero.Fs, *scriptedRunner) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	runner := &scriptedRunner{results: map[string]*cmdexec.Result{}}
	ws := workspace.NewManager(fsys, runner, &config.WorkspaceConfig{
		BaseDir:   "/ws",
		PythonBin: "python3",
		UvBin:     "uv",
		SkipVenv:  true,
	})
	builder, err := NewBuilder(store, recorder, ws, fsys, runner, &config.PreviewConfig{
		NpmBin:         "npm",
		InstallTimeout: 120 * time.Second,
		BuildCommand:   "npm run build",
		CacheSize:      8,
	})
	require.NoError(t, err)
	return builder, fsys, runner
}

func appFile(path, content string) *genfile.File {
	return &genfile.File{ID: core.ID("f-" + path), ProjectID: "p1", Path: path, Content: content, IsActive: true}
}

func TestBuilderBuild(t *testing.T) {
	ctx := context.Background()
	projectID := core.ID("p1")

	t.Run("Should stage, install and bundle successfully", func(t *testing.T) {
		store := &fakeFileStore{files: []*genfile.File{
			appFile("frontend/src/App.tsx", "import axios from 'axios';\nexport default function App() { return null; }"),
			appFile("src/pages/Home.tsx", "export default function Home() { return null; }"),
			appFile("backend/app/apis/orders/__init__.py", "import fastapi"),
		}}
		recorder := &fakeErrorRecorder{}
		builder, fsys, runner := newTestBuilder(t, store, recorder)

		result, err := builder.Build(ctx, projectID)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 3, result.FilesProcessed)
		assert.Equal(t, filepath.Join("/ws", "p1", "frontend", "dist"), result.DistDir)
		assert.True(t, builder.Built(projectID))

		require.Len(t, runner.specs, 2)
		install := runner.specs[0]
		assert.Equal(t, "npm", install.Name)
		assert.Equal(t, []string{"install", "--legacy-peer-deps", "--no-audit", "--no-fund"}, install.Args)
		assert.Equal(t, filepath.Join("/ws", "p1", "frontend"), install.Dir)
		assert.Equal(t, 120*time.Second, install.Timeout)
		build := runner.specs[1]
		assert.Equal(t, "npm", build.Name)
		assert.Equal(t, []string{"run", "build"}, build.Args)

		staged, readErr := afero.ReadFile(fsys, filepath.Join("/ws", "p1", "frontend", "src", "App.tsx"))
		require.NoError(t, readErr)
		assert.Contains(t, string(staged), "axios")

		manifest, readErr := afero.ReadFile(fsys, filepath.Join("/ws", "p1", "frontend", "package.json"))
		require.NoError(t, readErr)
		assert.Contains(t, string(manifest), `"axios": "latest"`)
		assert.Contains(t, string(manifest), `"react": "^18.3.1"`)

		backendStaged, statErr := afero.Exists(fsys, filepath.Join("/ws", "p1", "frontend", "src", "backend"))
		require.NoError(t, statErr)
		assert.False(t, backendStaged)
	})

	t.Run("Should close open build errors after a successful build", func(t *testing.T) {
		store := &fakeFileStore{files: []*genfile.File{appFile("src/App.tsx", "export default () => null;")}}
		recorder := &fakeErrorRecorder{openLeft: 2}
		builder, _, _ := newTestBuilder(t, store, recorder)

		result, err := builder.Build(ctx, projectID)
		require.NoError(t, err)
		require.Len(t, recorder.cleared, 1)
		assert.Equal(t, successResolution, recorder.cleared[0])
		assert.Empty(t, recorder.calls)
		assert.Contains(t, strings.Join(result.Logs, "\n"), "Resolved 2 open build error(s)")
	})

	t.Run("Should report not found when the project has no files", func(t *testing.T) {
		builder, _, _ := newTestBuilder(t, &fakeFileStore{}, &fakeErrorRecorder{})
		result, err := builder.Build(ctx, projectID)
		assert.Nil(t, result)
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
		var coded *core.Error
		require.True(t, errors.As(err, &coded))
		assert.Equal(t, "NO_FILES", coded.Code)
	})

	t.Run("Should reject projects with only backend files", func(t *testing.T) {
		store := &fakeFileStore{files: []*genfile.File{
			appFile("backend/app/apis/orders/__init__.py", "import fastapi"),
		}}
		builder, _, _ := newTestBuilder(t, store, &fakeErrorRecorder{})
		_, err := builder.Build(ctx, projectID)
		var coded *core.Error
		require.True(t, errors.As(err, &coded))
		assert.Equal(t, "NO_FRONTEND_FILES", coded.Code)
	})

	t.Run("Should surface install failures with the collected logs", func(t *testing.T) {
		store := &fakeFileStore{files: []*genfile.File{appFile("src/App.tsx", "export default () => null;")}}
		recorder := &fakeErrorRecorder{}
		builder, _, runner := newTestBuilder(t, store, recorder)
		runner.results["npm install"] = &cmdexec.Result{ExitCode: 1, Stderr: "ERESOLVE unable to resolve dependency tree"}

		result, err := builder.Build(ctx, projectID)
		require.Error(t, err)
		var coded *core.Error
		require.True(t, errors.As(err, &coded))
		assert.Equal(t, "INSTALL_FAILED", coded.Code)
		require.NotNil(t, result)
		assert.False(t, result.Success)
		assert.Contains(t, strings.Join(result.Logs, "\n"), "ERESOLVE")
		assert.Empty(t, recorder.calls)
	})

	t.Run("Should treat an install timeout as fatal", func(t *testing.T) {
		store := &fakeFileStore{files: []*genfile.File{appFile("src/App.tsx", "export default () => null;")}}
		builder, _, runner := newTestBuilder(t, store, &fakeErrorRecorder{})
		runner.results["npm install"] = &cmdexec.Result{ExitCode: -1, TimedOut: true}

		result, err := builder.Build(ctx, projectID)
		require.Error(t, err)
		var coded *core.Error
		require.True(t, errors.As(err, &coded))
		assert.Equal(t, "INSTALL_TIMEOUT", coded.Code)
		require.NotNil(t, result)
		assert.False(t, builder.Built(projectID))
	})

	t.Run("Should record parsed diagnostics when the bundler fails", func(t *testing.T) {
		store := &fakeFileStore{files: []*genfile.File{appFile("src/App.tsx", "const broken = {")}}
		recorder := &fakeErrorRecorder{}
		builder, _, runner := newTestBuilder(t, store, recorder)
		stderr := `/ws/p1/frontend/src/App.tsx:1:17: ERROR: Expected "}" but found end of file`
		runner.results["npm run build"] = &cmdexec.Result{ExitCode: 1, Stderr: stderr}

		result, err := builder.Build(ctx, projectID)
		require.Error(t, err)
		var coded *core.Error
		require.True(t, errors.As(err, &coded))
		assert.Equal(t, "BUILD_FAILED", coded.Code)
		require.Len(t, recorder.calls, 1)
		assert.Equal(t, projectID, recorder.calls[0].projectID)
		assert.Equal(t, stderr, recorder.calls[0].output)
		assert.Equal(t, filepath.Join("/ws", "p1", "frontend"), recorder.calls[0].frontendDir)
		assert.Contains(t, strings.Join(result.Logs, "\n"), "[BUILD] Errors:")
		assert.False(t, builder.Built(projectID))
	})

	t.Run("Should reject an unparseable build command", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		runner := &scriptedRunner{}
		ws := workspace.NewManager(fsys, runner, &config.WorkspaceConfig{
			BaseDir: "/ws", PythonBin: "python3", UvBin: "uv", SkipVenv: true,
		})
		_, err := NewBuilder(&fakeFileStore{}, &fakeErrorRecorder{}, ws, fsys, runner, &config.PreviewConfig{
			NpmBin:         "npm",
			InstallTimeout: time.Second,
			BuildCommand:   `npm run "build`,
			CacheSize:      8,
		})
		require.Error(t, err)
	})
}
