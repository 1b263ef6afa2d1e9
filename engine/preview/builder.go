package preview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/shlex"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/errorlog"
	"github.com/appforge/appforge/engine/genfile"
	"github.com/appforge/appforge/engine/pkgmanager"
	"github.com/appforge/appforge/engine/workspace"
	"github.com/appforge/appforge/pkg/cmdexec"
	"github.com/appforge/appforge/pkg/config"
	"github.com/appforge/appforge/pkg/logger"
)

// FileStore supplies the active generated files staged into a preview build.
type FileStore interface {
	ListActive(ctx context.Context, projectID core.ID) ([]*genfile.File, error)
}

// ErrorRecorder keeps the open build-error set in step with build outcomes:
// failed output is reconciled into records, success closes whatever is open.
type ErrorRecorder interface {
	RecordBuildFailures(ctx context.Context, projectID core.ID, output, frontendDir string) ([]*errorlog.Record, error)
	ResolveOpenBuild(ctx context.Context, projectID core.ID, notes string) (int, error)
}

// successResolution is stamped on open build records once a build passes.
const successResolution = "resolved by successful build"

// Result is the outcome of one preview build.
type Result struct {
	Success        bool     `json:"success"`
	Logs           []string `json:"logs"`
	DistDir        string   `json:"dist_dir,omitempty"`
	FilesProcessed int      `json:"files_processed"`
}

type buildLog []string

func (l *buildLog) addf(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

// Builder stages generated files into the frontend workspace, fills the gaps
// with stubs, runs the bundler, and caches the dist directory of successful
// builds for serving.
type Builder struct {
	files          FileStore
	errors         ErrorRecorder
	workspace      *workspace.Manager
	fs             afero.Fs
	runner         cmdexec.Runner
	npmBin         string
	buildCommand   string
	buildName      string
	buildArgs      []string
	installTimeout time.Duration
	cache          *lru.Cache[core.ID, string]
}

func NewBuilder(
	files FileStore,
	errors ErrorRecorder,
	ws *workspace.Manager,
	fsys afero.Fs,
	runner cmdexec.Runner,
	cfg *config.PreviewConfig,
) (*Builder, error) {
	parts, err := shlex.Split(cfg.BuildCommand)
	if err != nil {
		return nil, fmt.Errorf("invalid build command %q: %w", cfg.BuildCommand, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("build command must not be empty")
	}
	cache, err := lru.New[core.ID, string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create build cache: %w", err)
	}
	return &Builder{
		files:          files,
		errors:         errors,
		workspace:      ws,
		fs:             fsys,
		runner:         runner,
		npmBin:         cfg.NpmBin,
		buildCommand:   cfg.BuildCommand,
		buildName:      parts[0],
		buildArgs:      parts[1:],
		installTimeout: cfg.InstallTimeout,
		cache:          cache,
	}, nil
}

// Build runs the full pipeline for one project: stage, stub, compose the
// manifest, install, bundle. Failed installs and bundler runs return the
// collected logs alongside the error; bundler diagnostics are recorded
// through the error store before surfacing.
func (b *Builder) Build(ctx context.Context, projectID core.ID) (*Result, error) {
	log := make(buildLog, 0, 32)

	files, err := b.files.ListActive(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load generated files: %w", err)
	}
	if len(files) == 0 {
		return nil, core.NewError(
			fmt.Errorf("no generated files for project %s: %w", projectID, core.ErrNotFound),
			"NO_FILES",
			map[string]any{"project_id": projectID},
		)
	}
	log.addf("[DB] Found %d generated files", len(files))

	staged := make(map[string]string, len(files))
	for _, file := range files {
		target, ok := StagePath(file.Path)
		if !ok {
			continue
		}
		staged[target] = file.Content
		log.addf("[NORMALIZE] %s -> %s", file.Path, target)
	}
	if len(staged) == 0 {
		return nil, core.NewError(
			fmt.Errorf("no frontend files for project %s", projectID),
			"NO_FRONTEND_FILES",
			map[string]any{"project_id": projectID},
		)
	}

	if err := b.workspace.EnsureProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}
	frontendDir := b.workspace.FrontendDir(projectID)
	srcDir := filepath.Join(frontendDir, "src")
	log.addf("[SETUP] Staging into %s", frontendDir)

	targets := make([]string, 0, len(staged))
	for target := range staged {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	for _, target := range targets {
		full := filepath.Join(frontendDir, filepath.FromSlash(target))
		if err := b.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(full), err)
		}
		if err := afero.WriteFile(b.fs, full, []byte(staged[target]), 0o644); err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", target, err)
		}
		log.addf("[WRITE] %s", target)
	}

	if err := ensurePageStubs(b.fs, srcDir, &log); err != nil {
		return nil, err
	}
	if err := ensureComponentStubs(b.fs, srcDir, &log); err != nil {
		return nil, err
	}
	if err := writeScaffold(b.fs, frontendDir, projectID, &log); err != nil {
		return nil, err
	}

	detected := b.detectPackages(srcDir, &log)
	existing, _ := afero.ReadFile(b.fs, filepath.Join(frontendDir, "package.json"))
	manifest, err := composeManifest(detected, existing)
	if err != nil {
		return nil, err
	}
	if err := afero.WriteFile(b.fs, filepath.Join(frontendDir, "package.json"), manifest, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write package.json: %w", err)
	}

	log.addf("[NPM] Installing dependencies")
	install, err := b.runner.Run(ctx, cmdexec.Spec{
		Name:    b.npmBin,
		Args:    []string{"install", "--legacy-peer-deps", "--no-audit", "--no-fund"},
		Dir:     frontendDir,
		Timeout: b.installTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run npm install: %w", err)
	}
	if install.TimedOut {
		log.addf("[NPM] Install timed out after %s", b.installTimeout)
		return &Result{Logs: []string(log)}, core.NewError(
			fmt.Errorf("npm install exceeded %s", b.installTimeout), "INSTALL_TIMEOUT", nil)
	}
	if !install.Success() {
		log.addf("[NPM] Install failed: %s", strings.TrimSpace(install.Stderr))
		return &Result{Logs: []string(log)}, core.NewError(
			fmt.Errorf("npm install failed"), "INSTALL_FAILED",
			map[string]any{"stderr": install.Stderr})
	}
	log.addf("[NPM] Dependencies installed")

	log.addf("[BUILD] Running %s", b.buildCommand)
	build, err := b.runner.Run(ctx, cmdexec.Spec{
		Name: b.buildName,
		Args: b.buildArgs,
		Dir:  frontendDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run bundler: %w", err)
	}
	if build.Stdout != "" {
		log.addf("[BUILD] Output:\n%s", build.Stdout)
	}
	if build.Stderr != "" {
		log.addf("[BUILD] Errors:\n%s", build.Stderr)
	}
	if !build.Success() {
		if _, recErr := b.errors.RecordBuildFailures(ctx, projectID, build.Stderr, frontendDir); recErr != nil {
			log.addf("[ERROR] Failed to record build errors: %v", recErr)
		}
		return &Result{Logs: []string(log)}, core.NewError(
			fmt.Errorf("bundler build failed"), "BUILD_FAILED", nil)
	}

	if cleared, clearErr := b.errors.ResolveOpenBuild(ctx, projectID, successResolution); clearErr != nil {
		log.addf("[ERROR] Failed to clear build errors: %v", clearErr)
	} else if cleared > 0 {
		log.addf("[HEAL] Resolved %d open build error(s)", cleared)
	}

	dist := filepath.Join(frontendDir, "dist")
	b.cache.Add(projectID, dist)
	size := humanize.Bytes(distSize(b.fs, dist))
	log.addf("[BUILD] Preview built successfully (%s)", size)
	logger.FromContext(ctx).Info("preview built",
		"project_id", projectID, "files", len(files), "dist", dist, "size", size)
	return &Result{
		Success:        true,
		Logs:           []string(log),
		DistDir:        dist,
		FilesProcessed: len(files),
	}, nil
}

// distSize totals the bundle bytes for the build log. A missing dist reports
// zero; fake runners in tests never produce one.
func distSize(fsys afero.Fs, dir string) uint64 {
	var total uint64
	_ = afero.Walk(fsys, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		total += uint64(info.Size())
		return nil
	})
	return total
}

// detectPackages walks the staged sources rather than the stored rows so the
// manifest covers stubs and files left behind by earlier builds, which the
// bundler will compile either way.
func (b *Builder) detectPackages(srcDir string, log *buildLog) []string {
	var inputs []pkgmanager.FileInput
	_ = afero.Walk(b.fs, srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".ts", ".tsx", ".js", ".jsx":
		default:
			return nil
		}
		content, readErr := afero.ReadFile(b.fs, path)
		if readErr != nil {
			return nil
		}
		inputs = append(inputs, pkgmanager.FileInput{Path: path, Content: string(content)})
		return nil
	})
	detection := pkgmanager.DetectFromFiles(inputs)
	if len(detection.NPM) > 0 {
		log.addf("[AUTO-DETECT] Found NPM packages: %s", strings.Join(detection.NPM, ", "))
	}
	return detection.NPM
}
