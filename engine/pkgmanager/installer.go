package pkgmanager

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/appforge/appforge/pkg/cmdexec"
	"github.com/appforge/appforge/pkg/logger"
)

const (
	pythonInstallTimeout = 30 * time.Second
)

// Installer applies detected packages to project manifests and, for python,
// installs them into the project virtualenv. Install failures are reported
// in the result, never as an error, so callers can degrade to a warning.
type Installer struct {
	fs     afero.Fs
	runner cmdexec.Runner
	uvBin  string
}

func NewInstaller(fs afero.Fs, runner cmdexec.Runner, uvBin string) *Installer {
	if uvBin == "" {
		uvBin = "uv"
	}
	return &Installer{fs: fs, runner: runner, uvBin: uvBin}
}

// InstallResult reports the outcome of an install batch.
type InstallResult struct {
	Success   bool            `json:"success"`
	Installed []string        `json:"installed,omitempty"`
	Failed    []FailedInstall `json:"failed,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type FailedInstall struct {
	Package string `json:"package"`
	Error   string `json:"error"`
}

// InstallPython merges packages into the backend pyproject.toml app group and
// installs each one into the project virtualenv via uv.
func (i *Installer) InstallPython(ctx context.Context, backendDir string, packages []string) (*InstallResult, error) {
	log := logger.FromContext(ctx)
	result := &InstallResult{Success: true}
	if len(packages) == 0 {
		result.Message = "no packages requested"
		return result, nil
	}

	if err := i.mergePyproject(backendDir, packages); err != nil {
		log.Warn("failed to update pyproject.toml", "dir", backendDir, "error", err)
	}

	uv, env := i.resolveUv(backendDir)
	for _, pkg := range packages {
		res, err := i.runner.Run(ctx, cmdexec.Spec{
			Name:    uv,
			Args:    []string{"pip", "install", pkg},
			Dir:     backendDir,
			Env:     env,
			Timeout: pythonInstallTimeout,
		})
		switch {
		case err != nil:
			result.Failed = append(result.Failed, FailedInstall{Package: pkg, Error: err.Error()})
		case res.TimedOut:
			result.Failed = append(result.Failed, FailedInstall{
				Package: pkg,
				Error:   fmt.Sprintf("install timed out after %s", pythonInstallTimeout),
			})
		case res.ExitCode != 0:
			result.Failed = append(result.Failed, FailedInstall{Package: pkg, Error: installError(res)})
		default:
			result.Installed = append(result.Installed, pkg)
		}
	}
	result.Success = len(result.Failed) == 0
	if !result.Success {
		result.Message = fmt.Sprintf("%d of %d packages failed to install", len(result.Failed), len(packages))
		log.Warn("python package install finished with failures",
			"dir", backendDir, "installed", len(result.Installed), "failed", len(result.Failed))
	}
	return result, nil
}

// InstallNode records packages in the frontend package.json with the version
// spec "latest". The actual npm install happens on the next preview build.
func (i *Installer) InstallNode(ctx context.Context, frontendDir string, packages []string) (*InstallResult, error) {
	log := logger.FromContext(ctx)
	result := &InstallResult{Success: true}
	if len(packages) == 0 {
		result.Message = "no packages requested"
		return result, nil
	}

	manifestPath := filepath.Join(frontendDir, "package.json")
	data, err := afero.ReadFile(i.fs, manifestPath)
	if err != nil {
		result.Success = false
		result.Message = fmt.Sprintf("package.json not found in %s", frontendDir)
		log.Warn("failed to read package.json", "path", manifestPath, "error", err)
		return result, nil
	}
	updated, added, err := AddPackageJSONDependencies(data, packages)
	if err != nil {
		result.Success = false
		result.Message = err.Error()
		return result, nil
	}
	if len(added) > 0 {
		if err := afero.WriteFile(i.fs, manifestPath, updated, 0o644); err != nil {
			result.Success = false
			result.Message = fmt.Sprintf("failed to write package.json: %v", err)
			return result, nil
		}
	}
	result.Installed = added
	result.Message = "dependencies recorded; packages install during the next preview build"
	return result, nil
}

func (i *Installer) mergePyproject(backendDir string, packages []string) error {
	manifestPath := filepath.Join(backendDir, "pyproject.toml")
	data, err := afero.ReadFile(i.fs, manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read pyproject.toml: %w", err)
	}
	merged, found := MergeAppGroup(string(data), packages)
	if !found {
		return fmt.Errorf("app dependency group not found in %s", manifestPath)
	}
	if merged == string(data) {
		return nil
	}
	if err := afero.WriteFile(i.fs, manifestPath, []byte(merged), 0o644); err != nil {
		return fmt.Errorf("failed to write pyproject.toml: %w", err)
	}
	return nil
}

// resolveUv prefers the uv binary inside the project virtualenv so installs
// land in the right environment, falling back to the configured binary.
func (i *Installer) resolveUv(backendDir string) (string, map[string]string) {
	venvDir := filepath.Join(backendDir, ".venv")
	venvUv := filepath.Join(venvDir, "bin", "uv")
	if ok, _ := afero.Exists(i.fs, venvUv); ok {
		return venvUv, map[string]string{"VIRTUAL_ENV": venvDir}
	}
	if ok, _ := afero.DirExists(i.fs, venvDir); ok {
		return i.uvBin, map[string]string{"VIRTUAL_ENV": venvDir}
	}
	return i.uvBin, nil
}

func installError(res *cmdexec.Result) string {
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(res.Stdout)
	}
	if msg == "" {
		return fmt.Sprintf("exit code %d", res.ExitCode)
	}
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return fmt.Sprintf("exit code %d: %s", res.ExitCode, msg)
}
