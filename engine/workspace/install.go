package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/pkgmanager"
	"github.com/appforge/appforge/pkg/logger"
)

// PackageService combines detection with per-ecosystem installs against the
// project workspace, recording successful installs into the ledger. It
// satisfies the file service's installer seam and the tool installer seam.
type PackageService struct {
	manager   *Manager
	installer *pkgmanager.Installer
	ledger    pkgmanager.Recorder
}

// NewPackageService builds the install layer. A nil ledger skips recording.
func NewPackageService(manager *Manager, installer *pkgmanager.Installer, ledger pkgmanager.Recorder) *PackageService {
	return &PackageService{manager: manager, installer: installer, ledger: ledger}
}

// InstallPython installs packages into the project's backend workspace and
// virtualenv.
func (p *PackageService) InstallPython(ctx context.Context, projectID core.ID, packages []string) (*pkgmanager.InstallResult, error) {
	result, err := p.installer.InstallPython(ctx, p.manager.BackendDir(projectID), packages)
	if err == nil {
		p.record(ctx, projectID, pkgmanager.EcosystemPip, result.Installed)
	}
	return result, err
}

// InstallNode installs packages into the project's frontend workspace.
func (p *PackageService) InstallNode(ctx context.Context, projectID core.ID, packages []string) (*pkgmanager.InstallResult, error) {
	result, err := p.installer.InstallNode(ctx, p.manager.FrontendDir(projectID), packages)
	if err == nil {
		p.record(ctx, projectID, pkgmanager.EcosystemNPM, result.Installed)
	}
	return result, err
}

// InstallDetected detects packages across the given files and applies them to
// the workspace. Install failures come back as warnings, never errors.
func (p *PackageService) InstallDetected(ctx context.Context, projectID core.ID, files []pkgmanager.FileInput) (*pkgmanager.Detection, []string, error) {
	detection := pkgmanager.DetectFromFiles(files)
	warnings := p.Install(ctx, projectID, detection)
	return detection, warnings, nil
}

// Install applies an already-computed detection to the workspace manifests
// and virtualenv.
func (p *PackageService) Install(ctx context.Context, projectID core.ID, detection *pkgmanager.Detection) []string {
	var warnings []string
	if len(detection.Python) > 0 {
		result, err := p.InstallPython(ctx, projectID, detection.Python)
		warnings = append(warnings, installWarnings("python", result, err)...)
	}
	if len(detection.NPM) > 0 {
		result, err := p.InstallNode(ctx, projectID, detection.NPM)
		warnings = append(warnings, installWarnings("npm", result, err)...)
	}
	return warnings
}

// Installed returns the project's recorded install ledger.
func (p *PackageService) Installed(ctx context.Context, projectID core.ID) ([]*pkgmanager.InstalledPackage, error) {
	if p.ledger == nil {
		return nil, nil
	}
	return p.ledger.ListByProject(ctx, projectID)
}

// record refreshes the ledger rows for the named packages. Ledger failures
// never fail an install.
func (p *PackageService) record(ctx context.Context, projectID core.ID, ecosystem string, names []string) {
	if p.ledger == nil || len(names) == 0 {
		return
	}
	now := time.Now().UTC()
	rows := make([]*pkgmanager.InstalledPackage, 0, len(names))
	for _, name := range names {
		id, err := core.NewID()
		if err != nil {
			logger.FromContext(ctx).Error("failed to generate package id", "package", name, "error", err)
			return
		}
		rows = append(rows, &pkgmanager.InstalledPackage{
			ID:          id,
			ProjectID:   projectID,
			Name:        name,
			Ecosystem:   ecosystem,
			InstalledAt: now,
		})
	}
	if err := p.ledger.Record(ctx, rows); err != nil {
		logger.FromContext(ctx).Error("failed to record installed packages",
			"project_id", projectID, "ecosystem", ecosystem, "error", err)
	}
}

func installWarnings(ecosystem string, result *pkgmanager.InstallResult, err error) []string {
	if err != nil {
		return []string{fmt.Sprintf("%s install failed: %v", ecosystem, err)}
	}
	var warnings []string
	for _, failed := range result.Failed {
		warnings = append(warnings, fmt.Sprintf("%s install of %s failed: %s", ecosystem, failed.Package, failed.Error))
	}
	if !result.Success && len(result.Failed) == 0 && result.Message != "" {
		warnings = append(warnings, fmt.Sprintf("%s install: %s", ecosystem, result.Message))
	}
	return warnings
}
