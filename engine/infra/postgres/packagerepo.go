package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/pkgmanager"
)

// PackageRepo implements pkgmanager.Recorder, the per-project install ledger.
type PackageRepo struct {
	db DB
}

func NewPackageRepo(db DB) *PackageRepo {
	return &PackageRepo{db: db}
}

func (r *PackageRepo) Record(ctx context.Context, packages []*pkgmanager.InstalledPackage) error {
	for _, pkg := range packages {
		_, err := r.db.Exec(ctx, `
INSERT INTO installed_packages (id, project_id, name, ecosystem, version, installed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (project_id, ecosystem, name) DO UPDATE SET
    version = EXCLUDED.version,
    installed_at = EXCLUDED.installed_at
`, pkg.ID, pkg.ProjectID, pkg.Name, pkg.Ecosystem, pkg.Version, pkg.InstalledAt)
		if err != nil {
			return fmt.Errorf("recording package %q: %w", pkg.Name, err)
		}
	}
	return nil
}

func (r *PackageRepo) ListByProject(ctx context.Context, projectID core.ID) ([]*pkgmanager.InstalledPackage, error) {
	var packages []*pkgmanager.InstalledPackage
	err := pgxscan.Select(ctx, r.db, &packages, `
SELECT id, project_id, name, ecosystem, version, installed_at
FROM installed_packages WHERE project_id = $1
ORDER BY ecosystem, name
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("scanning installed packages: %w", err)
	}
	return packages, nil
}
