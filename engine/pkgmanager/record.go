package pkgmanager

import (
	"context"
	"time"

	"github.com/appforge/appforge/engine/core"
)

const (
	EcosystemPip = "pip"
	EcosystemNPM = "npm"
)

// InstalledPackage is one recorded dependency of a project. The ledger is
// what survives a workspace rebuild; manifests are regenerated from it.
type InstalledPackage struct {
	ID          core.ID   `db:"id,pk" json:"id"`
	ProjectID   core.ID   `db:"project_id" json:"project_id"`
	Name        string    `db:"name" json:"name"`
	Ecosystem   string    `db:"ecosystem" json:"ecosystem"`
	Version     string    `db:"version" json:"version"`
	InstalledAt time.Time `db:"installed_at" json:"installed_at"`
}

// Recorder persists the install ledger. Recording an already-known package
// refreshes its row, so install retries stay idempotent.
type Recorder interface {
	Record(ctx context.Context, packages []*InstalledPackage) error
	ListByProject(ctx context.Context, projectID core.ID) ([]*InstalledPackage, error)
}
