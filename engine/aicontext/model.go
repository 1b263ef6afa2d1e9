package aicontext

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dario.cat/mergo"

	"github.com/appforge/appforge/engine/core"
)

const maxRecentErrors = 10

// Data is the context_data bag persisted per project. It is what the agent
// remembers between sessions.
type Data struct {
	CurrentPhase   string         `json:"current_phase,omitempty"`
	CurrentTask    string         `json:"current_task,omitempty"`
	FilesGenerated []string       `json:"files_generated,omitempty"`
	TasksCompleted []string       `json:"tasks_completed,omitempty"`
	RecentErrors   []string       `json:"recent_errors,omitempty"`
	AIMemory       map[string]any `json:"ai_memory,omitempty"`
}

// Empty reports whether the bag carries nothing worth rendering.
func (d Data) Empty() bool {
	return d.CurrentPhase == "" && d.CurrentTask == "" &&
		len(d.FilesGenerated) == 0 && len(d.TasksCompleted) == 0 &&
		len(d.RecentErrors) == 0 && len(d.AIMemory) == 0
}

// Merge folds update into d. Lists of files and tasks are set-unioned,
// recent errors are concatenated keeping the newest ten, scalar fields
// overwrite when the update sets them, and ai_memory entries from the
// update win over stored ones.
func (d *Data) Merge(update Data) error {
	if update.CurrentPhase != "" {
		d.CurrentPhase = update.CurrentPhase
	}
	if update.CurrentTask != "" {
		d.CurrentTask = update.CurrentTask
	}
	if len(update.FilesGenerated) > 0 {
		d.FilesGenerated = unionStrings(d.FilesGenerated, update.FilesGenerated)
	}
	if len(update.TasksCompleted) > 0 {
		d.TasksCompleted = unionStrings(d.TasksCompleted, update.TasksCompleted)
	}
	if len(update.RecentErrors) > 0 {
		merged := make([]string, 0, len(d.RecentErrors)+len(update.RecentErrors))
		merged = append(merged, d.RecentErrors...)
		merged = append(merged, update.RecentErrors...)
		if len(merged) > maxRecentErrors {
			merged = merged[len(merged)-maxRecentErrors:]
		}
		d.RecentErrors = merged
	}
	if len(update.AIMemory) > 0 {
		if d.AIMemory == nil {
			d.AIMemory = make(map[string]any, len(update.AIMemory))
		}
		if err := mergo.Merge(&d.AIMemory, update.AIMemory, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge ai_memory: %w", err)
		}
	}
	return nil
}

func unionStrings(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, lists := range [][]string{existing, incoming} {
		for _, s := range lists {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// AgentContext is the persisted per-project agent memory. Exactly one row
// per project, upserted on every update.
type AgentContext struct {
	ProjectID core.ID   `db:"project_id,pk" json:"project_id"`
	SessionID string    `db:"session_id" json:"session_id,omitempty"`
	Data      Data      `db:"context_data" json:"context_data"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Repository interface {
	// Get returns core.ErrNotFound when the project has no stored context.
	Get(ctx context.Context, projectID core.ID) (*AgentContext, error)
	Upsert(ctx context.Context, record *AgentContext) error
	Delete(ctx context.Context, projectID core.ID) error
}
