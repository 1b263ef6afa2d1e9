package errorlog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/pkg/logger"
)

// Service owns the error ledger both channels write into: parsed build
// failures and runtime reports from the preview page.
type Service struct {
	repo Repository
	fs   afero.Fs
}

func NewService(repo Repository, fs afero.Fs) *Service {
	return &Service{repo: repo, fs: fs}
}

// ReportInput is the runtime-channel payload posted by the preview page.
type ReportInput struct {
	ProjectID    core.ID `json:"project_id" validate:"required"`
	ErrorType    string  `json:"error_type"`
	Message      string  `json:"message" validate:"required"`
	StackTrace   string  `json:"stack_trace"`
	FilePath     string  `json:"file_path"`
	LineNumber   int     `json:"line_number"`
	ColumnNumber int     `json:"column_number"`
}

// Report inserts one runtime error record.
func (s *Service) Report(ctx context.Context, input *ReportInput) (*Record, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, core.NewError(fmt.Errorf("message is required"), "INVALID_INPUT", nil)
	}
	kind := Kind(input.ErrorType)
	if !kind.Valid() {
		kind = KindRuntime
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate error ID: %w", err)
	}
	var recordCtx map[string]any
	if input.ColumnNumber > 0 {
		recordCtx = map[string]any{"column_number": input.ColumnNumber}
	}
	now := time.Now().UTC()
	record := &Record{
		ID:         id,
		ProjectID:  input.ProjectID,
		Kind:       kind,
		Message:    input.Message,
		StackTrace: input.StackTrace,
		FilePath:   input.FilePath,
		LineNumber: input.LineNumber,
		Context:    recordCtx,
		Status:     StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to insert error record: %w", err)
	}
	logger.FromContext(ctx).Debug("runtime error recorded",
		"project_id", input.ProjectID, "error_id", id, "message", input.Message)
	return record, nil
}

// supersededNotes marks open build records whose diagnostic vanished from a
// later failed build without a healing pass claiming the fix.
const supersededNotes = "superseded by rebuild"

type diagKey struct {
	file    string
	message string
}

// RecordBuildFailures parses bundler output and reconciles the open build
// records against it. Diagnostics already open keep their record (and their
// heal attempt count), new ones are inserted with a snippet from the frontend
// workspace, and open records whose diagnostic vanished are resolved. The
// returned slice is the open set for this build.
func (s *Service) RecordBuildFailures(ctx context.Context, projectID core.ID, output, frontendDir string) ([]*Record, error) {
	parsed := ParseBuildOutput(output)
	if len(parsed) == 0 {
		return nil, nil
	}
	open, err := s.repo.ListByProject(ctx, projectID, StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list open errors: %w", err)
	}
	existing := make(map[diagKey]*Record)
	for _, rec := range open {
		if rec.Kind == KindBuild {
			existing[diagKey{rec.FilePath, rec.Message}] = rec
		}
	}

	records := make([]*Record, 0, len(parsed))
	seen := make(map[diagKey]bool, len(parsed))
	inserted := 0
	now := time.Now().UTC()
	for _, diag := range parsed {
		key := diagKey{diag.File, fmt.Sprintf("%s: %s", diag.Code, diag.Message)}
		if seen[key] {
			continue
		}
		seen[key] = true
		if rec, ok := existing[key]; ok {
			records = append(records, rec)
			continue
		}
		id, err := core.NewID()
		if err != nil {
			return records, fmt.Errorf("failed to generate error ID: %w", err)
		}
		record := &Record{
			ID:          id,
			ProjectID:   projectID,
			Kind:        KindBuild,
			Message:     key.message,
			StackTrace:  output,
			FilePath:    diag.File,
			LineNumber:  diag.Line,
			CodeSnippet: snippetAround(s.fs, filepath.Join(frontendDir, diag.File), diag.Line),
			Context:     map[string]any{"error_code": diag.Code},
			Status:      StatusOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, record); err != nil {
			return records, fmt.Errorf("failed to insert build error: %w", err)
		}
		records = append(records, record)
		inserted++
	}

	superseded := 0
	for key, rec := range existing {
		if seen[key] {
			continue
		}
		if _, err := s.repo.Resolve(ctx, rec.ID, supersededNotes); err != nil {
			return records, fmt.Errorf("failed to supersede error %s: %w", rec.ID, err)
		}
		superseded++
	}
	logger.FromContext(ctx).Info("build errors recorded", "project_id", projectID,
		"open", len(records), "new", inserted, "superseded", superseded)
	return records, nil
}

// ResolveOpenBuild resolves every open build record for the project. A
// successful build proves the previous diagnostics are gone.
func (s *Service) ResolveOpenBuild(ctx context.Context, projectID core.ID, notes string) (int, error) {
	open, err := s.repo.ListByProject(ctx, projectID, StatusOpen)
	if err != nil {
		return 0, fmt.Errorf("failed to list open errors: %w", err)
	}
	resolved := 0
	for _, rec := range open {
		if rec.Kind != KindBuild {
			continue
		}
		if _, err := s.repo.Resolve(ctx, rec.ID, notes); err != nil {
			return resolved, fmt.Errorf("failed to resolve error %s: %w", rec.ID, err)
		}
		resolved++
	}
	if resolved > 0 {
		logger.FromContext(ctx).Info("open build errors resolved",
			"project_id", projectID, "count", resolved)
	}
	return resolved, nil
}

// List returns records newest first, optionally only open ones.
func (s *Service) List(ctx context.Context, projectID core.ID, onlyOpen bool) ([]*Record, error) {
	status := Status("")
	if onlyOpen {
		status = StatusOpen
	}
	return s.repo.ListByProject(ctx, projectID, status)
}

func (s *Service) Get(ctx context.Context, id core.ID) (*Record, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Resolve(ctx context.Context, id core.ID, notes string) (*Record, error) {
	return s.repo.Resolve(ctx, id, notes)
}

func (s *Service) IncrementHealAttempts(ctx context.Context, id core.ID) error {
	return s.repo.IncrementHealAttempts(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id core.ID) error {
	return s.repo.Delete(ctx, id)
}
