package genfile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/pkgmanager"
	"github.com/appforge/appforge/engine/validate"
	"github.com/appforge/appforge/pkg/logger"
)

// CodeFixer asks the model for a corrected whole-file replacement when a
// generated file fails validation.
type CodeFixer interface {
	FixCode(ctx context.Context, language validate.Language, content string, issues []validate.Issue) (string, error)
}

// DependencyInstaller detects and installs the packages a set of files needs.
type DependencyInstaller interface {
	InstallDetected(ctx context.Context, projectID core.ID, files []pkgmanager.FileInput) (*pkgmanager.Detection, []string, error)
}

// WorkspaceWriter persists a generated file into the on-disk workspace.
type WorkspaceWriter interface {
	WriteGeneratedFile(ctx context.Context, projectID core.ID, path, content string) error
}

// Service runs the file pipeline: validate, heal once, persist, materialise,
// detect and install packages.
type Service struct {
	repo      Repository
	fixer     CodeFixer
	installer DependencyInstaller
	workspace WorkspaceWriter
}

func NewService(repo Repository, fixer CodeFixer, installer DependencyInstaller, workspace WorkspaceWriter) *Service {
	return &Service{repo: repo, fixer: fixer, installer: installer, workspace: workspace}
}

// SetFixer installs the code fixer after construction. The orchestrator owns
// the model client and is wired later than the file service.
func (s *Service) SetFixer(fixer CodeFixer) {
	s.fixer = fixer
}

type CreateInput struct {
	ProjectID   core.ID `json:"project_id" validate:"required"`
	Path        string  `json:"file_path" validate:"required"`
	Content     string  `json:"file_content"`
	Language    string  `json:"file_type"`
	Description string  `json:"description"`
}

type UpdateInput struct {
	FileID      core.ID `json:"file_id"`
	ProjectID   core.ID `json:"project_id"`
	Path        string  `json:"file_path"`
	Content     string  `json:"file_content"`
	Description string  `json:"description"`
}

// WriteReport is the outcome of a create or update.
type WriteReport struct {
	File     *File                 `json:"file"`
	Healed   bool                  `json:"healed,omitempty"`
	Packages *pkgmanager.Detection `json:"packages,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
}

// Create validates the content (healing once through the model when wired),
// inserts the active file, writes it into the workspace and installs any
// detected packages. Install and workspace failures degrade to warnings.
func (s *Service) Create(ctx context.Context, input *CreateInput) (*WriteReport, error) {
	filePath := NormalizePath(input.Path)
	if filePath == "" {
		return nil, core.NewError(fmt.Errorf("file_path is required"), "INVALID_INPUT", nil)
	}
	content, healed, err := s.validateAndHeal(ctx, filePath, input.Content)
	if err != nil {
		return nil, err
	}
	language := input.Language
	if language == "" {
		language = LanguageForPath(filePath)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate file ID: %w", err)
	}
	now := time.Now().UTC()
	file := &File{
		ID:          id,
		ProjectID:   input.ProjectID,
		Path:        filePath,
		Content:     content,
		Language:    language,
		Description: input.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, file); err != nil {
		if core.IsConflict(err) {
			return nil, core.NewError(
				fmt.Errorf("file already exists at %s", filePath),
				"FILE_EXISTS",
				map[string]any{"file_path": filePath},
			)
		}
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	report := &WriteReport{File: file, Healed: healed}
	s.materialise(ctx, report)
	s.installPackages(ctx, report)
	return report, nil
}

// Update validates and replaces the content of an existing active file,
// addressed by file id or by (project, path).
func (s *Service) Update(ctx context.Context, input *UpdateInput) (*WriteReport, error) {
	file, err := s.resolve(ctx, input)
	if err != nil {
		return nil, err
	}
	if issues := validationIssues(file.Path, input.Content); len(issues) > 0 {
		return nil, validationError(issues)
	}
	file.Content = input.Content
	if input.Description != "" {
		file.Description = input.Description
	}
	file.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to update file: %w", err)
	}
	report := &WriteReport{File: file}
	s.materialise(ctx, report)
	s.installPackages(ctx, report)
	return report, nil
}

// Read returns one active file by path, or all active files when path is
// empty. Returns core.ErrNotFound when the project has no files.
func (s *Service) Read(ctx context.Context, projectID core.ID, path string) ([]*File, error) {
	if path != "" {
		file, err := s.repo.GetByPath(ctx, projectID, NormalizePath(path))
		if err != nil {
			return nil, err
		}
		return []*File{file}, nil
	}
	files, err := s.repo.ListActive(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files for project %s: %w", projectID, core.ErrNotFound)
	}
	return files, nil
}

func (s *Service) Search(ctx context.Context, projectID core.ID, query string) ([]*File, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.NewError(fmt.Errorf("query is required"), "INVALID_INPUT", nil)
	}
	return s.repo.Search(ctx, projectID, query)
}

// Delete soft-deletes by id or by (project, path).
func (s *Service) Delete(ctx context.Context, input *UpdateInput) (*File, error) {
	file, err := s.resolve(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SoftDelete(ctx, file.ID); err != nil {
		return nil, err
	}
	file.IsActive = false
	return file, nil
}

func (s *Service) resolve(ctx context.Context, input *UpdateInput) (*File, error) {
	switch {
	case !input.FileID.IsZero():
		return s.repo.GetByID(ctx, input.FileID)
	case !input.ProjectID.IsZero() && input.Path != "":
		return s.repo.GetByPath(ctx, input.ProjectID, NormalizePath(input.Path))
	default:
		return nil, core.NewError(
			fmt.Errorf("file_id or project_id and file_path are required"), "INVALID_INPUT", nil)
	}
}

// validateAndHeal returns the content to persist. On validation failure it
// asks the fixer for one whole-file replacement; if the fix still fails the
// original issues surface as a VALIDATION_FAILED error.
func (s *Service) validateAndHeal(ctx context.Context, path, content string) (string, bool, error) {
	issues := validationIssues(path, content)
	if len(issues) == 0 {
		return content, false, nil
	}
	log := logger.FromContext(ctx)
	if s.fixer != nil {
		log.Info("attempting auto-fix of invalid file", "path", path, "issues", len(issues))
		fixed, err := s.fixer.FixCode(ctx, validate.LanguageForPath(path), content, issues)
		if err != nil {
			log.Warn("auto-fix call failed", "path", path, "error", err)
		} else if fixed != "" {
			if remaining := validationIssues(path, fixed); len(remaining) == 0 {
				return fixed, true, nil
			}
			log.Warn("auto-fix produced invalid content", "path", path)
		}
	}
	return "", false, validationError(issues)
}

func (s *Service) materialise(ctx context.Context, report *WriteReport) {
	if s.workspace == nil {
		return
	}
	file := report.File
	if err := s.workspace.WriteGeneratedFile(ctx, file.ProjectID, file.Path, file.Content); err != nil {
		logger.FromContext(ctx).Warn("failed to write file into workspace",
			"project_id", file.ProjectID, "path", file.Path, "error", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("workspace write failed: %v", err))
	}
}

func (s *Service) installPackages(ctx context.Context, report *WriteReport) {
	if s.installer == nil {
		return
	}
	file := report.File
	detection, warnings, err := s.installer.InstallDetected(ctx, file.ProjectID,
		[]pkgmanager.FileInput{{Path: file.Path, Content: file.Content}})
	if err != nil {
		logger.FromContext(ctx).Warn("package install failed",
			"project_id", file.ProjectID, "path", file.Path, "error", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("package install failed: %v", err))
		return
	}
	report.Packages = detection
	report.Warnings = append(report.Warnings, warnings...)
}

func validationIssues(path, content string) []validate.Issue {
	language := validate.LanguageForPath(path)
	if language == "" {
		return nil
	}
	result := validate.Source(language, content)
	if result.Valid {
		return nil
	}
	return result.Errors
}

func validationError(issues []validate.Issue) error {
	messages := make([]string, 0, len(issues))
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return core.NewError(
		fmt.Errorf("validation failed: %s", strings.Join(messages, "; ")),
		"VALIDATION_FAILED",
		map[string]any{"errors": issues},
	)
}
