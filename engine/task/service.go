package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/pkg/logger"
)

// Service owns task CRUD and comment bookkeeping.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateInput struct {
	ProjectID   core.ID        `json:"project_id" validate:"required"`
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	Metadata    map[string]any `json:"metadata"`
}

type UpdateInput struct {
	TaskID      core.ID  `json:"task_id" validate:"required"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
}

// Create inserts a task with defaults of status todo and priority medium.
func (s *Service) Create(ctx context.Context, input *CreateInput) (*Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, core.NewError(fmt.Errorf("title is required"), "INVALID_INPUT", nil)
	}
	status := input.Status
	if status == "" {
		status = StatusTodo
	}
	if !status.Valid() {
		return nil, core.NewError(fmt.Errorf("invalid status %q", status), "INVALID_INPUT", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, core.NewError(fmt.Errorf("invalid priority %q", priority), "INVALID_INPUT", nil)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task ID: %w", err)
	}
	now := time.Now().UTC()
	t := &Task{
		ID:          id,
		ProjectID:   input.ProjectID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      status,
		Priority:    priority,
		Metadata:    input.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	logger.FromContext(ctx).Debug("task created", "task_id", t.ID, "project_id", t.ProjectID, "title", t.Title)
	return t, nil
}

// Update applies the non-empty fields of the input.
func (s *Service) Update(ctx context.Context, input *UpdateInput) (*Task, error) {
	t, err := s.repo.Get(ctx, input.TaskID)
	if err != nil {
		return nil, err
	}
	if input.Title != "" {
		t.Title = input.Title
	}
	if input.Description != "" {
		t.Description = input.Description
	}
	if input.Status != "" {
		if !input.Status.Valid() {
			return nil, core.NewError(fmt.Errorf("invalid status %q", input.Status), "INVALID_INPUT", nil)
		}
		t.Status = input.Status
	}
	if input.Priority != "" {
		if !input.Priority.Valid() {
			return nil, core.NewError(fmt.Errorf("invalid priority %q", input.Priority), "INVALID_INPUT", nil)
		}
		t.Priority = input.Priority
	}
	t.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, projectID core.ID) ([]*Task, error) {
	return s.repo.ListByProject(ctx, projectID)
}

func (s *Service) Get(ctx context.Context, id core.ID) (*Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id core.ID) error {
	return s.repo.Delete(ctx, id)
}

// AddComment appends a comment to the task metadata bag under "comments".
func (s *Service) AddComment(ctx context.Context, taskID core.ID, comment, commentType string) (*Task, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, core.NewError(fmt.Errorf("comment is required"), "INVALID_INPUT", nil)
	}
	if commentType == "" {
		commentType = "note"
	}
	t, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Metadata == nil {
		t.Metadata = make(map[string]any)
	}
	comments, _ := t.Metadata["comments"].([]any)
	comments = append(comments, Comment{
		Comment:   comment,
		Type:      commentType,
		CreatedAt: time.Now().UTC(),
	})
	t.Metadata["comments"] = comments
	t.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return t, nil
}
