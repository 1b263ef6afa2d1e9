package tool

import (
	"context"
	"encoding/json"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/task"
)

// TaskService is the slice of the task service the tool handlers consume.
type TaskService interface {
	Create(ctx context.Context, input *task.CreateInput) (*task.Task, error)
	Update(ctx context.Context, input *task.UpdateInput) (*task.Task, error)
	List(ctx context.Context, projectID core.ID) ([]*task.Task, error)
	Delete(ctx context.Context, id core.ID) error
	AddComment(ctx context.Context, taskID core.ID, comment, commentType string) (*task.Task, error)
}

func (d *Dispatcher) registerTaskTools() error {
	tools := []struct {
		def     Definition
		handler Handler
	}{
		{
			def: Definition{
				Name:        "create_task",
				Description: "Create a new task in the project. Use this to break down work into actionable items.",
				Parameters: objectSchema([]string{"title", "description"}, map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Short, clear task title (e.g., 'Build login page', 'Add API endpoint')",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Detailed description of what needs to be done, including technical details",
					},
					"priority": map[string]any{
						"type":        "string",
						"enum":        []string{"low", "medium", "high"},
						"description": "Task priority level",
					},
					"status": map[string]any{
						"type":        "string",
						"enum":        []string{"todo", "in_progress", "done"},
						"description": "Initial task status",
					},
				}),
			},
			handler: d.createTask,
		},
		{
			def: Definition{
				Name:        "update_task",
				Description: "Update an existing task's properties (title, description, status, priority).",
				Parameters: objectSchema([]string{"task_id"}, map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "UUID of the task to update",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "New task title",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "New task description",
					},
					"status": map[string]any{
						"type":        "string",
						"enum":        []string{"todo", "in_progress", "done"},
						"description": "New task status",
					},
					"priority": map[string]any{
						"type":        "string",
						"enum":        []string{"low", "medium", "high"},
						"description": "New priority level",
					},
				}),
			},
			handler: d.updateTask,
		},
		{
			def: Definition{
				Name:        "list_tasks",
				Description: "Get all tasks for the current project. Useful for checking what work has been done or needs to be done.",
				Parameters: objectSchema(nil, map[string]any{
					"status": map[string]any{
						"type":        "string",
						"enum":        []string{"todo", "in_progress", "done", "blocked"},
						"description": "Only return tasks with this status",
					},
				}),
			},
			handler: d.listTasks,
		},
		{
			def: Definition{
				Name:        "delete_task",
				Description: "Delete a task from the project.",
				Parameters: objectSchema([]string{"task_id"}, map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "UUID of the task to delete",
					},
				}),
			},
			handler: d.deleteTask,
		},
		{
			def: Definition{
				Name:        "add_task_comment",
				Description: "Add a comment or progress update to a task. Use this to document decisions, learnings, or blockers.",
				Parameters: objectSchema([]string{"task_id", "comment"}, map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "UUID of the task to comment on",
					},
					"comment": map[string]any{
						"type":        "string",
						"description": "Comment text",
					},
					"comment_type": map[string]any{
						"type":        "string",
						"enum":        []string{"note", "blocker", "decision", "learning"},
						"description": "Type of comment",
					},
				}),
			},
			handler: d.addTaskComment,
		},
	}
	for _, t := range tools {
		if err := d.register(t.def, t.handler); err != nil {
			return err
		}
	}
	return nil
}

type createTaskArgs struct {
	ProjectID   core.ID `json:"project_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
}

func (d *Dispatcher) createTask(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[createTaskArgs](args)
	if err != nil {
		return FailErr(err)
	}
	created, err := d.deps.Tasks.Create(ctx, &task.CreateInput{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      task.Status(req.Status),
		Priority:    task.Priority(req.Priority),
	})
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{
		"message": "Task created: " + created.Title,
		"data":    map[string]any{"task_id": created.ID.String()},
	})
}

type updateTaskArgs struct {
	ProjectID   core.ID `json:"project_id"`
	TaskID      core.ID `json:"task_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
}

func (d *Dispatcher) updateTask(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[updateTaskArgs](args)
	if err != nil {
		return FailErr(err)
	}
	updated, err := d.deps.Tasks.Update(ctx, &task.UpdateInput{
		TaskID:      req.TaskID,
		Title:       req.Title,
		Description: req.Description,
		Status:      task.Status(req.Status),
		Priority:    task.Priority(req.Priority),
	})
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{
		"message": "Task updated successfully",
		"data":    map[string]any{"task_id": updated.ID.String(), "status": string(updated.Status)},
	})
}

type listTasksArgs struct {
	ProjectID core.ID `json:"project_id"`
	Status    string  `json:"status"`
}

func (d *Dispatcher) listTasks(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[listTasksArgs](args)
	if err != nil {
		return FailErr(err)
	}
	tasks, err := d.deps.Tasks.List(ctx, req.ProjectID)
	if err != nil {
		return FailErr(err)
	}
	if req.Status != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.Status == task.Status(req.Status) {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	return Succeed(map[string]any{"tasks": tasks})
}

type deleteTaskArgs struct {
	ProjectID core.ID `json:"project_id"`
	TaskID    core.ID `json:"task_id"`
}

func (d *Dispatcher) deleteTask(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[deleteTaskArgs](args)
	if err != nil {
		return FailErr(err)
	}
	if err := d.deps.Tasks.Delete(ctx, req.TaskID); err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{
		"message": "Task deleted successfully",
		"data":    map[string]any{"task_id": req.TaskID.String()},
	})
}

type addTaskCommentArgs struct {
	ProjectID   core.ID `json:"project_id"`
	TaskID      core.ID `json:"task_id"`
	Comment     string  `json:"comment"`
	CommentType string  `json:"comment_type"`
}

func (d *Dispatcher) addTaskComment(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[addTaskCommentArgs](args)
	if err != nil {
		return FailErr(err)
	}
	if _, err := d.deps.Tasks.AddComment(ctx, req.TaskID, req.Comment, req.CommentType); err != nil {
		return FailErr(err)
	}
	return Message("Comment added to task")
}
