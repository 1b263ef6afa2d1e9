package server

import (
	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/infra/server/router"
	"github.com/appforge/appforge/engine/task"
)

func registerAITaskRoutes(ai *gin.RouterGroup, state *State) {
	tasks := ai.Group("/tasks")
	tasks.POST("/create", createTaskHandler(state))
	tasks.POST("/update", updateTaskHandler(state))
	tasks.POST("/add-comment", addTaskCommentHandler(state))
	tasks.POST("/delete", deleteTaskHandler(state))
	tasks.GET("/:project", listTasksHandler(state))
}

// createTaskHandler handles POST /ai/tasks/create.
//
// @Summary Create a task
// @Description Creates a task for the project with defaults of status todo and priority medium.
// @Tags ai,tasks
// @Accept json
// @Produce json
// @Param request body task.CreateInput true "Task to create"
// @Success 201 {object} map[string]interface{} "Created task"
// @Failure 400 {object} core.ProblemDocument "Invalid request"
// @Router /ai/tasks/create [post]
func createTaskHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input task.CreateInput
		if !bindJSON(c, &input) {
			return
		}
		created, err := state.Tasks.Create(c.Request.Context(), &input)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondCreated(c, "task created", created)
	}
}

// updateTaskHandler handles POST /ai/tasks/update. Empty fields keep their
// stored values.
func updateTaskHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input task.UpdateInput
		if !bindJSON(c, &input) {
			return
		}
		updated, err := state.Tasks.Update(c.Request.Context(), &input)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "task updated", updated)
	}
}

type taskCommentRequest struct {
	TaskID      core.ID `json:"task_id"`
	Comment     string  `json:"comment"`
	CommentType string  `json:"comment_type"`
}

// addTaskCommentHandler handles POST /ai/tasks/add-comment.
func addTaskCommentHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req taskCommentRequest
		if !bindJSON(c, &req) {
			return
		}
		updated, err := state.Tasks.AddComment(c.Request.Context(), req.TaskID, req.Comment, req.CommentType)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "comment added", updated)
	}
}

type deleteTaskRequest struct {
	TaskID core.ID `json:"task_id"`
}

// deleteTaskHandler handles POST /ai/tasks/delete.
func deleteTaskHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req deleteTaskRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := state.Tasks.Delete(c.Request.Context(), req.TaskID); err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "task deleted", gin.H{"task_id": req.TaskID})
	}
}

// listTasksHandler handles GET /ai/tasks/:project. Tasks come back in their
// project order.
func listTasksHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		tasks, err := state.Tasks.List(c.Request.Context(), projectID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "tasks retrieved", gin.H{"tasks": tasks, "count": len(tasks)})
	}
}
