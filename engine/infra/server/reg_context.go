package server

import (
	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/aicontext"
	"github.com/appforge/appforge/engine/infra/server/router"
)

func registerContextRoutes(api *gin.RouterGroup, state *State) {
	ctxGroup := api.Group("/context")
	ctxGroup.GET("/:project", getContextHandler(state))
	ctxGroup.POST("/:project/update", updateContextHandler(state))
	ctxGroup.POST("/:project/reset", resetContextHandler(state))
}

// getContextHandler handles GET /context/:project. With format=prompt the
// snapshot comes back rendered as the system prompt section.
//
// @Summary Get the project context snapshot
// @Description Assembles the bounded project snapshot the agent sees: tasks, errors, files, memory and recent conversation.
// @Tags context
// @Produce json
// @Param project path string true "Project ID"
// @Param format query string false "Set to prompt for the rendered text" example(prompt)
// @Success 200 {object} map[string]interface{} "Context snapshot"
// @Failure 404 {object} core.ProblemDocument "Project not found"
// @Router /context/{project} [get]
func getContextHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		snap, err := state.Contexts.Load(c.Request.Context(), projectID, aicontext.DefaultLoadOptions())
		if err != nil {
			respondServiceError(c, err)
			return
		}
		if c.Query("format") == "prompt" {
			router.RespondOK(c, "context retrieved", gin.H{"prompt": aicontext.FormatPrompt(snap)})
			return
		}
		router.RespondOK(c, "context retrieved", snap)
	}
}

// updateContextHandler handles POST /context/:project/update. The path
// project wins over any project_id in the body.
func updateContextHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		var input aicontext.UpdateInput
		if !bindJSON(c, &input) {
			return
		}
		input.ProjectID = projectID
		record, err := state.Contexts.UpdateMemory(c.Request.Context(), &input)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "context updated", record)
	}
}

// resetContextHandler handles POST /context/:project/reset. Dropping the
// stored memory also drops the project's live sessions so the next turn
// starts clean.
func resetContextHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		if err := state.Contexts.Reset(c.Request.Context(), projectID); err != nil {
			respondServiceError(c, err)
			return
		}
		state.Sessions.Reset(projectID)
		router.RespondOK(c, "context reset", gin.H{"project_id": projectID})
	}
}
