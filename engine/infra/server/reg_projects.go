package server

import (
	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/infra/server/router"
	"github.com/appforge/appforge/engine/project"
	"github.com/appforge/appforge/engine/tool"
)

func registerProjectRoutes(api *gin.RouterGroup, state *State) {
	projects := api.Group("/projects")
	projects.POST("/init", initProjectHandler(state))
	projects.GET("", listProjectsHandler(state))
	projects.GET("/:project/file-tree", projectFileTreeHandler(state))
	projects.GET("/:project/stats", projectStatsHandler(state))
}

// initProjectHandler handles POST /projects/init.
//
// @Summary Initialize a project
// @Description Creates the project with its requested integrations and provisions the on-disk workspace.
// @Tags projects
// @Accept json
// @Produce json
// @Param request body project.InitInput true "Project to create"
// @Success 201 {object} map[string]interface{} "Created project"
// @Failure 400 {object} core.ProblemDocument "Invalid request"
// @Failure 409 {object} core.ProblemDocument "Project already exists"
// @Router /projects/init [post]
func initProjectHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input project.InitInput
		if !bindJSON(c, &input) {
			return
		}
		created, err := state.Projects.Init(c.Request.Context(), &input)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondCreated(c, "project created", created)
	}
}

// listProjectsHandler handles GET /projects. Archived projects are excluded.
func listProjectsHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := state.Projects.List(c.Request.Context())
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "projects retrieved", gin.H{"projects": projects, "count": len(projects)})
	}
}

// projectFileTreeHandler handles GET /projects/:project/file-tree.
func projectFileTreeHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		files, err := state.Files.Read(c.Request.Context(), projectID, "")
		if err != nil && !core.IsNotFound(err) {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "file tree retrieved", gin.H{"tree": tool.BuildFileTree(files)})
	}
}

// projectStatsHandler handles GET /projects/:project/stats.
func projectStatsHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		stats, err := state.Projects.Stats(c.Request.Context(), projectID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "stats retrieved", stats)
	}
}
