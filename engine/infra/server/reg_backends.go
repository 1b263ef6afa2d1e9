package server

import (
	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/infra/server/router"
)

func registerBackendRoutes(api *gin.RouterGroup, state *State) {
	backends := api.Group("/backends")
	backends.POST("/start/:project", startBackendHandler(state))
	backends.POST("/stop/:project", stopBackendHandler(state))
	backends.POST("/restart/:project", restartBackendHandler(state))
	backends.POST("/stop-all", stopAllBackendsHandler(state))
	backends.GET("/status/:project", backendStatusHandler(state))
	backends.GET("", listBackendsHandler(state))
}

// startBackendHandler handles POST /backends/start/:project.
//
// @Summary Start a project backend
// @Description Allocates a port and spawns the project's FastAPI process inside its workspace. Starting a running backend is a no-op.
// @Tags backends
// @Produce json
// @Param project path string true "Project ID"
// @Success 200 {object} map[string]interface{} "Start result"
// @Failure 500 {object} core.ProblemDocument "Spawn failure or pool exhausted"
// @Router /backends/start/{project} [post]
func startBackendHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		result, err := state.Backends.Start(c.Request.Context(), projectID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, result.Message, result)
	}
}

// stopBackendHandler handles POST /backends/stop/:project.
func stopBackendHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		if err := state.Backends.Stop(c.Request.Context(), projectID); err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "backend stopped", gin.H{"project_id": projectID})
	}
}

// restartBackendHandler handles POST /backends/restart/:project.
func restartBackendHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		result, err := state.Backends.Restart(c.Request.Context(), projectID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, result.Message, result)
	}
}

// stopAllBackendsHandler handles POST /backends/stop-all.
func stopAllBackendsHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		stopped := state.Backends.StopAll(c.Request.Context())
		router.RespondOK(c, "backends stopped", gin.H{"stopped": stopped, "count": len(stopped)})
	}
}

// backendStatusHandler handles GET /backends/status/:project. Unknown
// projects report status stopped rather than an error.
func backendStatusHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		status := state.Backends.Status(c.Request.Context(), projectID)
		router.RespondOK(c, "status retrieved", status)
	}
}

// listBackendsHandler handles GET /backends.
func listBackendsHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses := state.Backends.List(c.Request.Context())
		router.RespondOK(c, "backends retrieved", gin.H{"backends": statuses, "count": len(statuses)})
	}
}
