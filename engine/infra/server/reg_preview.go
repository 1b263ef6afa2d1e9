package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/infra/server/router"
	"github.com/appforge/appforge/engine/preview"
)

func registerPreviewRoutes(api *gin.RouterGroup, state *State) {
	previewGroup := api.Group("/preview")
	previewGroup.POST("/build/:project", buildPreviewHandler(state))
	previewGroup.GET("/:project", servePreviewHandler(state))
	previewGroup.GET("/:project/assets/*filepath", servePreviewAssetHandler(state))
}

// buildPreviewHandler handles POST /preview/build/:project. A failed build
// is a normal outcome: the result carries success=false and the captured
// logs, and the diagnostics land in the error log.
//
// @Summary Build the project preview
// @Description Stages the generated frontend files, runs the bundler and caches the output for serving.
// @Tags preview
// @Produce json
// @Param project path string true "Project ID"
// @Success 200 {object} map[string]interface{} "Build result"
// @Failure 500 {object} core.ProblemDocument "Build pipeline failure"
// @Router /preview/build/{project} [post]
func buildPreviewHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		result, err := state.Builder.Build(c.Request.Context(), projectID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		message := "build succeeded"
		if !result.Success {
			message = "build failed"
		}
		router.RespondOK(c, message, result)
	}
}

// servePreviewHandler handles GET /preview/:project, returning the built
// entry page with asset references rewritten to the project asset route.
func servePreviewHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		html, err := state.Builder.ServeHTML(projectID)
		if err != nil {
			if errors.Is(err, preview.ErrNotBuilt) {
				router.RespondProblemWithCode(c, http.StatusNotFound, router.ErrNotFoundCode,
					"no preview built for project "+string(projectID))
				return
			}
			respondServiceError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
	}
}

// servePreviewAssetHandler handles GET /preview/:project/assets/*filepath.
func servePreviewAssetHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		assetPath := strings.TrimPrefix(c.Param("filepath"), "/")
		asset, err := state.Builder.Asset(projectID, assetPath)
		if err != nil {
			switch {
			case errors.Is(err, preview.ErrNotBuilt):
				router.RespondProblemWithCode(c, http.StatusNotFound, router.ErrNotFoundCode,
					"no preview built for project "+string(projectID))
			default:
				respondServiceError(c, err)
			}
			return
		}
		c.Data(http.StatusOK, asset.ContentType, asset.Data)
	}
}
