package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/infra/server/router"
)

func registerPackageRoutes(api *gin.RouterGroup, state *State) {
	packages := api.Group("/packages")
	packages.POST("/install", installPackagesHandler(state))
	packages.GET("/:project", listPackagesHandler(state))
}

type installPackagesRequest struct {
	ProjectID      core.ID  `json:"project_id"`
	Packages       []string `json:"packages"`
	PackageManager string   `json:"package_manager"`
}

// installPackagesHandler handles POST /packages/install.
//
// @Summary Install packages
// @Description Installs the named packages into the project workspace via pip or npm and records them in the install ledger. Per-package failures are part of the result, not an HTTP error.
// @Tags packages
// @Accept json
// @Produce json
// @Param request body installPackagesRequest true "Packages to install"
// @Success 200 {object} map[string]interface{} "Install result"
// @Failure 400 {object} core.ProblemDocument "Unknown package manager"
// @Router /packages/install [post]
func installPackagesHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req installPackagesRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.ProjectID == "" {
			router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "project_id is required")
			return
		}
		if len(req.Packages) == 0 {
			router.RespondOK(c, "no packages to install", gin.H{"installed": []string{}})
			return
		}
		ctx := c.Request.Context()
		switch req.PackageManager {
		case "pip":
			result, err := state.Packages.InstallPython(ctx, req.ProjectID, req.Packages)
			if err != nil {
				respondServiceError(c, err)
				return
			}
			router.RespondOK(c, installMessage(result.Success), result)
		case "npm":
			result, err := state.Packages.InstallNode(ctx, req.ProjectID, req.Packages)
			if err != nil {
				respondServiceError(c, err)
				return
			}
			router.RespondOK(c, installMessage(result.Success), result)
		default:
			router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode,
				"invalid package manager: "+req.PackageManager)
		}
	}
}

func installMessage(success bool) string {
	if success {
		return "packages installed"
	}
	return "install completed with failures"
}

// listPackagesHandler handles GET /packages/:project, returning the
// project's install ledger.
func listPackagesHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		installed, err := state.Packages.Installed(c.Request.Context(), projectID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "packages retrieved", gin.H{"packages": installed, "count": len(installed)})
	}
}
