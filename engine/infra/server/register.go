package server

import (
	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/infra/server/routes"
)

// RegisterRoutes mounts every API surface under the versioned base path.
func RegisterRoutes(r *gin.Engine, state *State) error {
	if err := state.validate(); err != nil {
		return err
	}
	apiBase := r.Group(routes.Base())
	registerAIRoutes(apiBase, state)
	registerChatRoutes(apiBase, state)
	registerContextRoutes(apiBase, state)
	registerErrorRoutes(apiBase, state)
	registerPreviewRoutes(apiBase, state)
	registerBackendRoutes(apiBase, state)
	registerProjectRoutes(apiBase, state)
	registerPackageRoutes(apiBase, state)
	registerDatabaseRoutes(apiBase, state)
	apiBase.GET("/health", healthHandler(state))
	return nil
}
