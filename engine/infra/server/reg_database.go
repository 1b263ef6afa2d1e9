package server

import (
	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/infra/server/router"
)

func registerDatabaseRoutes(api *gin.RouterGroup, state *State) {
	database := api.Group("/database")
	database.GET("/migrations/:project", listMigrationsHandler(state))
}

// listMigrationsHandler handles GET /database/migrations/:project, newest
// first.
//
// @Summary List project migrations
// @Description Returns the migrations the agent has run for the project, including failed ones.
// @Tags database
// @Produce json
// @Param project path string true "Project ID"
// @Success 200 {object} map[string]interface{} "Migrations retrieved"
// @Router /database/migrations/{project} [get]
func listMigrationsHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		migrations, err := state.Database.ListMigrations(c.Request.Context(), projectID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "migrations retrieved", gin.H{"migrations": migrations, "count": len(migrations)})
	}
}
