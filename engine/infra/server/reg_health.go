package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/pkg/logger"
	"github.com/appforge/appforge/pkg/version"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// Health endpoint
//
//	@Summary      Get server health
//	@Description  Returns overall service health, readiness and components status
//	@Tags         health,diagnostics
//	@Accept       json
//	@Produce      json
//	@Success      200 {object} map[string]interface{} "Service is healthy"
//	@Failure      503 {object} map[string]interface{} "Service is not ready"
//	@Router       /api/v0/health [get]
func healthHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ready, healthStatus, databaseStatus := gatherSystemStatus(ctx, state)
		response := gin.H{
			"status":   healthStatus,
			"version":  version.Get().Version,
			"ready":    ready,
			"database": databaseStatus,
		}
		if state.Backends != nil {
			response["backends"] = gin.H{"running": len(state.Backends.List(ctx))}
		}
		c.JSON(determineHealthStatusCode(ready), gin.H{
			"data":    response,
			"message": "Success",
		})
	}
}

func gatherSystemStatus(ctx context.Context, state *State) (bool, string, gin.H) {
	ready := true
	healthStatus := statusHealthy
	databaseStatus := gin.H{"connected": true}
	if state.Store == nil {
		databaseStatus = gin.H{"connected": false, "error": "store not configured"}
		return false, statusDegraded, databaseStatus
	}
	if err := state.Store.HealthCheck(ctx); err != nil {
		logger.FromContext(ctx).Warn("Readiness probe check failed due to database error", "error", err)
		databaseStatus = gin.H{"connected": false, "error": err.Error()}
		ready = false
		healthStatus = statusDegraded
	}
	return ready, healthStatus, databaseStatus
}

func determineHealthStatusCode(ready bool) int {
	if !ready {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
