package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/infra/server/router"
)

func registerChatRoutes(api *gin.RouterGroup, state *State) {
	chatGroup := api.Group("/chat")
	chatGroup.GET("/history/:project", chatHistoryHandler(state))
}

// chatHistoryHandler handles GET /chat/history/:project. The newest limit
// messages come back oldest first.
//
// @Summary Get chat history
// @Description Returns the newest messages of the project conversation in chronological order.
// @Tags chat
// @Produce json
// @Param project path string true "Project ID"
// @Param limit query int false "Window size" example(50)
// @Success 200 {object} map[string]interface{} "Messages retrieved"
// @Failure 400 {object} core.ProblemDocument "Invalid limit"
// @Router /chat/history/{project} [get]
func chatHistoryHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode,
					"limit must be a non-negative integer")
				return
			}
			limit = parsed
		}
		messages, err := state.Chats.History(c.Request.Context(), projectID, limit)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "history retrieved", gin.H{"messages": messages, "count": len(messages)})
	}
}
