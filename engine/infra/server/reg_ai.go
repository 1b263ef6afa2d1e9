package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/chat"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/infra/server/router"
	"github.com/appforge/appforge/engine/orchestrator"
	"github.com/appforge/appforge/pkg/logger"
)

func registerAIRoutes(api *gin.RouterGroup, state *State) {
	ai := api.Group("/ai")
	ai.POST("/chat/stream", chatStreamHandler(state))
	registerAIFileRoutes(ai, state)
	registerAITaskRoutes(ai, state)
}

type chatStreamRequest struct {
	ProjectID core.ID `json:"project_id"`
	Content   string  `json:"content"`
	SessionID string  `json:"session_id"`
}

// chatStreamHandler handles POST /ai/chat/stream.
//
// @Summary Stream an agent conversation turn
// @Description Classifies the message, plans and generates code for feature requests, and streams progress chunks as plain text.
// @Tags ai
// @Accept json
// @Produce plain
// @Param request body chatStreamRequest true "Message to process"
// @Success 200 {string} string "Chunked generation stream"
// @Failure 400 {object} core.ProblemDocument "Invalid request"
// @Failure 500 {object} core.ProblemDocument "Internal server error"
// @Router /ai/chat/stream [post]
func chatStreamHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chatStreamRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.ProjectID == "" || strings.TrimSpace(req.Content) == "" {
			router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode,
				"project_id and content are required")
			return
		}
		ctx := c.Request.Context()
		if _, err := state.Chats.Record(ctx, req.ProjectID, chat.RoleUser, req.Content, nil); err != nil {
			respondServiceError(c, err)
			return
		}
		var reply strings.Builder
		err := state.Sessions.Do(ctx, req.ProjectID, req.SessionID,
			func(ctx context.Context, o *orchestrator.Orchestrator) error {
				stream, err := o.GenerateWithPlanning(ctx, req.Content)
				if err != nil {
					return err
				}
				c.Header("Content-Type", "text/plain; charset=utf-8")
				c.Header("Cache-Control", "no-cache")
				c.Header("X-Accel-Buffering", "no")
				c.Status(http.StatusOK)
				clientGone := false
				for chunk := range stream {
					reply.WriteString(chunk)
					if clientGone {
						continue
					}
					if _, werr := c.Writer.WriteString(chunk); werr != nil {
						// Keep draining so the turn completes and is recorded.
						clientGone = true
						continue
					}
					c.Writer.Flush()
				}
				return nil
			})
		if err != nil {
			if !c.Writer.Written() {
				respondServiceError(c, err)
			}
			return
		}
		if reply.Len() > 0 {
			recordCtx := context.WithoutCancel(ctx)
			if _, err := state.Chats.Record(recordCtx, req.ProjectID, chat.RoleAssistant, reply.String(), nil); err != nil {
				logger.FromContext(ctx).Error("failed to record assistant reply",
					"project_id", req.ProjectID, "error", err)
			}
		}
	}
}
