package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/chat"
	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/errorlog"
	"github.com/appforge/appforge/engine/infra/server/router"
	"github.com/appforge/appforge/engine/orchestrator"
	"github.com/appforge/appforge/pkg/logger"
)

// recoveryTimeout bounds one background recovery run end to end.
const recoveryTimeout = 5 * time.Minute

func registerErrorRoutes(api *gin.RouterGroup, state *State) {
	errGroup := api.Group("/errors")
	errGroup.POST("/report", reportErrorHandler(state))
	errGroup.GET("/:id", listErrorsHandler(state, false))
	errGroup.GET("/:id/open", listErrorsHandler(state, true))
	errGroup.POST("/:id/resolve", resolveErrorHandler(state))
	errGroup.DELETE("/:id", deleteErrorHandler(state))
}

type reportErrorRequest struct {
	errorlog.ReportInput
	// AutoRecover starts a background debugging run against the reported
	// error once it is recorded.
	AutoRecover bool `json:"auto_recover"`
}

// reportErrorHandler handles POST /errors/report.
//
// @Summary Report a runtime error
// @Description Records an error captured by the preview or a running backend, optionally kicking off a background recovery run.
// @Tags errors
// @Accept json
// @Produce json
// @Param request body reportErrorRequest true "Error to record"
// @Success 201 {object} map[string]interface{} "Recorded error"
// @Failure 400 {object} core.ProblemDocument "Invalid request"
// @Router /errors/report [post]
func reportErrorHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reportErrorRequest
		if !bindJSON(c, &req) {
			return
		}
		record, err := state.Errors.Report(c.Request.Context(), &req.ReportInput)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		if req.AutoRecover {
			go runBackgroundRecovery(context.WithoutCancel(c.Request.Context()), state, record)
		}
		router.RespondCreated(c, "error reported", gin.H{
			"error_id":     record.ID,
			"auto_recover": req.AutoRecover,
		})
	}
}

// runBackgroundRecovery drives the debugging loop for a freshly reported
// error and records its transcript as an assistant message.
func runBackgroundRecovery(ctx context.Context, state *State, record *errorlog.Record) {
	ctx, cancel := context.WithTimeout(ctx, recoveryTimeout)
	defer cancel()
	log := logger.FromContext(ctx)
	var transcript string
	err := state.Sessions.Do(ctx, record.ProjectID, DefaultSessionID,
		func(ctx context.Context, o *orchestrator.Orchestrator) error {
			stream, err := o.RecoverFromError(ctx, &orchestrator.RecoveryInput{
				Message:    record.Message,
				StackTrace: record.StackTrace,
				Context: map[string]any{
					"error_id":   record.ID,
					"error_type": string(record.Kind),
					"file_path":  record.FilePath,
				},
			})
			if err != nil {
				return err
			}
			var all []byte
			for chunk := range stream {
				all = append(all, chunk...)
			}
			transcript = string(all)
			return nil
		})
	if err != nil {
		log.Error("background recovery failed",
			"project_id", record.ProjectID, "error_id", record.ID, "error", err)
		return
	}
	if transcript == "" {
		return
	}
	metadata := map[string]any{"recovery": true, "error_id": string(record.ID)}
	if _, err := state.Chats.Record(ctx, record.ProjectID, chat.RoleAssistant, transcript, metadata); err != nil {
		log.Error("failed to record recovery transcript",
			"project_id", record.ProjectID, "error_id", record.ID, "error", err)
	}
}

// listErrorsHandler handles GET /errors/:id and GET /errors/:id/open, where
// the id is the project.
func listErrorsHandler(state *State, onlyOpen bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := core.ID(c.Param("id"))
		if projectID == "" {
			router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "project id is required")
			return
		}
		records, err := state.Errors.List(c.Request.Context(), projectID, onlyOpen)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "errors retrieved", gin.H{"errors": records, "count": len(records)})
	}
}

type resolveErrorRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

// resolveErrorHandler handles POST /errors/:id/resolve. The body is
// optional; an absent one resolves without notes.
func resolveErrorHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := core.ID(c.Param("id"))
		var req resolveErrorRequest
		if c.Request.Body != nil && c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		record, err := state.Errors.Resolve(c.Request.Context(), id, req.ResolutionNotes)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "error resolved", record)
	}
}

// deleteErrorHandler handles DELETE /errors/:id.
func deleteErrorHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := core.ID(c.Param("id"))
		if err := state.Errors.Delete(c.Request.Context(), id); err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "error deleted", gin.H{"error_id": id})
	}
}
