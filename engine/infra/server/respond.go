package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/infra/server/router"
)

// respondServiceError maps domain errors onto problem responses. Coded
// errors carry their code through to the body; everything unrecognised is
// an internal error.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case core.IsNotFound(err):
		router.RespondProblem(c, &core.Problem{Status: http.StatusNotFound, Detail: err.Error()})
	case core.IsConflict(err):
		router.RespondProblem(c, &core.Problem{Status: http.StatusConflict, Detail: err.Error()})
	default:
		var coded *core.Error
		if errors.As(err, &coded) {
			router.RespondProblem(c, &core.Problem{
				Status: statusForCode(coded.Code),
				Detail: err.Error(),
				Extras: map[string]any{"code": coded.Code},
			})
			return
		}
		router.RespondProblem(c, &core.Problem{Status: http.StatusInternalServerError, Detail: err.Error()})
	}
}

func statusForCode(code string) int {
	switch code {
	case "INVALID_INPUT", "INVALID_PLAN", "INVALID_ASSET_PATH", "PATH_ESCAPE_ATTEMPT", "EMPTY_ID":
		return http.StatusBadRequest
	case "NOT_FOUND", "RESOURCE_NOT_FOUND":
		return http.StatusNotFound
	case "RATE_LIMIT_EXCEEDED":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// projectIDParam reads and validates the :project route parameter.
func projectIDParam(c *gin.Context) (core.ID, bool) {
	id := core.ID(strings.TrimSpace(c.Param("project")))
	if id == "" {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "project id is required")
		return "", false
	}
	return id, true
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, "invalid request body: "+err.Error())
		return false
	}
	return true
}
