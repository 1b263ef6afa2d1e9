package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/core"
)

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	return c, rec
}

func TestRespondOK(t *testing.T) {
	t.Run("Should wrap the payload in the success envelope", func(t *testing.T) {
		c, rec := newTestContext(t)
		RespondOK(c, "project retrieved", map[string]any{"id": "proj-1"})
		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "project retrieved", body["message"])
		data, ok := body["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "proj-1", data["id"])
	})
}

func TestRespondCreated(t *testing.T) {
	t.Run("Should use a 201 status", func(t *testing.T) {
		c, rec := newTestContext(t)
		RespondCreated(c, "project created", nil)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestRespondNoContent(t *testing.T) {
	t.Run("Should write an empty 204 response", func(t *testing.T) {
		c, rec := newTestContext(t)
		RespondNoContent(c)
		c.Writer.WriteHeaderNow()
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestRespondProblem(t *testing.T) {
	t.Run("Should write a problem+json body with defaults filled in", func(t *testing.T) {
		c, rec := newTestContext(t)
		RespondProblem(c, &core.Problem{Status: http.StatusNotFound, Detail: "project not found"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(http.StatusNotFound), body["status"])
		assert.Equal(t, "Not Found", body["error"])
		assert.Equal(t, "project not found", body["details"])
	})
	t.Run("Should default a nil problem to an internal error", func(t *testing.T) {
		c, rec := newTestContext(t)
		RespondProblem(c, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRespondWithServerError(t *testing.T) {
	t.Run("Should map the error code to its status", func(t *testing.T) {
		c, rec := newTestContext(t)
		RespondWithServerError(c, ErrNotFoundCode, "file not found", errors.New("no rows"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, ErrNotFoundCode, body["code"])
		assert.Contains(t, body["details"], "no rows")
	})
	t.Run("Should fall back to 500 for unknown codes", func(t *testing.T) {
		c, rec := newTestContext(t)
		RespondWithServerError(c, "SOMETHING_ELSE", "boom", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetStatusCode(t *testing.T) {
	t.Run("Should map every known code", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, getStatusCode(ErrBadRequestCode))
		assert.Equal(t, http.StatusNotFound, getStatusCode(ErrNotFoundCode))
		assert.Equal(t, http.StatusConflict, getStatusCode(ErrConflictCode))
		assert.Equal(t, http.StatusRequestTimeout, getStatusCode(ErrRequestTimeoutCode))
		assert.Equal(t, http.StatusServiceUnavailable, getStatusCode(ErrServiceUnavailableCode))
		assert.Equal(t, http.StatusInternalServerError, getStatusCode(ErrInternalCode))
	})
}
