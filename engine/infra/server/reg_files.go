package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/genfile"
	"github.com/appforge/appforge/engine/infra/server/router"
)

func registerAIFileRoutes(ai *gin.RouterGroup, state *State) {
	files := ai.Group("/files")
	files.POST("/create", createFileHandler(state))
	files.PUT("/update", updateFileHandler(state))
	files.GET("/read/:project", readFilesHandler(state))
	files.POST("/search", searchFilesHandler(state))
	files.POST("/delete", deleteFileHandler(state))
}

// createFileHandler handles POST /ai/files/create.
//
// @Summary Create a generated file
// @Description Validates the content, heals it once through the model when possible, persists the file and installs detected packages.
// @Tags ai,files
// @Accept json
// @Produce json
// @Param request body genfile.CreateInput true "File to create"
// @Success 201 {object} map[string]interface{} "Write report"
// @Failure 400 {object} core.ProblemDocument "Invalid request"
// @Failure 409 {object} core.ProblemDocument "Active file already exists at the path"
// @Router /ai/files/create [post]
func createFileHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input genfile.CreateInput
		if !bindJSON(c, &input) {
			return
		}
		report, err := state.Files.Create(c.Request.Context(), &input)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondCreated(c, "file created", report)
	}
}

// updateFileHandler handles PUT /ai/files/update.
func updateFileHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input genfile.UpdateInput
		if !bindJSON(c, &input) {
			return
		}
		report, err := state.Files.Update(c.Request.Context(), &input)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "file updated", report)
	}
}

// readFilesHandler handles GET /ai/files/read/:project. An empty file_path
// query returns every active file of the project.
func readFilesHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := projectIDParam(c)
		if !ok {
			return
		}
		path := strings.TrimSpace(c.Query("file_path"))
		files, err := state.Files.Read(c.Request.Context(), projectID, path)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "files retrieved", gin.H{"files": files, "count": len(files)})
	}
}

type searchFilesRequest struct {
	ProjectID core.ID `json:"project_id"`
	Query     string  `json:"query"`
}

// searchFilesHandler handles POST /ai/files/search.
func searchFilesHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchFilesRequest
		if !bindJSON(c, &req) {
			return
		}
		files, err := state.Files.Search(c.Request.Context(), req.ProjectID, req.Query)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "files retrieved", gin.H{"files": files, "count": len(files)})
	}
}

// deleteFileHandler handles POST /ai/files/delete. The file stays in history
// as an inactive row.
func deleteFileHandler(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input genfile.UpdateInput
		if !bindJSON(c, &input) {
			return
		}
		file, err := state.Files.Delete(c.Request.Context(), &input)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		router.RespondOK(c, "file deleted", file)
	}
}
