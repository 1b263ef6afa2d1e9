package genfile

import (
	"path"
	"strings"
	"time"

	"github.com/appforge/appforge/engine/core"
)

// File is one generated source file. (project_id, path) uniquely identifies
// the active row; soft deletion flips IsActive.
type File struct {
	ID          core.ID   `db:"id,pk" json:"id"`
	ProjectID   core.ID   `db:"project_id" json:"project_id"`
	Path        string    `db:"path" json:"path"`
	Content     string    `db:"content" json:"content"`
	Language    string    `db:"language" json:"language"`
	Description string    `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LanguageForPath derives the stored language label from a file extension.
func LanguageForPath(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".py":
		return "python"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".md":
		return "markdown"
	case ".css":
		return "css"
	case ".html":
		return "html"
	default:
		return "other"
	}
}

// NormalizePath strips leading slashes and collapses duplicate separators so
// (project_id, path) keys stay stable across callers.
func NormalizePath(filePath string) string {
	cleaned := path.Clean(strings.TrimSpace(strings.ReplaceAll(filePath, "\\", "/")))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}
