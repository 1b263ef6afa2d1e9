package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/appforge/appforge/engine/core"
	"github.com/appforge/appforge/engine/genfile"
)

// FileService is the slice of the generated-file service the tool handlers
// consume.
type FileService interface {
	Create(ctx context.Context, input *genfile.CreateInput) (*genfile.WriteReport, error)
	Update(ctx context.Context, input *genfile.UpdateInput) (*genfile.WriteReport, error)
	Read(ctx context.Context, projectID core.ID, path string) ([]*genfile.File, error)
	Search(ctx context.Context, projectID core.ID, query string) ([]*genfile.File, error)
	Delete(ctx context.Context, input *genfile.UpdateInput) (*genfile.File, error)
}

func (d *Dispatcher) registerFileTools() error {
	tools := []struct {
		def     Definition
		handler Handler
	}{
		{
			def: Definition{
				Name:        "create_file",
				Description: "Create a new code file in the project. Use this to generate React components, Python APIs, configs, etc.",
				Parameters: objectSchema([]string{"file_path", "file_content", "file_type"}, map[string]any{
					"file_path": map[string]any{
						"type":        "string",
						"description": "Path where file should be created (e.g., 'backend/app.py', 'frontend/src/components/Button.tsx')",
					},
					"file_content": map[string]any{
						"type":        "string",
						"description": "Complete file content including all code, imports, and comments",
					},
					"file_type": map[string]any{
						"type":        "string",
						"enum":        []string{"python", "typescript", "javascript", "json", "yaml", "markdown", "css", "html", "other"},
						"description": "Type of file being created",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Brief description of what this file does",
					},
				}),
			},
			handler: d.createFile,
		},
		{
			def: Definition{
				Name:        "update_file",
				Description: "Update an existing file with new content.",
				Parameters: objectSchema([]string{"file_path", "file_content"}, map[string]any{
					"file_path": map[string]any{
						"type":        "string",
						"description": "Path of the file to update",
					},
					"file_content": map[string]any{
						"type":        "string",
						"description": "New complete file content",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Description of what changed in this update",
					},
				}),
			},
			handler: d.updateFile,
		},
		{
			def: Definition{
				Name:        "read_files",
				Description: "Read all files in the project to see what code has been generated.",
				Parameters: objectSchema(nil, map[string]any{
					"file_paths": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Only return these files; omit to read every file",
					},
				}),
			},
			handler: d.readFiles,
		},
		{
			def: Definition{
				Name:        "search_code",
				Description: "Search for specific code patterns or keywords across all project files.",
				Parameters: objectSchema([]string{"query"}, map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query (code snippet, function name, keyword, etc.)",
					},
				}),
			},
			handler: d.searchCode,
		},
		{
			def: Definition{
				Name:        "delete_file",
				Description: "Delete a file from the project (soft delete - marks as inactive).",
				Parameters: objectSchema([]string{"file_path"}, map[string]any{
					"file_path": map[string]any{
						"type":        "string",
						"description": "Path of the file to delete",
					},
				}),
			},
			handler: d.deleteFile,
		},
		{
			def: Definition{
				Name:        "get_file_tree",
				Description: "Get a hierarchical view of all files in the project structure.",
				Parameters:  objectSchema(nil, map[string]any{}),
			},
			handler: d.fileTree,
		},
	}
	for _, t := range tools {
		if err := d.register(t.def, t.handler); err != nil {
			return err
		}
	}
	return nil
}

// filePayload is the model-facing file shape shared by read_files and
// search_code results.
func filePayload(f *genfile.File) map[string]any {
	return map[string]any{
		"id":           f.ID.String(),
		"file_path":    f.Path,
		"file_content": f.Content,
		"language":     f.Language,
		"is_active":    f.IsActive,
	}
}

func filePayloads(files []*genfile.File) []map[string]any {
	payloads := make([]map[string]any, 0, len(files))
	for _, f := range files {
		payloads = append(payloads, filePayload(f))
	}
	return payloads
}

func (d *Dispatcher) createFile(ctx context.Context, args json.RawMessage) Result {
	input, err := decodeArgs[genfile.CreateInput](args)
	if err != nil {
		return FailErr(err)
	}
	report, err := d.deps.Files.Create(ctx, &input)
	if err != nil {
		return FailErr(err)
	}
	data := map[string]any{
		"message":   "File created: " + report.File.Path,
		"file_id":   report.File.ID.String(),
		"file_path": report.File.Path,
	}
	if report.Healed {
		data["healed"] = true
	}
	if len(report.Warnings) > 0 {
		data["warnings"] = report.Warnings
	}
	return Succeed(data)
}

func (d *Dispatcher) updateFile(ctx context.Context, args json.RawMessage) Result {
	input, err := decodeArgs[genfile.UpdateInput](args)
	if err != nil {
		return FailErr(err)
	}
	report, err := d.deps.Files.Update(ctx, &input)
	if err != nil {
		return FailErr(err)
	}
	data := map[string]any{"message": "File updated: " + report.File.Path}
	if len(report.Warnings) > 0 {
		data["warnings"] = report.Warnings
	}
	return Succeed(data)
}

type readFilesArgs struct {
	ProjectID core.ID  `json:"project_id"`
	FilePaths []string `json:"file_paths"`
}

func (d *Dispatcher) readFiles(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[readFilesArgs](args)
	if err != nil {
		return FailErr(err)
	}
	if len(req.FilePaths) == 0 {
		files, err := d.deps.Files.Read(ctx, req.ProjectID, "")
		if err != nil && !core.IsNotFound(err) {
			return FailErr(err)
		}
		return Succeed(map[string]any{"files": filePayloads(files)})
	}
	collected := make([]*genfile.File, 0, len(req.FilePaths))
	for _, path := range req.FilePaths {
		files, err := d.deps.Files.Read(ctx, req.ProjectID, path)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return FailErr(err)
		}
		collected = append(collected, files...)
	}
	return Succeed(map[string]any{"files": filePayloads(collected)})
}

type searchCodeArgs struct {
	ProjectID core.ID `json:"project_id"`
	Query     string  `json:"query"`
}

func (d *Dispatcher) searchCode(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[searchCodeArgs](args)
	if err != nil {
		return FailErr(err)
	}
	results, err := d.deps.Files.Search(ctx, req.ProjectID, req.Query)
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{"results": filePayloads(results)})
}

func (d *Dispatcher) deleteFile(ctx context.Context, args json.RawMessage) Result {
	input, err := decodeArgs[genfile.UpdateInput](args)
	if err != nil {
		return FailErr(err)
	}
	deleted, err := d.deps.Files.Delete(ctx, &input)
	if err != nil {
		return FailErr(err)
	}
	return Succeed(map[string]any{
		"message": "File deleted: " + deleted.Path,
		"data":    map[string]any{"file_path": deleted.Path},
	})
}

type fileTreeArgs struct {
	ProjectID core.ID `json:"project_id"`
}

func (d *Dispatcher) fileTree(ctx context.Context, args json.RawMessage) Result {
	req, err := decodeArgs[fileTreeArgs](args)
	if err != nil {
		return FailErr(err)
	}
	files, err := d.deps.Files.Read(ctx, req.ProjectID, "")
	if err != nil && !core.IsNotFound(err) {
		return FailErr(err)
	}
	return Succeed(map[string]any{"tree": BuildFileTree(files)})
}

// BuildFileTree nests active files into {type: directory, children} /
// {type: file, language} nodes keyed by path segment.
func BuildFileTree(files []*genfile.File) map[string]any {
	tree := make(map[string]any)
	for _, f := range files {
		parts := strings.Split(f.Path, "/")
		current := tree
		for i, part := range parts {
			if part == "" {
				continue
			}
			if i == len(parts)-1 {
				current[part] = map[string]any{
					"type":     "file",
					"language": f.Language,
				}
				continue
			}
			node, ok := current[part].(map[string]any)
			if !ok || node["children"] == nil {
				node = map[string]any{
					"type":     "directory",
					"children": map[string]any{},
				}
				current[part] = node
			}
			current = node["children"].(map[string]any)
		}
	}
	return tree
}
