package preview

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/appforge/appforge/engine/core"
)

// ErrNotBuilt signals that no successful build has cached a dist directory
// for the project yet.
var ErrNotBuilt = errors.New("preview not built")

var (
	assetSrcRelRe  = regexp.MustCompile(`src="\./assets/([^"]+)"`)
	assetSrcRe     = regexp.MustCompile(`src="assets/([^"]+)"`)
	assetHrefRelRe = regexp.MustCompile(`href="\./assets/([^"]+)"`)
	assetHrefRe    = regexp.MustCompile(`href="assets/([^"]+)"`)
)

// Asset is one servable file from a build's dist/assets directory.
type Asset struct {
	Data        []byte
	ContentType string
}

// ServeHTML returns the built entry page with asset references rewritten to
// the per-project asset route.
func (b *Builder) ServeHTML(projectID core.ID) (string, error) {
	dist, ok := b.cache.Get(projectID)
	if !ok {
		return "", ErrNotBuilt
	}
	data, err := afero.ReadFile(b.fs, filepath.Join(dist, "index.html"))
	if err != nil {
		return "", fmt.Errorf("built index.html not found: %w", err)
	}
	return RewriteAssetPaths(string(data), projectID), nil
}

// RewriteAssetPaths redirects relative bundle references so the entry HTML
// resolves them through the project-scoped asset handler. Both the ./assets/
// and bare assets/ spellings the bundler emits are covered.
func RewriteAssetPaths(html string, projectID core.ID) string {
	id := string(projectID)
	html = assetSrcRelRe.ReplaceAllString(html, `src="`+id+`/assets/$1"`)
	html = assetSrcRe.ReplaceAllString(html, `src="`+id+`/assets/$1"`)
	html = assetHrefRelRe.ReplaceAllString(html, `href="`+id+`/assets/$1"`)
	html = assetHrefRe.ReplaceAllString(html, `href="`+id+`/assets/$1"`)
	return html
}

// Asset resolves one file under the cached dist/assets directory. Paths that
// escape the assets root are rejected.
func (b *Builder) Asset(projectID core.ID, assetPath string) (*Asset, error) {
	dist, ok := b.cache.Get(projectID)
	if !ok {
		return nil, ErrNotBuilt
	}
	assetRoot := filepath.Join(dist, "assets")
	full := filepath.Join(assetRoot, filepath.FromSlash(assetPath))
	if full == assetRoot || !strings.HasPrefix(full, assetRoot+string(filepath.Separator)) {
		return nil, core.NewError(
			fmt.Errorf("asset path escapes build output"), "INVALID_ASSET_PATH",
			map[string]any{"path": assetPath})
	}
	info, err := b.fs.Stat(full)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("asset %s: %w", assetPath, core.ErrNotFound)
	}
	data, err := afero.ReadFile(b.fs, full)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", assetPath, err)
	}
	return &Asset{Data: data, ContentType: assetContentType(assetPath)}, nil
}

// Built reports whether a successful build is cached for the project.
func (b *Builder) Built(projectID core.ID) bool {
	_, ok := b.cache.Get(projectID)
	return ok
}

func assetContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css"
	case ".json":
		return "application/json"
	case ".svg":
		return "image/svg+xml"
	case ".html":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
