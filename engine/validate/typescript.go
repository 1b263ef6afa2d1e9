package validate

import (
	"fmt"
	"regexp"
	"strings"
)

var tsImportRe = regexp.MustCompile(
	`import\s+(?:type\s+)?(?:\{[^}]+\}|\w+|\*\s+as\s+\w+)(?:\s*,\s*(?:\{[^}]+\}|\w+))?\s+from\s+["']([^"']+)["']`)

// TypeScript performs the structural check used for generated frontend code:
// every bracket class must balance, imports are collected from `from "spec"`
// forms. A full type check happens later in the bundler; this pass only
// catches the gross structural damage models tend to produce.
func TypeScript(content string) *Result {
	var errors []Issue

	pairs := []struct {
		open, close string
		name        string
		suggestion  string
	}{
		{"{", "}", "braces", "Check for missing or extra braces"},
		{"(", ")", "parentheses", "Check for missing or extra parentheses"},
		{"[", "]", "brackets", "Check for missing or extra brackets"},
	}
	for _, p := range pairs {
		openCount := strings.Count(content, p.open)
		closeCount := strings.Count(content, p.close)
		if openCount != closeCount {
			errors = append(errors, Issue{
				Type:       "syntax",
				Message:    fmt.Sprintf("Unmatched %s: %d open, %d close", p.name, openCount, closeCount),
				Suggestion: p.suggestion,
			})
		}
	}

	if errors == nil {
		errors = []Issue{}
	}
	return &Result{
		Valid:    len(errors) == 0,
		Errors:   errors,
		Warnings: []string{},
		Imports:  extractTSImports(content),
	}
}

// extractTSImports returns the package specifier of every non-relative
// import, deduplicated in first-seen order. Subpath imports reduce to the
// package root; scoped packages keep their first two segments.
func extractTSImports(content string) []string {
	seen := make(map[string]bool)
	imports := []string{}
	for _, m := range tsImportRe.FindAllStringSubmatch(content, -1) {
		spec := m[1]
		if strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
			continue
		}
		pkg := PackageForSpecifier(spec)
		if pkg == "" || seen[pkg] {
			continue
		}
		seen[pkg] = true
		imports = append(imports, pkg)
	}
	return imports
}

// PackageForSpecifier reduces an import specifier to its package name:
// "lodash/debounce" becomes "lodash", "@mui/material/Button" becomes
// "@mui/material".
func PackageForSpecifier(spec string) string {
	if strings.HasPrefix(spec, "@") {
		parts := strings.Split(spec, "/")
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return spec
	}
	return strings.SplitN(spec, "/", 2)[0]
}
