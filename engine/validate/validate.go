package validate

import "strings"

// Language identifies a source language the validator understands.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageTypeScript Language = "typescript"
)

// Issue is a single validation problem found in a source file.
type Issue struct {
	Type       string `json:"error_type"`
	Message    string `json:"message"`
	Line       int    `json:"line_number,omitempty"`
	Column     int    `json:"column,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Result is the outcome of validating one source string.
type Result struct {
	Valid    bool     `json:"is_valid"`
	Errors   []Issue  `json:"errors"`
	Warnings []string `json:"warnings"`
	Imports  []string `json:"imports"`
}

// Source validates content against the declared language. Unknown languages
// pass through as valid with no imports; the caller decides whether that is
// acceptable. The function is pure: no I/O, deterministic output.
func Source(language Language, content string) *Result {
	switch language {
	case LanguagePython:
		return Python(content)
	case LanguageTypeScript:
		return TypeScript(content)
	default:
		return &Result{Valid: true, Errors: []Issue{}, Warnings: []string{}, Imports: []string{}}
	}
}

// LanguageForPath guesses the validation language from a file extension.
func LanguageForPath(path string) Language {
	switch {
	case strings.HasSuffix(path, ".py"):
		return LanguagePython
	case strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".tsx"),
		strings.HasSuffix(path, ".js"), strings.HasSuffix(path, ".jsx"):
		return LanguageTypeScript
	default:
		return ""
	}
}
