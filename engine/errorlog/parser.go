package errorlog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Two shapes cover bundler output: esbuild's "file:line:col: ERROR: msg" and
// tsc's "file:line:col - error TSxxxx: msg".
var (
	esbuildErrRe = regexp.MustCompile(`([^:\s]+\.tsx?):?(\d+)?:?(\d+)?:\s*ERROR:\s*(.+)`)
	tscErrRe     = regexp.MustCompile(`([^:\s]+\.tsx?):?(\d+)?:?(\d+)?\s*-\s*error\s*([^:\n]+):\s*(.+)`)
)

// ParsedError is one bundler diagnostic extracted from build output.
type ParsedError struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// ParseBuildOutput extracts every esbuild and tsc diagnostic from raw build
// logs. File paths are normalised to be workspace-relative.
func ParseBuildOutput(output string) []ParsedError {
	var parsed []ParsedError
	for _, m := range esbuildErrRe.FindAllStringSubmatch(output, -1) {
		parsed = append(parsed, ParsedError{
			File:    normalizeErrorPath(m[1]),
			Line:    atoiZero(m[2]),
			Column:  atoiZero(m[3]),
			Code:    "ESBUILD",
			Message: strings.TrimSpace(m[4]),
		})
	}
	for _, m := range tscErrRe.FindAllStringSubmatch(output, -1) {
		parsed = append(parsed, ParsedError{
			File:    normalizeErrorPath(m[1]),
			Line:    atoiZero(m[2]),
			Column:  atoiZero(m[3]),
			Code:    strings.TrimSpace(m[4]),
			Message: strings.TrimSpace(m[5]),
		})
	}
	return parsed
}

func normalizeErrorPath(p string) string {
	if idx := strings.LastIndex(p, "frontend/src/"); idx >= 0 {
		return "src/" + p[idx+len("frontend/src/"):]
	}
	return strings.TrimPrefix(p, "./")
}

func atoiZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// snippetAround reads the two lines either side of the failing line.
func snippetAround(fs afero.Fs, path string, line int) string {
	if line <= 0 || path == "" {
		return ""
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	start := line - 3
	if start < 0 {
		start = 0
	}
	end := line + 2
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}
