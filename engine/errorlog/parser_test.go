package errorlog

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBuildOutput(t *testing.T) {
	t.Run("Should parse esbuild diagnostics", func(t *testing.T) {
		output := `> npm run build
src/App.tsx:10:5: ERROR: Expected ";" but found "}"
src/pages/Home.tsx:3:1: ERROR: Could not resolve "./missing"
`
		parsed := ParseBuildOutput(output)
		require.Len(t, parsed, 2)
		assert.Equal(t, "src/App.tsx", parsed[0].File)
		assert.Equal(t, 10, parsed[0].Line)
		assert.Equal(t, 5, parsed[0].Column)
		assert.Equal(t, "ESBUILD", parsed[0].Code)
		assert.Equal(t, `Expected ";" but found "}"`, parsed[0].Message)
		assert.Equal(t, "src/pages/Home.tsx", parsed[1].File)
	})

	t.Run("Should parse tsc diagnostics with their code", func(t *testing.T) {
		output := "src/lib/api.ts:42:13 - error TS2304: Cannot find name 'axios'.\n"
		parsed := ParseBuildOutput(output)
		require.Len(t, parsed, 1)
		assert.Equal(t, "src/lib/api.ts", parsed[0].File)
		assert.Equal(t, 42, parsed[0].Line)
		assert.Equal(t, 13, parsed[0].Column)
		assert.Equal(t, "TS2304", parsed[0].Code)
		assert.Equal(t, "Cannot find name 'axios'.", parsed[0].Message)
	})

	t.Run("Should normalise frontend prefixed paths", func(t *testing.T) {
		output := "/tmp/ws/p1/frontend/src/App.tsx:1:1: ERROR: broken\n"
		parsed := ParseBuildOutput(output)
		require.Len(t, parsed, 1)
		assert.Equal(t, "src/App.tsx", parsed[0].File)
	})

	t.Run("Should return nothing for clean output", func(t *testing.T) {
		assert.Empty(t, ParseBuildOutput("vite v4.4.5 building for production...\ndone in 2.1s\n"))
	})

	t.Run("Should not double-count a tsc line as esbuild", func(t *testing.T) {
		output := "src/App.tsx:10:5 - error TS1005: ';' expected.\n"
		parsed := ParseBuildOutput(output)
		require.Len(t, parsed, 1)
		assert.Equal(t, "TS1005", parsed[0].Code)
	})
}

func TestSnippetAround(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "line1\nline2\nline3\nline4\nline5\nline6\nline7\n"
	require.NoError(t, afero.WriteFile(fs, "/ws/frontend/src/App.tsx", []byte(content), 0o644))

	t.Run("Should include two lines either side", func(t *testing.T) {
		snippet := snippetAround(fs, "/ws/frontend/src/App.tsx", 4)
		assert.Equal(t, "line2\nline3\nline4\nline5\nline6", snippet)
	})

	t.Run("Should clamp at the start of the file", func(t *testing.T) {
		snippet := snippetAround(fs, "/ws/frontend/src/App.tsx", 1)
		assert.Equal(t, "line1\nline2\nline3", snippet)
	})

	t.Run("Should return empty for a missing file", func(t *testing.T) {
		assert.Empty(t, snippetAround(fs, "/ws/frontend/src/Nope.tsx", 3))
	})

	t.Run("Should return empty without a line number", func(t *testing.T) {
		assert.Empty(t, snippetAround(fs, "/ws/frontend/src/App.tsx", 0))
	})
}
