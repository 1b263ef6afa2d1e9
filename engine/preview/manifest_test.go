package preview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeManifest(t *testing.T, data []byte) packageManifest {
	t.Helper()
	var manifest packageManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	return manifest
}

func TestComposeManifest(t *testing.T) {
	t.Run("Should emit the base manifest with no detections", func(t *testing.T) {
		data, err := composeManifest(nil, nil)
		require.NoError(t, err)
		manifest := decodeManifest(t, data)
		assert.Equal(t, "preview-app", manifest.Name)
		assert.Equal(t, "module", manifest.Type)
		assert.Equal(t, "^18.3.1", manifest.Dependencies["react"])
		assert.Equal(t, "^6.20.0", manifest.Dependencies["react-router-dom"])
		assert.Equal(t, "^4.4.5", manifest.DevDependencies["vite"])
		assert.Equal(t, "vite build", manifest.Scripts["build"])
	})
	t.Run("Should add detected packages at latest", func(t *testing.T) {
		data, err := composeManifest([]string{"axios", "zustand"}, nil)
		require.NoError(t, err)
		manifest := decodeManifest(t, data)
		assert.Equal(t, "latest", manifest.Dependencies["axios"])
		assert.Equal(t, "latest", manifest.Dependencies["zustand"])
	})
	t.Run("Should not let detections override base versions", func(t *testing.T) {
		data, err := composeManifest([]string{"react", "vite"}, nil)
		require.NoError(t, err)
		manifest := decodeManifest(t, data)
		assert.Equal(t, "^18.3.1", manifest.Dependencies["react"])
		assert.Equal(t, "^4.4.5", manifest.DevDependencies["vite"])
		assert.NotContains(t, manifest.Dependencies, "vite")
	})
	t.Run("Should carry over prior manifest entries with their pins", func(t *testing.T) {
		existing := []byte(`{"dependencies": {"stripe": "12.0.0", "react": "^17.0.0"}}`)
		data, err := composeManifest(nil, existing)
		require.NoError(t, err)
		manifest := decodeManifest(t, data)
		assert.Equal(t, "12.0.0", manifest.Dependencies["stripe"])
		assert.Equal(t, "^18.3.1", manifest.Dependencies["react"], "base framework version wins")
	})
	t.Run("Should prefer carried pins over detected latest", func(t *testing.T) {
		existing := []byte(`{"dependencies": {"axios": "1.6.0"}}`)
		data, err := composeManifest([]string{"axios"}, existing)
		require.NoError(t, err)
		manifest := decodeManifest(t, data)
		assert.Equal(t, "1.6.0", manifest.Dependencies["axios"])
	})
	t.Run("Should ignore a corrupt prior manifest", func(t *testing.T) {
		data, err := composeManifest([]string{"axios"}, []byte("{not json"))
		require.NoError(t, err)
		manifest := decodeManifest(t, data)
		assert.Equal(t, "latest", manifest.Dependencies["axios"])
	})
}
