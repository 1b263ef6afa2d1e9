package genfile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/engine/core"
)

func TestFileTree(t *testing.T) {
	projectID := core.MustNewID()

	seed := func(t *testing.T, repo *fakeRepo, paths ...string) {
		t.Helper()
		svc := NewService(repo, nil, nil, nil)
		for _, p := range paths {
			_, err := svc.Create(context.Background(), &CreateInput{
				ProjectID: projectID, Path: p, Content: "export default 1;\n",
			})
			require.NoError(t, err)
		}
	}

	t.Run("Should nest files under their directories", func(t *testing.T) {
		repo := newFakeRepo()
		seed(t, repo,
			"frontend/src/pages/Home.tsx",
			"frontend/src/pages/About.tsx",
			"frontend/src/app.ts",
		)
		svc := NewService(repo, nil, nil, nil)

		tree, err := svc.FileTree(context.Background(), projectID)
		require.NoError(t, err)
		require.Len(t, tree, 1)
		frontend := tree[0]
		assert.Equal(t, "frontend", frontend.Name)
		assert.Equal(t, nodeDirectory, frontend.Type)
		require.Len(t, frontend.Children, 1)
		src := frontend.Children[0]
		require.Len(t, src.Children, 2)
		assert.Equal(t, "pages", src.Children[0].Name)
		assert.Equal(t, nodeDirectory, src.Children[0].Type)
		assert.Equal(t, "app.ts", src.Children[1].Name)
		assert.Equal(t, nodeFile, src.Children[1].Type)
	})

	t.Run("Should sort directories before files and names alphabetically", func(t *testing.T) {
		repo := newFakeRepo()
		seed(t, repo,
			"frontend/src/pages/Home.tsx",
			"frontend/src/pages/About.tsx",
		)
		svc := NewService(repo, nil, nil, nil)

		tree, err := svc.FileTree(context.Background(), projectID)
		require.NoError(t, err)
		pages := tree[0].Children[0].Children[0]
		require.Len(t, pages.Children, 2)
		assert.Equal(t, "About.tsx", pages.Children[0].Name)
		assert.Equal(t, "Home.tsx", pages.Children[1].Name)
	})

	t.Run("Should return an empty tree for no files", func(t *testing.T) {
		svc := NewService(newFakeRepo(), nil, nil, nil)
		tree, err := svc.FileTree(context.Background(), core.MustNewID())
		require.NoError(t, err)
		assert.Empty(t, tree)
	})
}
