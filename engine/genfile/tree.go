package genfile

import (
	"context"
	"sort"
	"strings"

	"github.com/appforge/appforge/engine/core"
)

// TreeNode is one entry of the hierarchical file view.
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Type     string      `json:"type"`
	Children []*TreeNode `json:"children,omitempty"`
}

const (
	nodeFile      = "file"
	nodeDirectory = "directory"
)

// FileTree renders the active files of a project as a nested tree.
// Directories sort before files, both alphabetically.
func (s *Service) FileTree(ctx context.Context, projectID core.ID) ([]*TreeNode, error) {
	files, err := s.repo.ListActive(ctx, projectID)
	if err != nil {
		return nil, err
	}
	root := &TreeNode{Type: nodeDirectory}
	index := map[string]*TreeNode{"": root}
	for _, file := range files {
		segments := strings.Split(file.Path, "/")
		parentPath := ""
		for i, segment := range segments {
			current := strings.Join(segments[:i+1], "/")
			if _, ok := index[current]; !ok {
				node := &TreeNode{Name: segment, Path: current, Type: nodeDirectory}
				if i == len(segments)-1 {
					node.Type = nodeFile
				}
				index[current] = node
				parent := index[parentPath]
				parent.Children = append(parent.Children, node)
			}
			parentPath = current
		}
	}
	sortTree(root)
	return root.Children, nil
}

func sortTree(node *TreeNode) {
	sort.Slice(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.Type != b.Type {
			return a.Type == nodeDirectory
		}
		return a.Name < b.Name
	})
	for _, child := range node.Children {
		sortTree(child)
	}
}
