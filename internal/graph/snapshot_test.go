package graph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlSnapshot = `
project: demo
root: root
nodes:
  - id: root
    type: project
    children: [home]
  - id: home
    name: Home
    type: page
    path: /
    children: [hero, missing]
  - id: hero
    name: Hero
    type: image
    visible: false
    image:
      url: https://cdn.example.com/hero.png
      width: 3000
      height: 2000
  - id: card
    name: Card
    type: image
    cms:
      collectionId: posts
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSnapshot_YAML(t *testing.T) {
	snap, err := LoadSnapshot(writeFile(t, "project.yaml", yamlSnapshot))
	require.NoError(t, err)

	assert.Equal(t, "demo", snap.Project)
	assert.Equal(t, "root", snap.Root)
	require.Len(t, snap.Nodes, 4)
	assert.Equal(t, 3000.0, snap.Nodes[2].Image.Width)
	assert.False(t, snap.Nodes[2].IsVisible())
	assert.True(t, snap.Nodes[1].IsVisible())
}

func TestLoadSnapshot_JSON(t *testing.T) {
	data, err := json.Marshal(Snapshot{Root: "r", Nodes: []NodeDetail{{ID: "r", Type: TypeProject}}})
	require.NoError(t, err)

	snap, err := LoadSnapshot(writeFile(t, "project.json", string(data)))
	require.NoError(t, err)
	assert.Equal(t, "r", snap.Root)
}

func TestLoadSnapshot_Errors(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)

	_, err = LoadSnapshot(writeFile(t, "bad.json", "{not json"))
	assert.Error(t, err)
}

func TestSnapshotProvider_Traversal(t *testing.T) {
	snap, err := LoadSnapshot(writeFile(t, "project.yaml", yamlSnapshot))
	require.NoError(t, err)
	p := NewSnapshotProvider(snap, "")
	ctx := context.Background()

	root, err := p.GetRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, NodeRef{ID: "root", Type: TypeProject}, root)

	children, err := p.GetChildren(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, []NodeRef{{ID: "hero", Type: TypeImage}, {ID: "missing"}}, children)

	_, err = p.GetNode(ctx, "missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = p.GetChildren(ctx, "missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestSnapshotProvider_NoRoot(t *testing.T) {
	p := NewSnapshotProvider(&Snapshot{}, "")
	_, err := p.GetRoot(context.Background())
	assert.ErrorIs(t, err, ErrNoRoot)

	p = NewSnapshotProvider(&Snapshot{Root: "ghost"}, "")
	_, err = p.GetRoot(context.Background())
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestSnapshotProvider_SetSelection(t *testing.T) {
	snap, err := LoadSnapshot(writeFile(t, "project.yaml", yamlSnapshot))
	require.NoError(t, err)
	selPath := filepath.Join(t.TempDir(), "selection.json")
	p := NewSnapshotProvider(snap, selPath)
	ctx := context.Background()

	require.NoError(t, p.SetSelection(ctx, []string{"hero"}))
	assert.Equal(t, []string{"hero"}, p.Selection())

	data, err := os.ReadFile(selPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"selection":["hero"]}`, string(data))

	err = p.SetSelection(ctx, []string{"card"})
	assert.ErrorIs(t, err, ErrNotSelectable)
	assert.Equal(t, []string{"hero"}, p.Selection())

	err = p.SetSelection(ctx, []string{"ghost"})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}
