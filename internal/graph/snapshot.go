package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Snapshot is an exported project node graph
type Snapshot struct {
	Project string       `json:"project" yaml:"project"`
	Root    string       `json:"root" yaml:"root"`
	Nodes   []NodeDetail `json:"nodes" yaml:"nodes"`
}

// SnapshotProvider serves a Snapshot through the Provider interface
type SnapshotProvider struct {
	root          string
	nodes         map[string]*NodeDetail
	selectionPath string

	mu        sync.Mutex
	selection []string
}

// LoadSnapshot reads a JSON or YAML snapshot file
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &snap)
	default:
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// NewSnapshotProvider indexes a snapshot by node id. When selectionPath is
// set, SetSelection writes the selected ids there for the host bridge.
func NewSnapshotProvider(snap *Snapshot, selectionPath string) *SnapshotProvider {
	p := &SnapshotProvider{
		root:          snap.Root,
		nodes:         make(map[string]*NodeDetail, len(snap.Nodes)),
		selectionPath: selectionPath,
	}
	for i := range snap.Nodes {
		n := &snap.Nodes[i]
		if _, dup := p.nodes[n.ID]; dup {
			log.Warn().Str("node_id", n.ID).Msg("Duplicate node id in snapshot, keeping first")
			continue
		}
		p.nodes[n.ID] = n
	}
	return p
}

// GetRoot returns the project root node
func (p *SnapshotProvider) GetRoot(ctx context.Context) (NodeRef, error) {
	if p.root == "" {
		return NodeRef{}, ErrNoRoot
	}
	n, ok := p.nodes[p.root]
	if !ok {
		return NodeRef{}, fmt.Errorf("%w: %s", ErrNoRoot, p.root)
	}
	return n.Ref(), nil
}

// GetChildren returns the direct children of a node in declaration order
func (p *SnapshotProvider) GetChildren(ctx context.Context, id string) ([]NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, ok := p.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	refs := make([]NodeRef, 0, len(n.Children))
	for _, childID := range n.Children {
		ref := NodeRef{ID: childID}
		if child, ok := p.nodes[childID]; ok {
			ref.Type = child.Type
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// GetNode returns the attributes of a node
func (p *SnapshotProvider) GetNode(ctx context.Context, id string) (*NodeDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, ok := p.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// SetSelection selects canvas nodes. CMS bound nodes are rejected.
func (p *SnapshotProvider) SetSelection(ctx context.Context, ids []string) error {
	for _, id := range ids {
		n, ok := p.nodes[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		if n.CMS != nil {
			return fmt.Errorf("%w: %s is bound to CMS collection %s", ErrNotSelectable, id, n.CMS.CollectionID)
		}
	}

	p.mu.Lock()
	p.selection = append([]string(nil), ids...)
	p.mu.Unlock()

	if p.selectionPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(map[string][]string{"selection": ids}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.selectionPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write selection: %w", err)
	}
	return nil
}

// Selection returns the ids passed to the last successful SetSelection
func (p *SnapshotProvider) Selection() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.selection...)
}
