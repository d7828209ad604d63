// Package graph defines the host node graph consumed by the scanner and a
// provider backed by an exported project snapshot.
package graph

import (
	"context"
	"errors"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrNoRoot        = errors.New("project has no root node")
	ErrNotSelectable = errors.New("node cannot be selected")
)

// Node types reported by the host
const (
	TypeProject       = "project"
	TypePage          = "page"
	TypeFrame         = "frame"
	TypeImage         = "image"
	TypeSVG           = "svg"
	TypeText          = "text"
	TypeVideo         = "video"
	TypeCMSCollection = "cms-collection"
)

// NodeRef is a lightweight handle returned by traversal calls
type NodeRef struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
}

// ImageAttr is an image fill or background attached to a node
type ImageAttr struct {
	URL    string  `json:"url" yaml:"url"`
	Width  float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height float64 `json:"height,omitempty" yaml:"height,omitempty"`
}

// FontAttr describes the font a text node renders with
type FontAttr struct {
	Family string `json:"family" yaml:"family"`
	Weight int    `json:"weight,omitempty" yaml:"weight,omitempty"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
}

// CMSAttr marks a node bound to a CMS collection item
type CMSAttr struct {
	CollectionID string `json:"collectionId" yaml:"collectionId"`
	ItemSlug     string `json:"itemSlug,omitempty" yaml:"itemSlug,omitempty"`
}

// NodeDetail holds the raw attributes of one host node
type NodeDetail struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Type       string  `json:"type" yaml:"type"`
	Visible    *bool   `json:"visible,omitempty" yaml:"visible,omitempty"`
	Breakpoint string  `json:"breakpoint,omitempty" yaml:"breakpoint,omitempty"`
	Width      float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height     float64 `json:"height,omitempty" yaml:"height,omitempty"`

	BackgroundImage []ImageAttr `json:"backgroundImage,omitempty" yaml:"backgroundImage,omitempty"`
	Image           *ImageAttr  `json:"image,omitempty" yaml:"image,omitempty"`
	SVG             string      `json:"svg,omitempty" yaml:"svg,omitempty"`
	SVGURL          string      `json:"svgUrl,omitempty" yaml:"svgUrl,omitempty"`
	Font            *FontAttr   `json:"font,omitempty" yaml:"font,omitempty"`
	VideoURL        string      `json:"videoUrl,omitempty" yaml:"videoUrl,omitempty"`
	CMS             *CMSAttr    `json:"cms,omitempty" yaml:"cms,omitempty"`

	// Page attributes
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`

	Children []string `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsVisible defaults to true when the host omits the attribute
func (n *NodeDetail) IsVisible() bool {
	return n.Visible == nil || *n.Visible
}

// Ref returns the handle for the node
func (n *NodeDetail) Ref() NodeRef {
	return NodeRef{ID: n.ID, Type: n.Type}
}

// Provider is the host graph. Calls may fail per node; errors are node local.
type Provider interface {
	GetRoot(ctx context.Context) (NodeRef, error)
	GetChildren(ctx context.Context, id string) ([]NodeRef, error)
	GetNode(ctx context.Context, id string) (*NodeDetail, error)
	SetSelection(ctx context.Context, ids []string) error
}
