// Package classify turns raw host nodes into asset records.
//
// Raw host attributes are inspected exactly once, in Inspect. Everything after
// that works on the Node union and never looks at graph.NodeDetail again.
package classify

import (
	"strconv"
	"strings"

	"github.com/chmdznr/framer-bandwidth-check/internal/graph"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

// NodeKind discriminates the Node union
type NodeKind int

const (
	NodeContainer NodeKind = iota
	NodeBackground
	NodeImage
	NodeSVG
	NodeText
	NodeVideo
)

func (k NodeKind) String() string {
	switch k {
	case NodeBackground:
		return "background"
	case NodeImage:
		return "image"
	case NodeSVG:
		return "svg"
	case NodeText:
		return "text"
	case NodeVideo:
		return "video"
	}
	return "container"
}

// Node is the narrowed view of a host node
type Node struct {
	Kind      NodeKind
	ID        string
	Name      string
	Visible   bool
	Rendered  models.Dimensions
	Intrinsic models.Dimensions
	Source    string
	Inline    string
	Font      string
	CMS       *graph.CMSAttr
}

// Inspect narrows a host node. The first matching attribute wins:
// background image, then image, then SVG, then text font, then video.
func Inspect(d *graph.NodeDetail) Node {
	n := Node{
		Kind:     NodeContainer,
		ID:       d.ID,
		Name:     d.Name,
		Visible:  d.IsVisible(),
		Rendered: models.Dimensions{Width: d.Width, Height: d.Height},
		CMS:      d.CMS,
	}

	if bg, ok := firstBackground(d.BackgroundImage); ok {
		n.Kind = NodeBackground
		n.Source = bg.URL
		n.Intrinsic = models.Dimensions{Width: bg.Width, Height: bg.Height}
		return n
	}

	if d.Type == graph.TypeImage || d.Image != nil {
		n.Kind = NodeImage
		if d.Image != nil {
			n.Source = d.Image.URL
			n.Intrinsic = models.Dimensions{Width: d.Image.Width, Height: d.Image.Height}
		}
		return n
	}

	if d.Type == graph.TypeSVG || d.SVG != "" || d.SVGURL != "" {
		n.Kind = NodeSVG
		n.Source = d.SVGURL
		n.Inline = d.SVG
		return n
	}

	if d.Type == graph.TypeText && d.Font != nil && d.Font.Family != "" {
		n.Kind = NodeText
		n.Font = fontKey(d.Font)
		n.Source = d.Font.URL
		return n
	}

	if d.Type == graph.TypeVideo || d.VideoURL != "" {
		n.Kind = NodeVideo
		n.Source = d.VideoURL
		return n
	}

	return n
}

func firstBackground(list []graph.ImageAttr) (graph.ImageAttr, bool) {
	for _, bg := range list {
		if strings.TrimSpace(bg.URL) != "" {
			return bg, true
		}
	}
	return graph.ImageAttr{}, false
}

func fontKey(f *graph.FontAttr) string {
	if f.Weight > 0 {
		return f.Family + " " + strconv.Itoa(f.Weight)
	}
	return f.Family
}

// Classify returns the asset carried by a host node at a breakpoint, or nil
// when the node carries none.
func Classify(d *graph.NodeDetail, bp models.Breakpoint) *models.AssetRecord {
	return Inspect(d).Asset(bp)
}

// Asset converts the narrowed node into an asset record, or nil for
// containers.
func (n Node) Asset(bp models.Breakpoint) *models.AssetRecord {
	rec := &models.AssetRecord{
		NodeID:     n.ID,
		NodeName:   n.Name,
		URL:        n.Source,
		Dimensions: n.Rendered,
		Intrinsic:  n.Intrinsic,
		Visible:    n.Visible,
		Breakpoint: bp,
	}
	if n.CMS != nil {
		rec.IsCMSAsset = true
		rec.CMSItemSlug = n.CMS.ItemSlug
	}

	switch n.Kind {
	case NodeBackground:
		rec.Kind = models.KindBackground
	case NodeImage:
		rec.Kind = models.KindImage
	case NodeSVG:
		rec.Kind = models.KindSVG
		rec.Inline = n.Inline
		if n.Source == "" {
			rec.Format = "svg"
			return rec
		}
	case NodeText:
		rec.Kind = models.KindFont
		rec.NodeName = n.Font
		rec.Dimensions = models.Dimensions{}
	case NodeVideo:
		rec.Kind = models.KindVideo
	default:
		return nil
	}

	rec.Format = DetectFormat(rec.URL)
	return rec
}
