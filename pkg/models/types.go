package models

import (
	"fmt"
	"strings"
)

// Breakpoint is a responsive viewport at which a project is measured
type Breakpoint string

const (
	BreakpointDesktop Breakpoint = "desktop"
	BreakpointTablet  Breakpoint = "tablet"
	BreakpointMobile  Breakpoint = "mobile"
)

// AllBreakpoints lists the breakpoints in display order
var AllBreakpoints = []Breakpoint{BreakpointDesktop, BreakpointTablet, BreakpointMobile}

// ParseBreakpoint parses a breakpoint name, accepting "phone" as mobile
func ParseBreakpoint(s string) (Breakpoint, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desktop", "":
		return BreakpointDesktop, nil
	case "tablet":
		return BreakpointTablet, nil
	case "mobile", "phone":
		return BreakpointMobile, nil
	}
	return "", fmt.Errorf("unknown breakpoint: %s", s)
}

// AssetKind classifies what a node contributes to page weight
type AssetKind string

const (
	KindImage      AssetKind = "image"
	KindBackground AssetKind = "background"
	KindSVG        AssetKind = "svg"
	KindFont       AssetKind = "font"
	KindHTMLCSSJS  AssetKind = "html-css-js"
	KindVideo      AssetKind = "video"
)

// IsRaster reports whether the kind is a bitmap image
func (k AssetKind) IsRaster() bool {
	return k == KindImage || k == KindBackground
}

// FormatUnknown is used when no format can be detected from the source
const FormatUnknown = "unknown"

// Dimensions is a width/height pair in logical pixels
type Dimensions struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// IsZero reports whether either side is missing
func (d Dimensions) IsZero() bool {
	return d.Width <= 0 || d.Height <= 0
}

// AssetRecord is one visual asset on one page at one breakpoint
type AssetRecord struct {
	NodeID     string     `json:"nodeId"`
	NodeName   string     `json:"nodeName"`
	Kind       AssetKind  `json:"kind"`
	URL        string     `json:"url,omitempty"`
	Dimensions Dimensions `json:"dimensions"`
	// Intrinsic is the source resolution, zero when the host does not report it
	Intrinsic      Dimensions `json:"intrinsic"`
	EstimatedBytes int64      `json:"estimatedBytes"`
	Format         string     `json:"format"`
	Visible        bool       `json:"visible"`
	Breakpoint     Breakpoint `json:"breakpoint"`

	PageID   string `json:"pageId,omitempty"`
	PageName string `json:"pageName,omitempty"`
	PageSlug string `json:"pageSlug,omitempty"`
	PageURL  string `json:"pageUrl,omitempty"`

	IsCMSAsset  bool   `json:"isCMSAsset"`
	CMSItemSlug string `json:"cmsItemSlug,omitempty"`

	// Inline holds inline SVG markup; it only feeds the estimator
	Inline string `json:"-"`
}

// IsDataURL reports whether the asset is embedded as a data URI
func (a AssetRecord) IsDataURL() bool {
	return strings.HasPrefix(a.URL, "data:")
}
