package models

import "time"

// Breakdown splits bytes into mutually exclusive content buckets
type Breakdown struct {
	Images  int64 `json:"images"`
	Fonts   int64 `json:"fonts"`
	HTMLCSS int64 `json:"htmlCss"`
	SVG     int64 `json:"svg"`
}

// Sum returns the total of all buckets
func (b Breakdown) Sum() int64 {
	return b.Images + b.Fonts + b.HTMLCSS + b.SVG
}

// BreakpointTotals aggregates a set of assets measured at one breakpoint
type BreakpointTotals struct {
	TotalBytes int64     `json:"totalBytes"`
	Breakdown  Breakdown `json:"breakdown"`
}

// PageBreakpoint is a page measured at one breakpoint
type PageBreakpoint struct {
	BreakpointTotals
	Assets []AssetRecord `json:"assets"`
}

// PageAnalysis is one page discovered in a scan
type PageAnalysis struct {
	PageID      string                        `json:"pageId"`
	PageName    string                        `json:"pageName"`
	PageSlug    string                        `json:"pageSlug,omitempty"`
	PageURL     string                        `json:"pageUrl,omitempty"`
	Breakpoints map[Breakpoint]PageBreakpoint `json:"breakpoints"`
}

// TotalBytes returns the page weight at a breakpoint
func (p PageAnalysis) TotalBytes(bp Breakpoint) int64 {
	return p.Breakpoints[bp].TotalBytes
}

// ProjectAnalysis is the immutable result of one scan
type ProjectAnalysis struct {
	ScanID             string                          `json:"scanId"`
	Pages              []PageAnalysis                  `json:"pages"`
	OverallBreakpoints map[Breakpoint]BreakpointTotals `json:"overallBreakpoints"`
	AllRecommendations []Recommendation                `json:"allRecommendations"`
	TotalPages         int                             `json:"totalPages"`
	ScanTimestamp      time.Time                       `json:"scanTimestamp"`
	Stats              ScanStats                       `json:"stats"`
}

// RecommendationType is the optimization opportunity found for an asset
type RecommendationType string

const (
	RecOversized   RecommendationType = "oversized"
	RecFormat      RecommendationType = "format"
	RecCompression RecommendationType = "compression"
)

// Priority ranks a recommendation
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities with high first
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	}
	return 2
}

// Recommendation is a derived suggestion to reduce an asset's weight
type Recommendation struct {
	ID               string             `json:"id"`
	NodeID           string             `json:"nodeId,omitempty"`
	NodeName         string             `json:"nodeName"`
	PageID           string             `json:"pageId,omitempty"`
	PageName         string             `json:"pageName,omitempty"`
	PageSlug         string             `json:"pageSlug,omitempty"`
	PageURL          string             `json:"pageUrl,omitempty"`
	Type             RecommendationType `json:"type"`
	Priority         Priority           `json:"priority"`
	CurrentBytes     int64              `json:"currentBytes"`
	PotentialSavings int64              `json:"potentialSavings"`
	OptimalWidth     int                `json:"optimalWidth,omitempty"`
	OptimalHeight    int                `json:"optimalHeight,omitempty"`
	URL              string             `json:"url,omitempty"`
	Format           string             `json:"format,omitempty"`
	IsCMSAsset       bool               `json:"isCMSAsset"`
	CMSItemSlug      string             `json:"cmsItemSlug,omitempty"`
	Breakpoint       Breakpoint         `json:"breakpoint,omitempty"`
	Description      string             `json:"description"`
	Actionable       bool               `json:"actionable"`
}

// ManualCMSEstimate is a user supplied weight for a CMS collection
type ManualCMSEstimate struct {
	CollectionID        string `json:"collectionId"`
	AverageBytesPerItem int64  `json:"averageBytesPerItem"`
	ItemCount           int    `json:"itemCount"`
}

// TotalBytes returns the estimated weight of the whole collection
func (m ManualCMSEstimate) TotalBytes() int64 {
	if m.AverageBytesPerItem <= 0 || m.ItemCount <= 0 {
		return 0
	}
	return m.AverageBytesPerItem * int64(m.ItemCount)
}
