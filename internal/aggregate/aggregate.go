// Package aggregate folds asset estimates into breakpoint totals.
package aggregate

import (
	"sort"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

// Aggregate sums the visible assets of a list. The same reduction serves a
// single page and the whole project. Kinds without a bucket (video) count
// toward TotalBytes only.
func Aggregate(assets []models.AssetRecord) models.BreakpointTotals {
	var t models.BreakpointTotals
	for _, a := range assets {
		if !a.Visible || a.EstimatedBytes <= 0 {
			continue
		}
		t.TotalBytes += a.EstimatedBytes
		switch a.Kind {
		case models.KindImage, models.KindBackground:
			t.Breakdown.Images += a.EstimatedBytes
		case models.KindFont:
			t.Breakdown.Fonts += a.EstimatedBytes
		case models.KindHTMLCSSJS:
			t.Breakdown.HTMLCSS += a.EstimatedBytes
		case models.KindSVG:
			t.Breakdown.SVG += a.EstimatedBytes
		}
	}
	return t
}

// ByBreakpoint groups assets by breakpoint and aggregates each group
func ByBreakpoint(assets []models.AssetRecord) map[models.Breakpoint]models.BreakpointTotals {
	groups := make(map[models.Breakpoint][]models.AssetRecord)
	for _, a := range assets {
		groups[a.Breakpoint] = append(groups[a.Breakpoint], a)
	}
	out := make(map[models.Breakpoint]models.BreakpointTotals, len(groups))
	for bp, list := range groups {
		out[bp] = Aggregate(list)
	}
	return out
}

// Page builds the analysis of one page from its assets across breakpoints.
// Assets are ordered by node id so repeated scans of an unchanged project
// produce identical pages.
func Page(id, name, slug, url string, assets []models.AssetRecord, breakpoints []models.Breakpoint) models.PageAnalysis {
	page := models.PageAnalysis{
		PageID:      id,
		PageName:    name,
		PageSlug:    slug,
		PageURL:     url,
		Breakpoints: make(map[models.Breakpoint]models.PageBreakpoint, len(breakpoints)),
	}
	groups := make(map[models.Breakpoint][]models.AssetRecord)
	for _, a := range assets {
		groups[a.Breakpoint] = append(groups[a.Breakpoint], a)
	}
	for _, bp := range breakpoints {
		list := groups[bp]
		SortAssets(list)
		page.Breakpoints[bp] = models.PageBreakpoint{
			BreakpointTotals: Aggregate(list),
			Assets:           list,
		}
	}
	return page
}

// Overall aggregates every page's assets per breakpoint
func Overall(pages []models.PageAnalysis, breakpoints []models.Breakpoint) map[models.Breakpoint]models.BreakpointTotals {
	out := make(map[models.Breakpoint]models.BreakpointTotals, len(breakpoints))
	for _, bp := range breakpoints {
		var all []models.AssetRecord
		for _, p := range pages {
			all = append(all, p.Breakpoints[bp].Assets...)
		}
		out[bp] = Aggregate(all)
	}
	return out
}

// SortAssets orders assets by node id, then kind, then url
func SortAssets(assets []models.AssetRecord) {
	sort.SliceStable(assets, func(i, j int) bool {
		a, b := assets[i], assets[j]
		if a.NodeID != b.NodeID {
			return a.NodeID < b.NodeID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.URL < b.URL
	})
}
