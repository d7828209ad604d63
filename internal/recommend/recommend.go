// Package recommend derives prioritized optimization recommendations from a
// project analysis.
package recommend

import (
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/chmdznr/framer-bandwidth-check/internal/classify"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
	"github.com/chmdznr/framer-bandwidth-check/pkg/utils"
)

// Generate returns the recommendations for an analysis, sorted by
// potential savings, priority, node name and node id. The result depends
// only on the analysis and the policy.
func Generate(analysis *models.ProjectAnalysis, policy Policy) []models.Recommendation {
	if analysis == nil {
		return nil
	}
	p := policy.withDefaults()

	groups := make(map[string]models.AssetRecord)
	for _, page := range analysis.Pages {
		for _, bp := range models.AllBreakpoints {
			pb, ok := page.Breakpoints[bp]
			if !ok {
				continue
			}
			for _, a := range pb.Assets {
				if !candidate(a) {
					continue
				}
				key := assetKey(a) + "\x00" + a.PageID
				if cur, ok := groups[key]; !ok || governs(a, cur) {
					groups[key] = a
				}
			}
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	recs := make([]models.Recommendation, 0, len(keys))
	for _, k := range keys {
		if rec := evaluate(groups[k], p); rec != nil {
			recs = append(recs, *rec)
		}
	}
	Sort(recs)
	return recs
}

// Sort orders recommendations by potentialSavings descending, then priority
// (high first), then nodeName, then nodeId (id when there is no node).
func Sort(recs []models.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.PotentialSavings != b.PotentialSavings {
			return a.PotentialSavings > b.PotentialSavings
		}
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if a.NodeName != b.NodeName {
			return a.NodeName < b.NodeName
		}
		return tieKey(a) < tieKey(b)
	})
}

func tieKey(r models.Recommendation) string {
	if r.NodeID != "" {
		return r.NodeID
	}
	return r.ID
}

// candidate filters out everything that is never flagged: SVGs, fonts,
// code, video, hidden nodes, and assets with unknown size.
func candidate(a models.AssetRecord) bool {
	return a.Visible && a.Kind.IsRaster() && a.EstimatedBytes > 0
}

// governs reports whether a should replace cur as the record evaluated for
// an asset: the widest rendering needs the most pixels.
func governs(a, cur models.AssetRecord) bool {
	if a.Dimensions.Width != cur.Dimensions.Width {
		return a.Dimensions.Width > cur.Dimensions.Width
	}
	return a.EstimatedBytes > cur.EstimatedBytes
}

func assetKey(a models.AssetRecord) string {
	if a.NodeID != "" {
		return a.NodeID
	}
	return a.URL + "|" + a.CMSItemSlug
}

// ID derives a stable recommendation id from the asset, page and type
func ID(nodeKey, pageID string, typ models.RecommendationType) string {
	sum := blake2b.Sum256([]byte(nodeKey + "\x00" + pageID + "\x00" + string(typ)))
	return "rec_" + hex.EncodeToString(sum[:8])
}

// OptimalSize returns the pixel size an image needs for a rendering, capped
// at maxWidth and keeping the source aspect ratio.
func OptimalSize(rendered, intrinsic models.Dimensions, density float64, maxWidth int) (int, int) {
	w := int(math.Ceil(rendered.Width * density))
	if maxWidth > 0 && w > maxWidth {
		w = maxWidth
	}
	ratio := rendered.Height / rendered.Width
	if !intrinsic.IsZero() {
		ratio = intrinsic.Height / intrinsic.Width
	}
	return w, int(math.Round(float64(w) * ratio))
}

func evaluate(a models.AssetRecord, p Policy) *models.Recommendation {
	rec := &models.Recommendation{
		NodeID:       a.NodeID,
		NodeName:     a.NodeName,
		PageID:       a.PageID,
		PageName:     a.PageName,
		PageSlug:     a.PageSlug,
		PageURL:      a.PageURL,
		CurrentBytes: a.EstimatedBytes,
		URL:          a.URL,
		Format:       a.Format,
		IsCMSAsset:   a.IsCMSAsset,
		CMSItemSlug:  a.CMSItemSlug,
		Breakpoint:   a.Breakpoint,
	}
	label := strings.ToUpper(a.Format)
	bytes := float64(a.EstimatedBytes)

	switch {
	case oversized(a, p):
		w, h := OptimalSize(a.Dimensions, a.Intrinsic, p.PixelDensity, p.MaxWidth)
		kept := float64(w*h) / (a.Intrinsic.Width * a.Intrinsic.Height)
		rec.Type = models.RecOversized
		rec.OptimalWidth, rec.OptimalHeight = w, h
		rec.PotentialSavings = int64(math.Round(bytes * (1 - kept)))
		rec.Description = fmt.Sprintf("Source is %.0fx%.0f but renders at %.0fx%.0f on %s. Resize to %dx%d.",
			a.Intrinsic.Width, a.Intrinsic.Height, a.Dimensions.Width, a.Dimensions.Height, a.Breakpoint, w, h)
		if classify.IsLegacyRaster(a.Format) {
			rec.Description += fmt.Sprintf(" Converting %s to WebP saves more.", label)
		}

	case classify.IsLegacyRaster(a.Format) && a.EstimatedBytes >= p.FormatMinBytes:
		rec.Type = models.RecFormat
		rec.PotentialSavings = int64(math.Round(bytes * p.FormatSavings[a.Format]))
		rec.Description = fmt.Sprintf("%s image could be served as WebP to save about %s.",
			label, utils.FormatSize(rec.PotentialSavings))

	case classify.IsModernRaster(a.Format) && a.EstimatedBytes > p.CompressionCeiling:
		rec.Type = models.RecCompression
		rec.PotentialSavings = int64(math.Round(bytes * p.CompressionSavingsRatio))
		rec.Description = fmt.Sprintf("%s image is %s, above the %s ceiling. Recompress it at a lower quality.",
			label, utils.FormatSize(a.EstimatedBytes), utils.FormatSize(p.CompressionCeiling))

	default:
		return nil
	}

	if rec.PotentialSavings < p.MinSavings || rec.PotentialSavings <= 0 {
		return nil
	}

	rec.Priority = priority(rec.PotentialSavings, a.EstimatedBytes, p)
	rec.ID = ID(assetKey(a), a.PageID, rec.Type)
	rec.Actionable = !a.IsCMSAsset && rec.Type != models.RecCompression && fetchable(a.URL)
	if a.IsCMSAsset {
		rec.Description += " This image comes from the CMS; edit it there."
	}
	return rec
}

func oversized(a models.AssetRecord, p Policy) bool {
	if a.Intrinsic.IsZero() || a.Dimensions.IsZero() {
		return false
	}
	w, _ := OptimalSize(a.Dimensions, a.Intrinsic, p.PixelDensity, p.MaxWidth)
	return a.Intrinsic.Width > float64(w)*p.OversizeRatio
}

func priority(savings, current int64, p Policy) models.Priority {
	ratio := float64(savings) / float64(current)
	switch {
	case savings >= p.HighSavings || ratio >= p.HighRatio:
		return models.PriorityHigh
	case savings >= p.MediumSavings || ratio >= p.MediumRatio:
		return models.PriorityMedium
	}
	return models.PriorityLow
}

func fetchable(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}
