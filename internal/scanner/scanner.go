// Package scanner runs the full analysis pipeline over a project graph and
// produces an immutable ProjectAnalysis.
package scanner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chmdznr/framer-bandwidth-check/internal/aggregate"
	"github.com/chmdznr/framer-bandwidth-check/internal/estimate"
	"github.com/chmdznr/framer-bandwidth-check/internal/graph"
	"github.com/chmdznr/framer-bandwidth-check/internal/observability"
	"github.com/chmdznr/framer-bandwidth-check/internal/recommend"
	"github.com/chmdznr/framer-bandwidth-check/internal/walker"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

// ErrNoRoot is returned when the project graph has no usable root
var ErrNoRoot = graph.ErrNoRoot

// Sizer estimates the byte weight of one asset
type Sizer interface {
	Estimate(ctx context.Context, asset models.AssetRecord, bp models.Breakpoint, settings estimate.Settings) int64
	Probes() (total, failed int64)
}

// Config holds configuration for the scanner
type Config struct {
	Breakpoints []models.Breakpoint
	Walker      walker.Config
	NumWorkers  int
	Settings    estimate.Settings
	Policy      recommend.Policy
	// Progress receives a progress bar when set
	Progress io.Writer
}

// DefaultConfig returns default scanner configuration
func DefaultConfig() Config {
	return Config{
		Breakpoints: models.AllBreakpoints,
		Walker:      walker.DefaultConfig(),
		NumWorkers:  8,
		Settings:    estimate.Settings{IncludeFramerOptimization: true},
		Policy:      recommend.DefaultPolicy(),
	}
}

// Scanner handles one project graph
type Scanner struct {
	provider graph.Provider
	sizer    Sizer
	cfg      Config
	metrics  *observability.Metrics
}

// New creates a scanner. metrics may be nil.
func New(provider graph.Provider, sizer Sizer, cfg *Config, metrics *observability.Metrics) *Scanner {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}
	c := *cfg
	if len(c.Breakpoints) == 0 {
		c.Breakpoints = models.AllBreakpoints
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = DefaultConfig().NumWorkers
	}
	return &Scanner{provider: provider, sizer: sizer, cfg: c, metrics: metrics}
}

// pageTarget is one page with the frame to walk at each breakpoint
type pageTarget struct {
	id, name, slug, url string
	roots               map[models.Breakpoint]string
}

// Scan walks every page at every configured breakpoint, estimates and
// aggregates the assets and derives recommendations. Only failures that
// leave nothing to analyse are returned; node and probe failures are
// absorbed and counted in the stats.
func (s *Scanner) Scan(ctx context.Context) (analysis *models.ProjectAnalysis, err error) {
	start := time.Now()
	defer func() { s.metrics.Scan(err, time.Since(start)) }()

	root, err := s.provider.GetRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get project root: %w", err)
	}
	if root.ID == "" {
		return nil, ErrNoRoot
	}

	pages, err := s.discoverPages(ctx, root)
	if err != nil {
		return nil, err
	}

	w := walker.New(s.provider, &s.cfg.Walker, s.metrics)
	bar := s.startProgress(len(pages) * len(s.cfg.Breakpoints))

	var assets []models.AssetRecord
	for _, p := range pages {
		for _, bp := range s.cfg.Breakpoints {
			assets = append(assets, s.collectPage(ctx, w, p, bp)...)
			if bar != nil {
				bar.Increment()
			}
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	s.estimateAll(ctx, assets)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}

	byPage := make(map[string][]models.AssetRecord, len(pages))
	for _, a := range assets {
		byPage[a.PageID] = append(byPage[a.PageID], a)
	}

	analysis = &models.ProjectAnalysis{
		ScanID:        uuid.NewString(),
		Pages:         make([]models.PageAnalysis, 0, len(pages)),
		TotalPages:    len(pages),
		ScanTimestamp: time.Now().UTC(),
	}
	for _, p := range pages {
		analysis.Pages = append(analysis.Pages, aggregate.Page(p.id, p.name, p.slug, p.url, byPage[p.id], s.cfg.Breakpoints))
	}
	analysis.OverallBreakpoints = aggregate.Overall(analysis.Pages, s.cfg.Breakpoints)
	analysis.AllRecommendations = recommend.Generate(analysis, s.cfg.Policy)

	for bp, totals := range analysis.OverallBreakpoints {
		s.metrics.BreakpointBytes(string(bp), totals.TotalBytes)
	}

	ws := w.Stats()
	probes, failed := s.sizer.Probes()
	analysis.Stats = models.ScanStats{
		NodesVisited:  ws.Visited,
		VisitErrors:   ws.Errors,
		Truncated:     ws.Truncated,
		Assets:        int64(len(assets)),
		Probes:        probes,
		ProbeFailures: failed,
		Duration:      time.Since(start),
	}

	log.Info().
		Str("scan_id", analysis.ScanID).
		Int("pages", analysis.TotalPages).
		Int64("assets", analysis.Stats.Assets).
		Int("recommendations", len(analysis.AllRecommendations)).
		Dur("duration", analysis.Stats.Duration).
		Msg("Scan completed")

	return analysis, nil
}

// discoverPages lists the page nodes under the root. A root that is itself a
// page is scanned as the only page.
func (s *Scanner) discoverPages(ctx context.Context, root graph.NodeRef) ([]pageTarget, error) {
	refs := []graph.NodeRef{root}
	if root.Type != graph.TypePage {
		children, err := s.provider.GetChildren(ctx, root.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list pages: %w", err)
		}
		refs = refs[:0]
		for _, c := range children {
			if c.Type == graph.TypePage {
				refs = append(refs, c)
			}
		}
	}

	pages := make([]pageTarget, 0, len(refs))
	for _, ref := range refs {
		p, err := s.pageTarget(ctx, ref.ID)
		if err != nil {
			log.Warn().Err(err).Str("node_id", ref.ID).Msg("Skipping page")
			continue
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// pageTarget resolves a page's breakpoint frames. Breakpoints without a
// frame of their own use the desktop frame, or the page itself when the page
// has no breakpoint frames at all.
func (s *Scanner) pageTarget(ctx context.Context, id string) (pageTarget, error) {
	node, err := s.provider.GetNode(ctx, id)
	if err != nil {
		return pageTarget{}, err
	}
	p := pageTarget{
		id:    node.ID,
		name:  node.Name,
		slug:  strings.Trim(node.Path, "/"),
		url:   node.URL,
		roots: make(map[models.Breakpoint]string),
	}

	children, err := s.provider.GetChildren(ctx, id)
	if err != nil {
		return pageTarget{}, err
	}
	var first string
	for _, c := range children {
		if c.Type != graph.TypeFrame {
			continue
		}
		d, err := s.provider.GetNode(ctx, c.ID)
		if err != nil || strings.TrimSpace(d.Breakpoint) == "" {
			continue
		}
		bp, err := models.ParseBreakpoint(d.Breakpoint)
		if err != nil {
			log.Debug().Str("node_id", c.ID).Str("breakpoint", d.Breakpoint).Msg("Ignoring frame with unknown breakpoint")
			continue
		}
		if _, seen := p.roots[bp]; !seen {
			p.roots[bp] = c.ID
		}
		if first == "" {
			first = c.ID
		}
	}

	fallback := id
	if desk, ok := p.roots[models.BreakpointDesktop]; ok {
		fallback = desk
	} else if first != "" {
		fallback = first
	}
	for _, bp := range s.cfg.Breakpoints {
		if _, ok := p.roots[bp]; !ok {
			p.roots[bp] = fallback
		}
	}
	return p, nil
}

// collectPage walks one page at one breakpoint and attaches page context.
// Fonts are kept once per font, and the page document weight is added as a
// synthetic record.
func (s *Scanner) collectPage(ctx context.Context, w *walker.Walker, p pageTarget, bp models.Breakpoint) []models.AssetRecord {
	fonts := make(map[string]bool)
	var out []models.AssetRecord
	for rec := range w.Walk(ctx, p.roots[bp], bp, 0) {
		if rec.Kind == models.KindFont {
			key := rec.NodeName + "|" + rec.URL
			if fonts[key] {
				continue
			}
			fonts[key] = true
		}
		out = append(out, rec)
	}
	out = append(out, models.AssetRecord{
		NodeName:   "HTML, CSS and JS",
		Kind:       models.KindHTMLCSSJS,
		Format:     "html",
		Visible:    true,
		Breakpoint: bp,
	})

	for i := range out {
		out[i].PageID = p.id
		out[i].PageName = p.name
		out[i].PageSlug = p.slug
		out[i].PageURL = p.url
	}
	return out
}

func (s *Scanner) startProgress(total int) *pb.ProgressBar {
	if s.cfg.Progress == nil {
		return nil
	}
	bar := pb.New(total)
	bar.SetWriter(s.cfg.Progress)
	bar.SetTemplate(`Scanning {{counters . }} {{bar . }} {{percent . }} {{etime . }}`)
	return bar.Start()
}
