// Package walker traverses a page's node graph and extracts asset records.
package walker

import (
	"context"
	"iter"
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/chmdznr/framer-bandwidth-check/internal/classify"
	"github.com/chmdznr/framer-bandwidth-check/internal/graph"
	"github.com/chmdznr/framer-bandwidth-check/internal/observability"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

// YieldFunc is called between batches to hand control back to the host
type YieldFunc func(ctx context.Context) error

// Config holds configuration for the walker
type Config struct {
	MaxDepth  int
	BatchSize int
	Yield     YieldFunc
}

// DefaultConfig returns default walker configuration
func DefaultConfig() Config {
	return Config{
		MaxDepth:  100,
		BatchSize: 20,
		Yield:     GoschedYield,
	}
}

// GoschedYield lets other goroutines run and reports cancellation
func GoschedYield(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}

// Stats counts traversal outcomes
type Stats struct {
	Visited   int64
	Errors    int64
	Truncated int64
}

// Walker visits nodes depth first. Children are processed in fixed size
// batches; the sub-walks of one batch run concurrently and are joined before
// the next batch starts.
type Walker struct {
	provider graph.Provider
	cfg      Config
	metrics  *observability.Metrics

	visited   atomic.Int64
	errors    atomic.Int64
	truncated atomic.Int64
}

// New creates a walker. metrics may be nil.
func New(provider graph.Provider, cfg *Config, metrics *observability.Metrics) *Walker {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}
	c := *cfg
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultConfig().MaxDepth
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultConfig().BatchSize
	}
	if c.Yield == nil {
		c.Yield = GoschedYield
	}
	return &Walker{provider: provider, cfg: c, metrics: metrics}
}

// Stats returns counters accumulated over every walk of this walker
func (w *Walker) Stats() Stats {
	return Stats{
		Visited:   w.visited.Load(),
		Errors:    w.errors.Load(),
		Truncated: w.truncated.Load(),
	}
}

// ancestry is the chain of node ids from the walk root to the current node
type ancestry struct {
	id     string
	parent *ancestry
}

func (a *ancestry) contains(id string) bool {
	for p := a; p != nil; p = p.parent {
		if p.id == id {
			return true
		}
	}
	return false
}

// pass holds the per-walk parameters shared by every sub-walk
type pass struct {
	bp       models.Breakpoint
	maxDepth int
}

// Walk returns the assets below rootID at a breakpoint, descending at most
// maxDepth levels; maxDepth <= 0 uses the configured cap. The sequence is
// lazy at batch granularity and is not restartable; call Walk again for a
// new pass. Descendants of a hidden node are still walked but their records
// are marked invisible.
func (w *Walker) Walk(ctx context.Context, rootID string, bp models.Breakpoint, maxDepth int) iter.Seq[models.AssetRecord] {
	if maxDepth <= 0 {
		maxDepth = w.cfg.MaxDepth
	}
	ps := pass{bp: bp, maxDepth: maxDepth}
	return func(yield func(models.AssetRecord) bool) {
		rec, children, hidden := w.visit(ctx, rootID, ps, false)
		if rec != nil && !yield(*rec) {
			return
		}
		path := &ancestry{id: rootID}
		for start := 0; start < len(children); start += w.cfg.BatchSize {
			end := min(start+w.cfg.BatchSize, len(children))
			for _, r := range w.walkBatch(ctx, children[start:end], ps, 1, path, hidden) {
				if !yield(r) {
					return
				}
			}
			if err := w.cfg.Yield(ctx); err != nil {
				log.Debug().Err(err).Str("root", rootID).Msg("Walk stopped")
				return
			}
		}
	}
}

// Collect drains a walk with the configured depth cap into a slice
func (w *Walker) Collect(ctx context.Context, rootID string, bp models.Breakpoint) []models.AssetRecord {
	var out []models.AssetRecord
	for rec := range w.Walk(ctx, rootID, bp, 0) {
		out = append(out, rec)
	}
	return out
}

func (w *Walker) subtree(ctx context.Context, id string, ps pass, depth int, parent *ancestry, hiddenAbove bool) []models.AssetRecord {
	if depth > ps.maxDepth || parent.contains(id) {
		w.truncated.Add(1)
		log.Debug().Str("node_id", id).Int("depth", depth).Msg("Branch truncated")
		return nil
	}

	rec, children, hidden := w.visit(ctx, id, ps, hiddenAbove)
	var out []models.AssetRecord
	if rec != nil {
		out = append(out, *rec)
	}

	path := &ancestry{id: id, parent: parent}
	for start := 0; start < len(children); start += w.cfg.BatchSize {
		end := min(start+w.cfg.BatchSize, len(children))
		out = append(out, w.walkBatch(ctx, children[start:end], ps, depth+1, path, hidden)...)
		if err := w.cfg.Yield(ctx); err != nil {
			return out
		}
	}
	return out
}

func (w *Walker) walkBatch(ctx context.Context, batch []graph.NodeRef, ps pass, depth int, parent *ancestry, hidden bool) []models.AssetRecord {
	results := make([][]models.AssetRecord, len(batch))
	var g errgroup.Group
	for i, ref := range batch {
		g.Go(func() error {
			results[i] = w.subtree(ctx, ref.ID, ps, depth, parent, hidden)
			return nil
		})
	}
	_ = g.Wait()

	var out []models.AssetRecord
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// visit fetches and classifies one node. Host errors are contained here:
// the node contributes no asset and no children. hidden reports whether the
// node or any ancestor is invisible.
func (w *Walker) visit(ctx context.Context, id string, ps pass, hiddenAbove bool) (rec *models.AssetRecord, children []graph.NodeRef, hidden bool) {
	w.visited.Add(1)
	w.metrics.NodeVisited()

	node, err := w.provider.GetNode(ctx, id)
	if err != nil {
		w.fail(id, ps.bp, err)
		return nil, nil, hiddenAbove
	}
	children, err = w.provider.GetChildren(ctx, id)
	if err != nil {
		w.fail(id, ps.bp, err)
		return nil, nil, hiddenAbove
	}

	hidden = hiddenAbove || !node.IsVisible()
	rec = classify.Classify(node, ps.bp)
	if rec != nil && hidden {
		rec.Visible = false
	}
	return rec, children, hidden
}

func (w *Walker) fail(id string, bp models.Breakpoint, err error) {
	w.errors.Add(1)
	w.metrics.VisitError()
	log.Warn().Err(err).Str("node_id", id).Str("breakpoint", string(bp)).Msg("Failed to visit node")
}
