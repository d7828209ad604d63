package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chmdznr/framer-bandwidth-check/internal/bandwidth"
	"github.com/chmdznr/framer-bandwidth-check/internal/config"
	"github.com/chmdznr/framer-bandwidth-check/internal/db"
	"github.com/chmdznr/framer-bandwidth-check/internal/estimate"
	"github.com/chmdznr/framer-bandwidth-check/internal/graph"
	"github.com/chmdznr/framer-bandwidth-check/internal/observability"
	"github.com/chmdznr/framer-bandwidth-check/internal/optimize"
	"github.com/chmdznr/framer-bandwidth-check/internal/recommend"
	"github.com/chmdznr/framer-bandwidth-check/internal/report"
	"github.com/chmdznr/framer-bandwidth-check/internal/scanner"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
	"github.com/chmdznr/framer-bandwidth-check/pkg/utils"
)

// runScan scans a snapshot, stores the analysis and reconciles the ignored
// recommendations against it. When the scan fails the stored analysis is
// left untouched.
func runScan(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	snap, err := graph.LoadSnapshot(c.String("snapshot"))
	if err != nil {
		return err
	}
	log.Debug().Str("snapshot_project", snap.Project).Str("project", e.project).Msg("Snapshot loaded")

	includeOpt, err := e.includeOptimization()
	if err != nil {
		return err
	}
	if c.Bool("no-optimization") {
		off := false
		includeOpt = &off
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics()
	addr := e.cfg.MetricsAddr
	if c.IsSet("metrics-addr") {
		addr = c.String("metrics-addr")
	}
	if addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				log.Error().Err(err).Str("address", addr).Msg("Metrics server failed")
			}
		}()
	}

	ecfg := e.cfg.EstimatorConfig()
	scfg := e.cfg.ScannerConfig(includeOpt)
	if c.IsSet("workers") {
		scfg.NumWorkers = c.Int("workers")
	}
	if !c.Bool("quiet") {
		scfg.Progress = os.Stderr
	}

	previous, err := e.store.LatestScan(e.project)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}

	sc := scanner.New(graph.NewSnapshotProvider(snap, ""), estimate.New(&ecfg, metrics), &scfg, metrics)
	analysis, err := scanner.NewStore(previous).Run(ctx, sc)
	if err != nil {
		if analysis != nil {
			log.Warn().Str("scan_id", analysis.ScanID).Msg("Keeping previous scan")
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	if err := e.store.SaveScan(e.project, analysis); err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}

	ignored, err := e.store.IgnoredIDs(e.project)
	if err != nil {
		return err
	}
	if dropped := recommend.Dropped(ignored, analysis.AllRecommendations); len(dropped) > 0 {
		log.Info().Strs("rec_ids", dropped).Msg("Dropping ignored recommendations that no longer apply")
	}
	kept := recommend.Reconcile(ignored, analysis.AllRecommendations)
	if err := e.store.ReplaceIgnored(e.project, kept); err != nil {
		return fmt.Errorf("failed to update ignored recommendations: %w", err)
	}

	f, err := e.formatter(c)
	if err != nil {
		return err
	}
	rows := [][]string{
		{"Project", e.project},
		{"Scan", analysis.ScanID},
		{"Pages", strconv.Itoa(analysis.TotalPages)},
	}
	for _, bp := range models.AllBreakpoints {
		if t, ok := analysis.OverallBreakpoints[bp]; ok {
			rows = append(rows, []string{"Total " + string(bp), utils.FormatSize(t.TotalBytes)})
		}
	}
	rows = append(rows,
		[]string{"Recommendations", fmt.Sprintf("%d (%d ignored)", len(analysis.AllRecommendations), len(kept))},
		[]string{"Nodes visited", utils.FormatCount(analysis.Stats.NodesVisited)},
		[]string{"Visit errors", utils.FormatCount(analysis.Stats.VisitErrors)},
		[]string{"Probe failures", fmt.Sprintf("%d of %d", analysis.Stats.ProbeFailures, analysis.Stats.Probes)},
		[]string{"Duration", utils.FormatDuration(analysis.Stats.Duration)},
	)
	fmt.Fprintln(f.Writer, success("Scan completed"))
	f.PrintTable(report.TableData{Rows: rows})
	return nil
}

func showReport(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	bp, err := models.ParseBreakpoint(c.String("breakpoint"))
	if err != nil {
		return err
	}
	pa, err := e.latestScan()
	if err != nil {
		return err
	}
	ignored, err := e.store.IgnoredIDs(e.project)
	if err != nil {
		return err
	}
	f, err := e.formatter(c)
	if err != nil {
		return err
	}
	return f.PrintReport(report.Build(pa, bp, ignored, c.Bool("all")))
}

func showHistory(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	scans, err := e.store.ListScans(e.project, c.Int("limit"))
	if err != nil {
		return err
	}
	f, err := e.formatter(c)
	if err != nil {
		return err
	}
	if f.Format != report.FormatTable {
		return f.Print(scans)
	}

	data := report.TableData{Headers: []string{"Scan", "Scanned at", "Pages", "Recommendations", "Desktop"}}
	for _, s := range scans {
		data.Rows = append(data.Rows, []string{
			s.ScanID,
			s.ScannedAt.Local().Format(time.DateTime),
			strconv.Itoa(s.TotalPages),
			strconv.Itoa(s.Recommendations),
			utils.FormatSize(s.DesktopBytes),
		})
	}
	f.PrintTable(data)
	return nil
}

func exportScan(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	pa, err := e.latestScan()
	if err != nil {
		return err
	}
	ignored, err := e.store.IgnoredIDs(e.project)
	if err != nil {
		return err
	}
	path := c.String("xlsx")
	if err := report.ExportXLSX(path, pa, ignored); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, success("Exported scan %s to %s", pa.ScanID, path))
	return nil
}

func ignoreRecommendation(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	pa, err := e.latestScan()
	if err != nil {
		return err
	}
	id := c.String("rec")
	if _, ok := recommend.Find(pa.AllRecommendations, id); !ok {
		return fmt.Errorf("recommendation %s not found in scan %s", id, pa.ScanID)
	}
	if err := e.store.Ignore(e.project, id); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, success("Ignored %s", id))
	return nil
}

func restoreRecommendation(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	id := c.String("rec")
	if err := e.store.Restore(e.project, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("recommendation %s is not ignored", id)
		}
		return err
	}
	fmt.Fprintln(c.App.Writer, success("Restored %s", id))
	return nil
}

func showBandwidth(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	pa, err := e.latestScan()
	if err != nil {
		return err
	}
	cms, err := e.store.CMSEstimates(e.project)
	if err != nil {
		return err
	}

	bp := e.cfg.TrafficBreakpoint()
	if c.IsSet("breakpoint") {
		if bp, err = models.ParseBreakpoint(c.String("breakpoint")); err != nil {
			return err
		}
	}
	a := e.cfg.Assumptions()
	if c.IsSet("pageviews") {
		a.MonthlyPageviews = c.Int64("pageviews")
	}
	if c.IsSet("pages-per-visit") {
		a.AveragePagesPerVisit = c.Float64("pages-per-visit")
	}

	f, err := e.formatter(c)
	if err != nil {
		return err
	}
	in := bandwidth.InputFromAnalysis(pa, bp, cms)
	if c.Bool("interactive") {
		calc, err := bandwidth.NewCalculator(in, a, e.cfg.Plans)
		if err != nil {
			return err
		}
		return runCalculator(f, calc)
	}

	p, err := bandwidth.Project(in, a, e.cfg.Plans)
	if err != nil {
		return err
	}
	return f.PrintProjection(p, a)
}

func setCMSEstimate(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	est := models.ManualCMSEstimate{
		CollectionID:        c.String("collection"),
		AverageBytesPerItem: c.Int64("avg-bytes"),
		ItemCount:           c.Int("items"),
	}
	if est.AverageBytesPerItem < 0 || est.ItemCount < 0 {
		return fmt.Errorf("avg-bytes and items cannot be negative")
	}
	if err := e.store.SetCMSEstimate(e.project, est); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, success("Collection %s: %s per visit", est.CollectionID, utils.FormatSize(est.TotalBytes())))
	return nil
}

func listCMSEstimates(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ests, err := e.store.CMSEstimates(e.project)
	if err != nil {
		return err
	}
	f, err := e.formatter(c)
	if err != nil {
		return err
	}
	if f.Format != report.FormatTable {
		return f.Print(ests)
	}

	data := report.TableData{Headers: []string{"Collection", "Avg per item", "Items", "Total"}}
	for _, est := range ests {
		data.Rows = append(data.Rows, []string{
			est.CollectionID,
			utils.FormatSize(est.AverageBytesPerItem),
			strconv.Itoa(est.ItemCount),
			utils.FormatSize(est.TotalBytes()),
		})
	}
	f.PrintTable(data)
	return nil
}

func removeCMSEstimate(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	id := c.String("collection")
	if err := e.store.RemoveCMSEstimate(e.project, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("no estimate for collection %s", id)
		}
		return err
	}
	fmt.Fprintln(c.App.Writer, success("Removed estimate for %s", id))
	return nil
}

// manageSettings handles "settings", "settings get key" and
// "settings set key value".
func manageSettings(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	args := c.Args().Slice()
	switch {
	case len(args) == 0 || (args[0] == "get" && len(args) == 1):
		settings, err := e.store.Settings()
		if err != nil {
			return err
		}
		data := report.TableData{Headers: []string{"Key", "Value"}}
		for _, key := range []string{settingIncludeOptimization, settingTheme} {
			v, ok := settings[key]
			if !ok {
				v = "(default)"
			}
			data.Rows = append(data.Rows, []string{key, v})
		}
		f := report.NewFormatter(report.FormatTable)
		f.Writer = c.App.Writer
		f.PrintTable(data)
		return nil

	case args[0] == "get" && len(args) == 2:
		v, err := e.store.GetSetting(args[1])
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("setting %s is not set", args[1])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, v)
		return nil

	case args[0] == "set" && len(args) == 3:
		v, err := validateSetting(args[1], args[2])
		if err != nil {
			return err
		}
		if err := e.store.SetSetting(args[1], v); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, success("%s = %s", args[1], v))
		return nil
	}
	return fmt.Errorf("usage: fbcheck settings [get [key] | set key value]")
}

func selectNode(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	pa, err := e.latestScan()
	if err != nil {
		return err
	}
	rec, ok := recommend.Find(pa.AllRecommendations, c.String("rec"))
	if !ok {
		return fmt.Errorf("recommendation %s not found in scan %s", c.String("rec"), pa.ScanID)
	}
	if rec.IsCMSAsset {
		return fmt.Errorf("%s comes from a CMS collection, edit it in the CMS", rec.NodeName)
	}

	snapPath := c.String("snapshot")
	snap, err := graph.LoadSnapshot(snapPath)
	if err != nil {
		return err
	}
	selPath := c.String("selection-file")
	if selPath == "" {
		selPath = selectionPath(snapPath)
	}
	if err := graph.NewSnapshotProvider(snap, selPath).SetSelection(c.Context, []string{rec.NodeID}); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, success("Selected %s on %s (%s)", rec.NodeName, rec.PageName, selPath))
	return nil
}

func optimizeAsset(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	pa, err := e.latestScan()
	if err != nil {
		return err
	}
	rec, ok := recommend.Find(pa.AllRecommendations, c.String("rec"))
	if !ok {
		return fmt.Errorf("recommendation %s not found in scan %s", c.String("rec"), pa.ScanID)
	}

	saver, err := newSaver(e.cfg.Export)
	if err != nil {
		return err
	}

	optimize.Startup()
	defer optimize.Shutdown()

	client := &http.Client{Timeout: 2 * time.Minute}
	action := optimize.NewAction(optimize.NewVipsOptimizer(client), saver)

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	asset, err := action.Apply(ctx, rec, c.String("format"))
	if err != nil {
		return err
	}
	if err := e.store.SaveOptimized(e.project, asset); err != nil {
		return fmt.Errorf("failed to record optimized asset: %w", err)
	}

	if asset.HasTransparency && optimize.DropsTransparency(asset.Format) {
		fmt.Fprintln(c.App.Writer, warning("%s has transparency; %s output is flattened on white", rec.NodeName, asset.Format))
	}
	fmt.Fprintln(c.App.Writer, success("Saved %dx%d %s to %s (%s -> %s)",
		asset.Width, asset.Height, asset.Format, asset.SavedAs,
		utils.FormatSize(asset.OriginalSize), utils.FormatSize(asset.OptimizedSize)))
	return nil
}

func listOptimized(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	assets, err := e.store.OptimizedAssets(e.project)
	if err != nil {
		return err
	}
	f, err := e.formatter(c)
	if err != nil {
		return err
	}
	if f.Format != report.FormatTable {
		return f.Print(assets)
	}

	var saved int64
	data := report.TableData{Headers: []string{"Recommendation", "Format", "Size", "Original", "Optimized", "Saved as"}}
	for _, a := range assets {
		saved += a.Savings()
		data.Rows = append(data.Rows, []string{
			a.RecommendationID,
			a.Format,
			fmt.Sprintf("%dx%d", a.Width, a.Height),
			utils.FormatSize(a.OriginalSize),
			utils.FormatSize(a.OptimizedSize),
			a.SavedAs,
		})
	}
	f.PrintTable(data)
	fmt.Fprintf(f.Writer, "\nTotal saved: %s\n", utils.FormatSize(saved))
	return nil
}

// newSaver picks the destination for optimized files
func newSaver(cfg config.ExportConfig) (optimize.Saver, error) {
	if cfg.Provider == "s3" {
		return optimize.NewMinioSaver(optimize.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Folder:    cfg.S3Folder,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	}
	return optimize.NewLocalSaver(cfg.LocalDir)
}

// selectionPath is the default selection file next to a snapshot
func selectionPath(snapshot string) string {
	return strings.TrimSuffix(snapshot, filepath.Ext(snapshot)) + ".selection.json"
}
