// Package report renders scan results as tables, JSON, YAML and workbooks.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/chmdznr/framer-bandwidth-check/internal/bandwidth"
	"github.com/chmdznr/framer-bandwidth-check/internal/recommend"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
	"github.com/chmdznr/framer-bandwidth-check/pkg/utils"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (valid: table, json, yaml)", s)
	}
}

// PageRow is one page at the report breakpoint
type PageRow struct {
	PageID     string           `json:"pageId" yaml:"pageId"`
	Name       string           `json:"name" yaml:"name"`
	Slug       string           `json:"slug" yaml:"slug"`
	TotalBytes int64            `json:"totalBytes" yaml:"totalBytes"`
	Breakdown  models.Breakdown `json:"breakdown" yaml:"breakdown"`
}

// Report is the printable view of one scan
type Report struct {
	ScanID          string                                        `json:"scanId" yaml:"scanId"`
	ScannedAt       time.Time                                     `json:"scannedAt" yaml:"scannedAt"`
	Breakpoint      models.Breakpoint                             `json:"breakpoint" yaml:"breakpoint"`
	TotalPages      int                                           `json:"totalPages" yaml:"totalPages"`
	Totals          map[models.Breakpoint]models.BreakpointTotals `json:"totals" yaml:"totals"`
	Pages           []PageRow                                     `json:"pages" yaml:"pages"`
	Recommendations []models.Recommendation                       `json:"recommendations" yaml:"recommendations"`
	Ignored         int                                           `json:"ignored" yaml:"ignored"`
	Stats           models.ScanStats                              `json:"stats" yaml:"stats"`
}

// Build assembles the report of an analysis at a breakpoint. Ignored
// recommendations are left out unless includeIgnored is set.
func Build(pa *models.ProjectAnalysis, bp models.Breakpoint, ignored []string, includeIgnored bool) *Report {
	r := &Report{
		ScanID:     pa.ScanID,
		ScannedAt:  pa.ScanTimestamp,
		Breakpoint: bp,
		TotalPages: pa.TotalPages,
		Totals:     pa.OverallBreakpoints,
		Pages:      make([]PageRow, 0, len(pa.Pages)),
		Stats:      pa.Stats,
	}
	for _, p := range pa.Pages {
		pb := p.Breakpoints[bp]
		r.Pages = append(r.Pages, PageRow{
			PageID:     p.PageID,
			Name:       p.PageName,
			Slug:       p.PageSlug,
			TotalBytes: pb.TotalBytes,
			Breakdown:  pb.Breakdown,
		})
	}

	active, hidden := recommend.Partition(pa.AllRecommendations, recommend.Reconcile(ignored, pa.AllRecommendations))
	r.Ignored = len(hidden)
	r.Recommendations = active
	if includeIgnored {
		r.Recommendations = pa.AllRecommendations
	}
	if r.Recommendations == nil {
		r.Recommendations = []models.Recommendation{}
	}
	return r
}

// Formatter writes reports in the configured format
type Formatter struct {
	Format Format
	Color  bool
	Writer io.Writer
}

// NewFormatter creates a formatter writing to stdout
func NewFormatter(format Format) *Formatter {
	return &Formatter{Format: format, Color: !color.NoColor, Writer: os.Stdout}
}

// Print outputs data as JSON or YAML
func (f *Formatter) Print(data any) error {
	if f.Format == FormatYAML {
		encoder := yaml.NewEncoder(f.Writer)
		encoder.SetIndent(2)
		defer func() { _ = encoder.Close() }()
		return encoder.Encode(data)
	}
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// PrintReport writes a report
func (f *Formatter) PrintReport(r *Report) error {
	if f.Format != FormatTable {
		return f.Print(r)
	}

	fmt.Fprintf(f.Writer, "Scan %s (%s), %d pages\n\n", r.ScanID, r.ScannedAt.Format(time.RFC3339), r.TotalPages)

	totals := TableData{Headers: []string{"Breakpoint", "Total", "Images", "Fonts", "HTML/CSS/JS", "SVG"}}
	for _, bp := range models.AllBreakpoints {
		t, ok := r.Totals[bp]
		if !ok {
			continue
		}
		totals.Rows = append(totals.Rows, append([]string{string(bp)}, sizes(t.TotalBytes, t.Breakdown)...))
	}
	f.PrintTable(totals)
	fmt.Fprintln(f.Writer)

	pages := TableData{Headers: []string{"Page", "Slug", "Total", "Images", "Fonts", "HTML/CSS/JS", "SVG"}}
	for _, p := range r.Pages {
		pages.Rows = append(pages.Rows, append([]string{p.Name, "/" + p.Slug}, sizes(p.TotalBytes, p.Breakdown)...))
	}
	fmt.Fprintf(f.Writer, "Pages at %s\n", r.Breakpoint)
	f.PrintTable(pages)
	fmt.Fprintln(f.Writer)

	recs := TableData{Headers: []string{"ID", "Priority", "Type", "Node", "Page", "Current", "Savings", "Action"}}
	for _, rec := range r.Recommendations {
		recs.Rows = append(recs.Rows, []string{
			rec.ID,
			f.priority(rec.Priority),
			string(rec.Type),
			rec.NodeName,
			rec.PageName,
			utils.FormatSize(rec.CurrentBytes),
			utils.FormatSize(rec.PotentialSavings),
			action(rec),
		})
	}
	fmt.Fprintf(f.Writer, "Recommendations (%d, %d ignored)\n", len(r.Recommendations), r.Ignored)
	f.PrintTable(recs)
	return nil
}

// PrintProjection writes a bandwidth projection
func (f *Formatter) PrintProjection(p *bandwidth.Projection, a bandwidth.Assumptions) error {
	if f.Format != FormatTable {
		return f.Print(map[string]any{"assumptions": a, "projection": p})
	}

	plan := fmt.Sprintf("%s (%.0f GB, %.1f%% used)", p.PlanFit.Plan.Name, p.PlanFit.Plan.LimitGB, p.PlanFit.UsagePercent)
	if p.PlanFit.Exceeded {
		warn := color.New(color.FgRed, color.Bold)
		if !f.Color {
			warn.DisableColor()
		}
		plan += " " + warn.Sprintf("over by %s", utils.FormatGB(p.PlanFit.OverageGB))
	}

	f.PrintTable(TableData{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Monthly pageviews", utils.FormatCount(a.MonthlyPageviews)},
			{"Pages per visit", fmt.Sprintf("%.1f", a.AveragePagesPerVisit)},
			{"Heaviest page", utils.FormatSize(p.HeaviestPageBytes)},
			{"Mean other page", utils.FormatSize(int64(p.MeanOtherPageBytes))},
			{"CMS per visit", utils.FormatSize(p.CMSBytesPerVisit)},
			{"Bytes per visit", utils.FormatSize(int64(p.BytesPerVisit))},
			{"Monthly bandwidth", utils.FormatGB(p.MonthlyBandwidthGB)},
			{"Plan", plan},
		},
	})
	return nil
}

// TableData represents tabular data for table output
type TableData struct {
	Headers []string
	Rows    [][]string
}

// PrintTable prints formatted table output
func (f *Formatter) PrintTable(data TableData) {
	table := tablewriter.NewWriter(f.Writer)
	if len(data.Headers) > 0 {
		table.SetHeader(data.Headers)
	}

	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	table.AppendBulk(data.Rows)
	table.Render()
}

func (f *Formatter) priority(p models.Priority) string {
	var c *color.Color
	switch p {
	case models.PriorityHigh:
		c = color.New(color.FgRed, color.Bold)
	case models.PriorityMedium:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgGreen)
	}
	if !f.Color {
		c.DisableColor()
	}
	return c.Sprint(string(p))
}

func sizes(total int64, b models.Breakdown) []string {
	return []string{
		utils.FormatSize(total),
		utils.FormatSize(b.Images),
		utils.FormatSize(b.Fonts),
		utils.FormatSize(b.HTMLCSS),
		utils.FormatSize(b.SVG),
	}
}

func action(rec models.Recommendation) string {
	switch {
	case rec.IsCMSAsset:
		return "edit in CMS"
	case rec.Actionable:
		return "optimize"
	}
	return "manual"
}
