package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/chmdznr/framer-bandwidth-check/internal/recommend"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

const (
	SheetPages           = "Pages"
	SheetAssets          = "Assets"
	SheetRecommendations = "Recommendations"
)

// Workbook builds the spreadsheet export of an analysis: one row per page
// and breakpoint, one per asset and one per recommendation.
func Workbook(pa *models.ProjectAnalysis, ignored []string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetPages); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetAssets, SheetRecommendations} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	pages := [][]any{{"Page", "Slug", "URL", "Breakpoint", "Total bytes", "Images", "Fonts", "HTML/CSS/JS", "SVG", "Assets"}}
	assets := [][]any{{"Page", "Breakpoint", "Node", "Kind", "Format", "URL", "Width", "Height", "Estimated bytes", "CMS"}}
	for _, p := range pa.Pages {
		for _, bp := range models.AllBreakpoints {
			pb, ok := p.Breakpoints[bp]
			if !ok {
				continue
			}
			pages = append(pages, []any{
				p.PageName, p.PageSlug, p.PageURL, string(bp), pb.TotalBytes,
				pb.Breakdown.Images, pb.Breakdown.Fonts, pb.Breakdown.HTMLCSS, pb.Breakdown.SVG, len(pb.Assets),
			})
			for _, a := range pb.Assets {
				assets = append(assets, []any{
					p.PageName, string(bp), a.NodeName, string(a.Kind), a.Format, a.URL,
					a.Dimensions.Width, a.Dimensions.Height, a.EstimatedBytes, a.IsCMSAsset,
				})
			}
		}
	}

	skip := make(map[string]bool)
	for _, id := range recommend.Reconcile(ignored, pa.AllRecommendations) {
		skip[id] = true
	}
	recs := [][]any{{"ID", "Priority", "Type", "Node", "Page", "Breakpoint", "Current bytes", "Savings", "Optimal width", "Optimal height", "CMS", "Ignored", "Description"}}
	for _, r := range pa.AllRecommendations {
		recs = append(recs, []any{
			r.ID, string(r.Priority), string(r.Type), r.NodeName, r.PageName, string(r.Breakpoint),
			r.CurrentBytes, r.PotentialSavings, r.OptimalWidth, r.OptimalHeight, r.IsCMSAsset, skip[r.ID], r.Description,
		})
	}

	for sheet, rows := range map[string][][]any{SheetPages: pages, SheetAssets: assets, SheetRecommendations: recs} {
		if err := writeRows(f, sheet, rows); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WriteXLSX writes the workbook to w
func WriteXLSX(w io.Writer, pa *models.ProjectAnalysis, ignored []string) error {
	f, err := Workbook(pa, ignored)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// ExportXLSX saves the workbook to path
func ExportXLSX(path string, pa *models.ProjectAnalysis, ignored []string) error {
	f, err := Workbook(pa, ignored)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
