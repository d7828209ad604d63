package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "fbcheck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func analysis(id string, at time.Time, desktop int64) *models.ProjectAnalysis {
	return &models.ProjectAnalysis{
		ScanID:        id,
		TotalPages:    1,
		ScanTimestamp: at,
		Pages: []models.PageAnalysis{{
			PageID:   "home",
			PageName: "Home",
			Breakpoints: map[models.Breakpoint]models.PageBreakpoint{
				models.BreakpointDesktop: {
					BreakpointTotals: models.BreakpointTotals{TotalBytes: desktop},
					Assets:           []models.AssetRecord{{NodeID: "hero", Kind: models.KindImage, EstimatedBytes: desktop}},
				},
			},
		}},
		OverallBreakpoints: map[models.Breakpoint]models.BreakpointTotals{
			models.BreakpointDesktop: {TotalBytes: desktop},
		},
		AllRecommendations: []models.Recommendation{{ID: "rec_1"}},
	}
}

// =============================================================================
// Settings Tests
// =============================================================================

func TestSettings(t *testing.T) {
	db := openTest(t)

	_, err := db.GetSetting("theme")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SetSetting("theme", "dark"))
	require.NoError(t, db.SetSetting("theme", "light"))
	require.NoError(t, db.SetSetting("include_framer_optimization", "false"))

	v, err := db.GetSetting("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", v)

	all, err := db.Settings()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"theme": "light", "include_framer_optimization": "false"}, all)
}

// =============================================================================
// Scan History Tests
// =============================================================================

func TestScans(t *testing.T) {
	db := openTest(t)

	_, err := db.LatestScan("demo")
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveScan("demo", analysis("s1", base, 1000)))
	require.NoError(t, db.SaveScan("demo", analysis("s2", base.Add(time.Hour), 2000)))
	require.NoError(t, db.SaveScan("other", analysis("s3", base.Add(2*time.Hour), 3000)))

	latest, err := db.LatestScan("demo")
	require.NoError(t, err)
	assert.Equal(t, "s2", latest.ScanID)
	assert.True(t, latest.ScanTimestamp.Equal(base.Add(time.Hour)))
	require.Len(t, latest.Pages, 1)
	assert.Equal(t, int64(2000), latest.Pages[0].TotalBytes(models.BreakpointDesktop))
	assert.Equal(t, "hero", latest.Pages[0].Breakpoints[models.BreakpointDesktop].Assets[0].NodeID)

	scans, err := db.ListScans("demo", 10)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "s2", scans[0].ScanID)
	assert.Equal(t, int64(2000), scans[0].DesktopBytes)
	assert.Equal(t, 1, scans[0].Recommendations)
	assert.Equal(t, "s1", scans[1].ScanID)
}

// =============================================================================
// Ignored Set Tests
// =============================================================================

func TestIgnored(t *testing.T) {
	db := openTest(t)

	require.NoError(t, db.Ignore("demo", "rec_b"))
	require.NoError(t, db.Ignore("demo", "rec_a"))
	require.NoError(t, db.Ignore("demo", "rec_a"))
	require.NoError(t, db.Ignore("other", "rec_z"))

	ids, err := db.IgnoredIDs("demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"rec_a", "rec_b"}, ids)

	require.NoError(t, db.Restore("demo", "rec_a"))
	assert.ErrorIs(t, db.Restore("demo", "rec_a"), ErrNotFound)

	require.NoError(t, db.ReplaceIgnored("demo", []string{"rec_c", "rec_d"}))
	ids, err = db.IgnoredIDs("demo")
	require.NoError(t, err)
	assert.Equal(t, []string{"rec_c", "rec_d"}, ids)

	ids, err = db.IgnoredIDs("other")
	require.NoError(t, err)
	assert.Equal(t, []string{"rec_z"}, ids)
}

// =============================================================================
// CMS Estimate Tests
// =============================================================================

func TestCMSEstimates(t *testing.T) {
	db := openTest(t)

	require.NoError(t, db.SetCMSEstimate("demo", models.ManualCMSEstimate{CollectionID: "posts", AverageBytesPerItem: 100, ItemCount: 5}))
	require.NoError(t, db.SetCMSEstimate("demo", models.ManualCMSEstimate{CollectionID: "posts", AverageBytesPerItem: 200, ItemCount: 3}))
	require.NoError(t, db.SetCMSEstimate("demo", models.ManualCMSEstimate{CollectionID: "authors", AverageBytesPerItem: 50, ItemCount: 2}))

	list, err := db.CMSEstimates("demo")
	require.NoError(t, err)
	assert.Equal(t, []models.ManualCMSEstimate{
		{CollectionID: "authors", AverageBytesPerItem: 50, ItemCount: 2},
		{CollectionID: "posts", AverageBytesPerItem: 200, ItemCount: 3},
	}, list)

	require.NoError(t, db.RemoveCMSEstimate("demo", "posts"))
	assert.ErrorIs(t, db.RemoveCMSEstimate("demo", "posts"), ErrNotFound)

	list, err = db.CMSEstimates("demo")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =============================================================================
// Optimized Asset Tests
// =============================================================================

func TestOptimized(t *testing.T) {
	db := openTest(t)

	o := &models.OptimizedAsset{
		RecommendationID: "rec_1",
		SourceURL:        "https://cdn.example.com/hero.png",
		Format:           "webp",
		Width:            600,
		Height:           400,
		OriginalSize:     2_000_000,
		OptimizedSize:    80_000,
		HasTransparency:  true,
		SavedAs:          "out/hero-600x400.webp",
	}
	require.NoError(t, db.SaveOptimized("demo", o))

	list, err := db.OptimizedAssets("demo")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, *o, list[0])
	assert.Equal(t, int64(1_920_000), list[0].Savings())
}
