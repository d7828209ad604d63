package bandwidth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

func page(id string, bytes int64) models.PageAnalysis {
	return models.PageAnalysis{
		PageID: id,
		Breakpoints: map[models.Breakpoint]models.PageBreakpoint{
			models.BreakpointDesktop: {BreakpointTotals: models.BreakpointTotals{TotalBytes: bytes}},
			models.BreakpointMobile:  {BreakpointTotals: models.BreakpointTotals{TotalBytes: bytes / 2}},
		},
	}
}

func threePages() Input {
	return Input{
		Pages: []models.PageAnalysis{
			page("about", 1_000_000),
			page("home", 5_000_000),
			page("contact", 500_000),
		},
		Breakpoint: models.BreakpointDesktop,
	}
}

// =============================================================================
// Project Tests
// =============================================================================

func TestProject_ThreePages(t *testing.T) {
	p, err := Project(threePages(), Assumptions{MonthlyPageviews: 10000, AveragePagesPerVisit: 2}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(5_000_000), p.HeaviestPageBytes)
	assert.InDelta(t, 750_000, p.MeanOtherPageBytes, 0.001)
	assert.InDelta(t, 5_750_000, p.BytesPerVisit, 0.001)
	assert.InDelta(t, 57_500_000_000, p.MonthlyBytes, 1)
	assert.InDelta(t, 53.55, p.MonthlyBandwidthGB, 0.01)

	assert.Equal(t, "Pro", p.PlanFit.Plan.Name)
	assert.False(t, p.PlanFit.Exceeded)
	assert.InDelta(t, 53.55, p.PlanFit.UsagePercent, 0.01)
}

func TestProject_Breakpoint(t *testing.T) {
	in := threePages()
	in.Breakpoint = models.BreakpointMobile
	p, err := Project(in, Assumptions{MonthlyPageviews: 1, AveragePagesPerVisit: 1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2_500_000, p.BytesPerVisit, 0.001)
}

func TestProject_SinglePageVisit(t *testing.T) {
	p, err := Project(threePages(), Assumptions{MonthlyPageviews: 100, AveragePagesPerVisit: 1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 5_000_000, p.BytesPerVisit, 0.001)

	// fewer than one page per visit never goes below the heaviest page
	p, err = Project(threePages(), Assumptions{MonthlyPageviews: 100, AveragePagesPerVisit: 0.5}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 5_000_000, p.BytesPerVisit, 0.001)
}

func TestProject_NoPagesUsesFallbackTotal(t *testing.T) {
	in := Input{Breakpoint: models.BreakpointDesktop, FallbackTotal: 2_000_000}
	p, err := Project(in, Assumptions{MonthlyPageviews: 10, AveragePagesPerVisit: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), p.HeaviestPageBytes)
	assert.Zero(t, p.MeanOtherPageBytes)
	assert.InDelta(t, 2_000_000, p.BytesPerVisit, 0.001)
}

func TestProject_CMSEstimatesAreAdditive(t *testing.T) {
	in := threePages()
	in.CMS = []models.ManualCMSEstimate{
		{CollectionID: "posts", AverageBytesPerItem: 100_000, ItemCount: 5},
		{CollectionID: "team", AverageBytesPerItem: 50_000, ItemCount: 2},
	}
	p, err := Project(in, Assumptions{MonthlyPageviews: 1, AveragePagesPerVisit: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(600_000), p.CMSBytesPerVisit)
	assert.InDelta(t, 6_350_000, p.BytesPerVisit, 0.001)
}

func TestProject_InvalidAssumptions(t *testing.T) {
	tests := []struct {
		name string
		a    Assumptions
	}{
		{"negative pageviews", Assumptions{MonthlyPageviews: -1, AveragePagesPerVisit: 1}},
		{"negative pages per visit", Assumptions{MonthlyPageviews: 1, AveragePagesPerVisit: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Project(threePages(), tt.a, nil)
			assert.ErrorIs(t, err, ErrInvalidAssumptions)
		})
	}
}

func TestBytesPerVisit_Empty(t *testing.T) {
	h, m, v := BytesPerVisit(nil, 2)
	assert.Zero(t, h)
	assert.Zero(t, m)
	assert.Zero(t, v)
}

// =============================================================================
// FitPlan Tests
// =============================================================================

func TestFitPlan(t *testing.T) {
	tests := []struct {
		name     string
		usage    float64
		plan     string
		exceeded bool
		overage  float64
	}{
		{"zero usage", 0, "Mini", false, 0},
		{"exactly at ceiling", 10, "Mini", false, 0},
		{"just above mini", 10.01, "Basic", false, 0},
		{"within pro", 99, "Pro", false, 0},
		{"over every plan", 300, "Scale", true, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fit := FitPlan(tt.usage, DefaultPlans())
			assert.Equal(t, tt.plan, fit.Plan.Name)
			assert.Equal(t, tt.exceeded, fit.Exceeded)
			assert.InDelta(t, tt.overage, fit.OverageGB, 0.0001)
		})
	}
}

func TestFitPlan_UnsortedCustomPlans(t *testing.T) {
	plans := []Plan{{Name: "Big", LimitGB: 500}, {Name: "Small", LimitGB: 5}}
	assert.Equal(t, "Small", FitPlan(4, plans).Plan.Name)
	assert.Equal(t, "Big", FitPlan(6, plans).Plan.Name)
	assert.Equal(t, "Small", plans[1].Name, "input is not reordered")
}

// =============================================================================
// Calculator Tests
// =============================================================================

func TestCalculator(t *testing.T) {
	c, err := NewCalculator(threePages(), Assumptions{MonthlyPageviews: 10000, AveragePagesPerVisit: 2}, nil)
	require.NoError(t, err)

	p := c.Apply(ActionMorePageviews)
	assert.Equal(t, int64(20000), c.Assumptions().MonthlyPageviews)
	assert.InDelta(t, 107.1, p.MonthlyBandwidthGB, 0.1)
	assert.Equal(t, "Scale", p.PlanFit.Plan.Name)

	c.Apply(ActionFewerPageviews)
	c.Apply(ActionFewerPageviews)
	assert.Equal(t, int64(9000), c.Assumptions().MonthlyPageviews)

	c.Apply(ActionMorePagesPerVisit)
	assert.InDelta(t, 2.5, c.Assumptions().AveragePagesPerVisit, 0.0001)

	for range 10 {
		c.Apply(ActionFewerPagesPerVisit)
	}
	assert.InDelta(t, 1, c.Assumptions().AveragePagesPerVisit, 0.0001)

	c.Apply(ActionReset)
	assert.Equal(t, Assumptions{MonthlyPageviews: 10000, AveragePagesPerVisit: 2}, c.Assumptions())
}

func TestCalculator_PageviewsFloorAtZero(t *testing.T) {
	c, err := NewCalculator(threePages(), Assumptions{MonthlyPageviews: 500, AveragePagesPerVisit: 1}, nil)
	require.NoError(t, err)
	c.Apply(ActionFewerPageviews)
	assert.Zero(t, c.Assumptions().MonthlyPageviews)
	assert.Zero(t, c.Projection().MonthlyBandwidthGB)
}

func TestCalculator_RejectsInvalid(t *testing.T) {
	_, err := NewCalculator(threePages(), Assumptions{MonthlyPageviews: -5}, nil)
	assert.ErrorIs(t, err, ErrInvalidAssumptions)
}

func TestPageviewStep(t *testing.T) {
	tests := []struct {
		n    int64
		step int64
	}{
		{0, 1000}, {9999, 1000}, {10000, 10000}, {250000, 100000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.step, pageviewStep(tt.n), "n=%d", tt.n)
	}
}
