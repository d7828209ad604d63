// Package bandwidth projects monthly bandwidth from page weights and traffic
// assumptions and picks the hosting plan that fits.
package bandwidth

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
	"github.com/chmdznr/framer-bandwidth-check/pkg/utils"
)

var ErrInvalidAssumptions = errors.New("invalid traffic assumptions")

// Assumptions are the user supplied traffic figures
type Assumptions struct {
	MonthlyPageviews     int64   `mapstructure:"monthly_pageviews" json:"monthlyPageviews"`
	AveragePagesPerVisit float64 `mapstructure:"pages_per_visit" json:"averagePagesPerVisit"`
}

// Validate rejects negative traffic figures
func (a Assumptions) Validate() error {
	if a.MonthlyPageviews < 0 {
		return fmt.Errorf("%w: monthly pageviews cannot be negative", ErrInvalidAssumptions)
	}
	if a.AveragePagesPerVisit < 0 {
		return fmt.Errorf("%w: pages per visit cannot be negative", ErrInvalidAssumptions)
	}
	return nil
}

// Plan is a hosting plan with a monthly bandwidth ceiling
type Plan struct {
	Name    string  `mapstructure:"name" json:"name"`
	LimitGB float64 `mapstructure:"limit_gb" json:"limitGb"`
}

// DefaultPlans returns the plan table in ascending order
func DefaultPlans() []Plan {
	return []Plan{
		{Name: "Mini", LimitGB: 10},
		{Name: "Basic", LimitGB: 50},
		{Name: "Pro", LimitGB: 100},
		{Name: "Scale", LimitGB: 250},
	}
}

// PlanFit is the plan selected for a projected usage
type PlanFit struct {
	Plan         Plan    `json:"plan"`
	Exceeded     bool    `json:"exceeded"`
	OverageGB    float64 `json:"overageGb"`
	UsagePercent float64 `json:"usagePercent"`
}

// Input is what the projector reads from a scan
type Input struct {
	Pages      []models.PageAnalysis
	Breakpoint models.Breakpoint
	// FallbackTotal stands in for a single page when Pages is empty
	FallbackTotal int64
	CMS           []models.ManualCMSEstimate
}

// InputFromAnalysis builds the projector input for a breakpoint
func InputFromAnalysis(pa *models.ProjectAnalysis, bp models.Breakpoint, cms []models.ManualCMSEstimate) Input {
	return Input{
		Pages:         pa.Pages,
		Breakpoint:    bp,
		FallbackTotal: pa.OverallBreakpoints[bp].TotalBytes,
		CMS:           cms,
	}
}

// Projection is the projected monthly usage
type Projection struct {
	HeaviestPageBytes  int64   `json:"heaviestPageBytes"`
	MeanOtherPageBytes float64 `json:"meanOtherPageBytes"`
	CMSBytesPerVisit   int64   `json:"cmsBytesPerVisit"`
	BytesPerVisit      float64 `json:"bytesPerVisit"`
	MonthlyBytes       float64 `json:"monthlyBytes"`
	MonthlyBandwidthGB float64 `json:"monthlyBandwidthGb"`
	PlanFit            PlanFit `json:"planFit"`
}

// PageWeights returns every page's weight at a breakpoint, falling back to
// the project total as a single page when there are no pages.
func PageWeights(in Input) []int64 {
	if len(in.Pages) == 0 {
		return []int64{in.FallbackTotal}
	}
	weights := make([]int64, len(in.Pages))
	for i, p := range in.Pages {
		weights[i] = p.TotalBytes(in.Breakpoint)
	}
	return weights
}

// BytesPerVisit models a visit as one load of the heaviest page plus
// (pagesPerVisit-1) loads of a page of mean weight among the other pages.
func BytesPerVisit(weights []int64, pagesPerVisit float64) (heaviest int64, meanOthers, perVisit float64) {
	if len(weights) == 0 {
		return 0, 0, 0
	}
	hi := 0
	for i, w := range weights {
		if w > weights[hi] {
			hi = i
		}
	}
	heaviest = weights[hi]

	if len(weights) > 1 {
		var sum int64
		for i, w := range weights {
			if i != hi {
				sum += w
			}
		}
		meanOthers = float64(sum) / float64(len(weights)-1)
	}

	extra := max(0, pagesPerVisit-1)
	return heaviest, meanOthers, float64(heaviest) + extra*meanOthers
}

// Project computes the monthly bandwidth and plan fit
func Project(in Input, a Assumptions, plans []Plan) (*Projection, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	heaviest, mean, perVisit := BytesPerVisit(PageWeights(in), a.AveragePagesPerVisit)

	var cms int64
	for _, est := range in.CMS {
		cms += est.TotalBytes()
	}
	perVisit += float64(cms)

	monthly := perVisit * float64(a.MonthlyPageviews)
	gb := perVisit / utils.BytesPerGB * float64(a.MonthlyPageviews)

	return &Projection{
		HeaviestPageBytes:  heaviest,
		MeanOtherPageBytes: mean,
		CMSBytesPerVisit:   cms,
		BytesPerVisit:      perVisit,
		MonthlyBytes:       monthly,
		MonthlyBandwidthGB: gb,
		PlanFit:            FitPlan(gb, plans),
	}, nil
}

// FitPlan selects the smallest plan whose ceiling covers usage. When usage
// exceeds every plan the largest is returned with the overage.
func FitPlan(usageGB float64, plans []Plan) PlanFit {
	if len(plans) == 0 {
		plans = DefaultPlans()
	}
	sorted := append([]Plan(nil), plans...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].LimitGB < sorted[j].LimitGB })

	for _, p := range sorted {
		if p.LimitGB >= usageGB {
			return PlanFit{Plan: p, UsagePercent: percent(usageGB, p.LimitGB)}
		}
	}
	largest := sorted[len(sorted)-1]
	return PlanFit{
		Plan:         largest,
		Exceeded:     true,
		OverageGB:    usageGB - largest.LimitGB,
		UsagePercent: percent(usageGB, largest.LimitGB),
	}
}

func percent(usage, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return usage / limit * 100
}
