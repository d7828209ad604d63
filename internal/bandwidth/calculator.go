package bandwidth

import "math"

// Action is a single adjustment in the interactive calculator
type Action int

const (
	ActionNone Action = iota
	ActionMorePageviews
	ActionFewerPageviews
	ActionMorePagesPerVisit
	ActionFewerPagesPerVisit
	ActionReset
)

const (
	minPageviewStep   = 1000
	pagesPerVisitStep = 0.5
	minPagesPerVisit  = 1
)

// Calculator holds the adjustable assumptions for one scan and recomputes the
// projection on every change.
type Calculator struct {
	input   Input
	plans   []Plan
	initial Assumptions
	current Assumptions
}

func NewCalculator(in Input, a Assumptions, plans []Plan) (*Calculator, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{input: in, plans: plans, initial: a, current: a}, nil
}

func (c *Calculator) Assumptions() Assumptions {
	return c.current
}

// Apply adjusts the assumptions and returns the new projection
func (c *Calculator) Apply(action Action) *Projection {
	switch action {
	case ActionMorePageviews:
		c.current.MonthlyPageviews += pageviewStep(c.current.MonthlyPageviews)
	case ActionFewerPageviews:
		c.current.MonthlyPageviews = max(0, c.current.MonthlyPageviews-pageviewStep(c.current.MonthlyPageviews-1))
	case ActionMorePagesPerVisit:
		c.current.AveragePagesPerVisit += pagesPerVisitStep
	case ActionFewerPagesPerVisit:
		c.current.AveragePagesPerVisit = math.Max(minPagesPerVisit, c.current.AveragePagesPerVisit-pagesPerVisitStep)
	case ActionReset:
		c.current = c.initial
	}
	return c.Projection()
}

func (c *Calculator) Projection() *Projection {
	// current always passes validation, so the error is unreachable
	p, _ := Project(c.input, c.current, c.plans)
	return p
}

// pageviewStep scales with magnitude: 1000 below 10k, 10k below 100k, and so on
func pageviewStep(n int64) int64 {
	step := int64(minPageviewStep)
	for n >= step*10 {
		step *= 10
	}
	return step
}
