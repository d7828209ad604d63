package scanner

import (
	"context"
	"sync"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

// estimateAll fills EstimatedBytes for every asset using a fixed pool of
// workers. Each job owns one slice index, so workers never write the same
// element.
func (s *Scanner) estimateAll(ctx context.Context, assets []models.AssetRecord) {
	if len(assets) == 0 {
		return
	}

	jobs := make(chan int, s.cfg.NumWorkers)
	var wg sync.WaitGroup
	for i := 0; i < min(s.cfg.NumWorkers, len(assets)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				a := &assets[idx]
				a.EstimatedBytes = s.sizer.Estimate(ctx, *a, a.Breakpoint, s.cfg.Settings)
			}
		}()
	}

	for i := range assets {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
