package scanner

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

// Ticket orders scans by the time they started
type Ticket uint64

// Store keeps the analysis of the most recently started scan that has
// completed. A scan that finishes after a newer one has been committed is
// discarded.
type Store struct {
	mu        sync.Mutex
	next      Ticket
	committed Ticket
	current   *models.ProjectAnalysis
}

// NewStore creates a store, optionally seeded with a previous analysis
func NewStore(previous *models.ProjectAnalysis) *Store {
	return &Store{current: previous}
}

// Begin issues the ticket for a new scan
func (s *Store) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

// Commit publishes an analysis unless a newer scan was already committed
func (s *Store) Commit(t Ticket, analysis *models.ProjectAnalysis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t <= s.committed {
		return false
	}
	s.committed = t
	s.current = analysis
	return true
}

// Current returns the last committed analysis, nil before the first scan
func (s *Store) Current() *models.ProjectAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Run scans and commits the result. On failure the previous analysis stays
// current and the error is returned.
func (s *Store) Run(ctx context.Context, sc *Scanner) (*models.ProjectAnalysis, error) {
	t := s.Begin()
	analysis, err := sc.Scan(ctx)
	if err != nil {
		return s.Current(), err
	}
	if !s.Commit(t, analysis) {
		log.Debug().Str("scan_id", analysis.ScanID).Msg("Discarding stale scan result")
	}
	return s.Current(), nil
}
