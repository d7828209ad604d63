package recommend

import (
	"sort"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

// Reconcile keeps the ignored ids that still name a recommendation in the
// current set. Ids of recommendations that disappeared are dropped.
func Reconcile(ignored []string, current []models.Recommendation) []string {
	present := make(map[string]bool, len(current))
	for _, r := range current {
		present[r.ID] = true
	}
	seen := make(map[string]bool, len(ignored))
	var kept []string
	for _, id := range ignored {
		if present[id] && !seen[id] {
			kept = append(kept, id)
			seen[id] = true
		}
	}
	sort.Strings(kept)
	return kept
}

// Dropped returns the ignored ids that Reconcile would remove
func Dropped(ignored []string, current []models.Recommendation) []string {
	kept := make(map[string]bool)
	for _, id := range Reconcile(ignored, current) {
		kept[id] = true
	}
	var out []string
	for _, id := range ignored {
		if !kept[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Partition splits recommendations into active and ignored, keeping order
func Partition(recs []models.Recommendation, ignored []string) (active, hidden []models.Recommendation) {
	skip := make(map[string]bool, len(ignored))
	for _, id := range ignored {
		skip[id] = true
	}
	for _, r := range recs {
		if skip[r.ID] {
			hidden = append(hidden, r)
		} else {
			active = append(active, r)
		}
	}
	return active, hidden
}

// Find returns the recommendation with the given id
func Find(recs []models.Recommendation, id string) (models.Recommendation, bool) {
	for _, r := range recs {
		if r.ID == id {
			return r, true
		}
	}
	return models.Recommendation{}, false
}
