package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

func recs(ids ...string) []models.Recommendation {
	out := make([]models.Recommendation, len(ids))
	for i, id := range ids {
		out[i] = models.Recommendation{ID: id}
	}
	return out
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		ignored  []string
		current  []models.Recommendation
		expected []string
	}{
		{"all still present", []string{"b", "a"}, recs("a", "b", "c"), []string{"a", "b"}},
		{"stale ids dropped", []string{"a", "gone"}, recs("a"), []string{"a"}},
		{"duplicates collapsed", []string{"a", "a"}, recs("a"), []string{"a"}},
		{"nothing ignored", nil, recs("a"), nil},
		{"empty scan drops everything", []string{"a"}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Reconcile(tt.ignored, tt.current))
		})
	}
}

func TestDropped(t *testing.T) {
	assert.Equal(t, []string{"x", "y"}, Dropped([]string{"y", "a", "x"}, recs("a")))
	assert.Nil(t, Dropped([]string{"a"}, recs("a")))
}

func TestPartition(t *testing.T) {
	active, hidden := Partition(recs("a", "b", "c"), []string{"b"})
	assert.Equal(t, recs("a", "c"), active)
	assert.Equal(t, recs("b"), hidden)
}

func TestFind(t *testing.T) {
	r, ok := Find(recs("a", "b"), "b")
	assert.True(t, ok)
	assert.Equal(t, "b", r.ID)

	_, ok = Find(recs("a"), "z")
	assert.False(t, ok)
}
