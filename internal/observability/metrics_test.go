package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.NodeVisited()
		m.VisitError()
		m.Probe(ProbeOK, time.Second)
		m.Scan(nil, time.Second)
		m.BreakpointBytes("desktop", 10)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.NodeVisited()
	m.NodeVisited()
	m.VisitError()
	m.Probe(ProbeOK, 20*time.Millisecond)
	m.Probe(ProbeFallback, 0)
	m.Probe(ProbeFallback, 0)
	m.Scan(nil, time.Second)
	m.Scan(errors.New("boom"), time.Second)
	m.BreakpointBytes("desktop", 4096)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.nodesVisited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.visitErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probesTotal.WithLabelValues(ProbeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.probesTotal.WithLabelValues(ProbeFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansTotal.WithLabelValues("error")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.assetBytes.WithLabelValues("desktop")))
}

func TestMetrics_Registry(t *testing.T) {
	m := NewMetrics()
	m.NodeVisited()

	families, err := m.Registry().Gather()
	assert.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["fbcheck_nodes_visited_total"])
}
