// Package observability exposes Prometheus metrics for scans.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Probe outcomes
const (
	ProbeOK       = "ok"
	ProbeFallback = "fallback"
	ProbeCached   = "cached"
	ProbeInline   = "inline"
)

// Metrics holds the scan metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	nodesVisited  prometheus.Counter
	visitErrors   prometheus.Counter
	probesTotal   *prometheus.CounterVec
	probeDuration prometheus.Histogram
	scansTotal    *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	assetBytes    *prometheus.GaugeVec
}

// NewMetrics creates the metrics on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		nodesVisited: factory.NewCounter(prometheus.CounterOpts{
			Name: "fbcheck_nodes_visited_total",
			Help: "Total number of graph nodes visited",
		}),
		visitErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "fbcheck_visit_errors_total",
			Help: "Total number of node visits that failed",
		}),
		probesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fbcheck_probes_total",
				Help: "Total number of asset size estimates by outcome",
			},
			[]string{"outcome"},
		),
		probeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fbcheck_probe_duration_seconds",
			Help:    "Network size probe latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fbcheck_scans_total",
				Help: "Total number of scans by result",
			},
			[]string{"result"},
		),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fbcheck_scan_duration_seconds",
			Help:    "Scan duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		assetBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fbcheck_breakpoint_bytes",
				Help: "Project weight of the last scan per breakpoint",
			},
			[]string{"breakpoint"},
		),
	}
}

// Registry returns the registry backing the metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) NodeVisited() {
	if m == nil {
		return
	}
	m.nodesVisited.Inc()
}

func (m *Metrics) VisitError() {
	if m == nil {
		return
	}
	m.visitErrors.Inc()
}

// Probe records an estimate outcome and, for network probes, its latency
func (m *Metrics) Probe(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.probeDuration.Observe(d.Seconds())
	}
}

// Scan records a finished scan
func (m *Metrics) Scan(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.scansTotal.WithLabelValues(result).Inc()
	m.scanDuration.Observe(d.Seconds())
}

// BreakpointBytes sets the last scan weight of a breakpoint
func (m *Metrics) BreakpointBytes(bp string, bytes int64) {
	if m == nil {
		return
	}
	m.assetBytes.WithLabelValues(bp).Set(float64(bytes))
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("address", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
