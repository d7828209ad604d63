// Package estimate computes the byte weight of assets.
package estimate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/chmdznr/framer-bandwidth-check/internal/observability"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

const kb = 1024

// Settings are read once at scan start and passed into every estimate
type Settings struct {
	// IncludeFramerOptimization models the host re-encoding images on publish
	IncludeFramerOptimization bool
}

// DefaultFallbacks are used when an asset cannot be measured
func DefaultFallbacks() map[models.AssetKind]int64 {
	return map[models.AssetKind]int64{
		models.KindImage:      200 * kb,
		models.KindBackground: 200 * kb,
		models.KindFont:       50 * kb,
		models.KindVideo:      2048 * kb,
		models.KindSVG:        5 * kb,
		models.KindHTMLCSSJS:  100 * kb,
	}
}

// DefaultOptimizationFactors scale raster bytes when publish re-encoding is modelled
func DefaultOptimizationFactors() map[string]float64 {
	return map[string]float64{
		"png":                0.45,
		"jpg":                0.7,
		"jpeg":               0.7,
		"gif":                0.6,
		"bmp":                0.3,
		"tiff":               0.3,
		"webp":               0.95,
		"avif":               1.0,
		models.FormatUnknown: 0.8,
	}
}

// Config holds configuration for the estimator
type Config struct {
	Timeout   time.Duration
	Rate      float64 // probes per second, 0 = unlimited
	Burst     int
	UserAgent string
	CacheTTL  time.Duration
	Fallbacks map[models.AssetKind]int64
	Factors   map[string]float64
	Client    *http.Client
}

// DefaultConfig returns default estimator configuration
func DefaultConfig() Config {
	return Config{
		Timeout:   5 * time.Second,
		Rate:      20,
		Burst:     5,
		UserAgent: "fbcheck/1.0",
		CacheTTL:  10 * time.Minute,
		Fallbacks: DefaultFallbacks(),
		Factors:   DefaultOptimizationFactors(),
	}
}

func (c *Config) defaults() {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Burst <= 0 {
		c.Burst = def.Burst
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.Fallbacks == nil {
		c.Fallbacks = def.Fallbacks
	}
	if c.Factors == nil {
		c.Factors = def.Factors
	}
	if c.Client == nil {
		c.Client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		}
	}
}

type probeResult struct {
	size int64
	err  error
}

// Estimator sizes assets. One estimator serves one scan so that repeated
// estimates of the same source are stable within that scan.
type Estimator struct {
	cfg     Config
	limiter *rate.Limiter
	cache   *gocache.Cache
	group   singleflight.Group
	metrics *observability.Metrics

	probes   atomic.Int64
	failures atomic.Int64
}

// New creates an estimator. cfg and metrics may be nil.
func New(cfg *Config, metrics *observability.Metrics) *Estimator {
	var c Config
	if cfg != nil {
		c = *cfg
	} else {
		c = DefaultConfig()
	}
	c.defaults()

	limit := rate.Inf
	if c.Rate > 0 {
		limit = rate.Limit(c.Rate)
	}

	return &Estimator{
		cfg:     c,
		limiter: rate.NewLimiter(limit, c.Burst),
		cache:   gocache.New(c.CacheTTL, 2*c.CacheTTL),
		metrics: metrics,
	}
}

// Probes returns the number of network probes issued and how many failed
func (e *Estimator) Probes() (total, failed int64) {
	return e.probes.Load(), e.failures.Load()
}

// Fallback returns the conservative size used for an unmeasurable kind
func (e *Estimator) Fallback(kind models.AssetKind) int64 {
	return e.cfg.Fallbacks[kind]
}

// Estimate returns the byte weight of an asset at a breakpoint. It never
// fails: probe errors fall back to the per kind table. Zero is only returned
// for CMS assets without an addressable source.
func (e *Estimator) Estimate(ctx context.Context, asset models.AssetRecord, bp models.Breakpoint, settings Settings) int64 {
	base := e.base(ctx, asset, bp)
	if settings.IncludeFramerOptimization && asset.Kind.IsRaster() {
		return e.optimized(base, asset.Format)
	}
	return base
}

func (e *Estimator) base(ctx context.Context, asset models.AssetRecord, bp models.Breakpoint) int64 {
	switch {
	case asset.Kind == models.KindHTMLCSSJS:
		return e.cfg.Fallbacks[models.KindHTMLCSSJS]
	case asset.IsDataURL():
		e.metrics.Probe(observability.ProbeInline, 0)
		return DataURLBytes(asset.URL)
	case asset.URL == "" && asset.Inline != "":
		e.metrics.Probe(observability.ProbeInline, 0)
		return int64(len(asset.Inline))
	case asset.URL == "" && asset.IsCMSAsset:
		return 0
	case asset.URL == "":
		e.metrics.Probe(observability.ProbeFallback, 0)
		return e.cfg.Fallbacks[asset.Kind]
	}

	size, err := e.probe(ctx, asset.URL)
	if err != nil {
		fallback := e.cfg.Fallbacks[asset.Kind]
		log.Warn().
			Err(err).
			Str("url", asset.URL).
			Str("breakpoint", string(bp)).
			Int64("fallback", fallback).
			Msg("Size probe failed, using fallback estimate")
		return fallback
	}
	return size
}

func (e *Estimator) optimized(bytes int64, format string) int64 {
	factor, ok := e.cfg.Factors[format]
	if !ok {
		factor, ok = e.cfg.Factors[models.FormatUnknown]
	}
	if !ok || factor <= 0 {
		return bytes
	}
	return int64(math.Round(float64(bytes) * factor))
}

// probe returns the remote size of src, memoised for the estimator lifetime
func (e *Estimator) probe(ctx context.Context, src string) (int64, error) {
	if cached, ok := e.cache.Get(src); ok {
		e.metrics.Probe(observability.ProbeCached, 0)
		res := cached.(probeResult)
		return res.size, res.err
	}

	v, _, _ := e.group.Do(src, func() (interface{}, error) {
		start := time.Now()
		size, err := e.fetchSize(ctx, src)
		e.probes.Add(1)
		outcome := observability.ProbeOK
		if err != nil {
			e.failures.Add(1)
			outcome = observability.ProbeFallback
		}
		e.metrics.Probe(outcome, time.Since(start))

		res := probeResult{size: size, err: err}
		e.cache.SetDefault(src, res)
		return res, nil
	})
	res := v.(probeResult)
	return res.size, res.err
}

var errNoLength = errors.New("response carries no content length")

// fetchSize issues a HEAD request and falls back to a one byte range GET
func (e *Estimator) fetchSize(ctx context.Context, src string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := e.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit: %w", err)
	}

	size, err := e.head(ctx, src)
	if err == nil {
		return size, nil
	}
	log.Debug().Err(err).Str("url", src).Msg("HEAD probe failed, trying range request")

	size, rangeErr := e.rangeGet(ctx, src)
	if rangeErr != nil {
		return 0, fmt.Errorf("head: %v; range: %w", err, rangeErr)
	}
	return size, nil
}

func (e *Estimator) head(ctx context.Context, src string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, src, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)

	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("http %d", resp.StatusCode)
	}
	return contentLength(resp)
}

func (e *Estimator) rangeGet(ctx context.Context, src string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Range", "bytes=0-0")

	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return totalFromContentRange(resp.Header.Get("Content-Range"))
	case http.StatusOK:
		return contentLength(resp)
	}
	return 0, fmt.Errorf("http %d", resp.StatusCode)
}

func contentLength(resp *http.Response) (int64, error) {
	if resp.ContentLength > 0 {
		return resp.ContentLength, nil
	}
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errNoLength
}

// totalFromContentRange parses "bytes 0-0/12345"
func totalFromContentRange(v string) (int64, error) {
	_, total, ok := strings.Cut(v, "/")
	if !ok || total == "*" {
		return 0, errNoLength
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil || n <= 0 {
		return 0, errNoLength
	}
	return n, nil
}

// DataURLBytes estimates the decoded size of a data URI without fetching it
func DataURLBytes(src string) int64 {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return 0
	}
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return int64(float64(len(payload)) * 0.75)
	}
	if decoded, err := url.PathUnescape(payload); err == nil {
		return int64(len(decoded))
	}
	return int64(len(payload))
}
