package optimize

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

var (
	ErrCMSAsset       = errors.New("CMS images must be edited in the CMS")
	ErrNotOptimizable = errors.New("recommendation cannot be applied automatically")
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// RequestFor builds the optimize request for a recommendation. CMS assets
// and compression recommendations are refused.
func RequestFor(rec models.Recommendation, format string) (Request, error) {
	if rec.IsCMSAsset {
		return Request{}, fmt.Errorf("%w: %s", ErrCMSAsset, rec.NodeName)
	}
	if rec.Type == models.RecCompression {
		return Request{}, fmt.Errorf("%w: recompress %s in an image editor", ErrNotOptimizable, rec.NodeName)
	}
	if !rec.Actionable {
		return Request{}, fmt.Errorf("%w: %s has no downloadable source", ErrNotOptimizable, rec.NodeName)
	}

	req := Request{URL: rec.URL, Format: format}
	if rec.Type == models.RecOversized {
		req.Width, req.Height = rec.OptimalWidth, rec.OptimalHeight
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// FileName suggests a name for the optimized file
func FileName(rec models.Recommendation, width, height int, format string) string {
	base := rec.NodeName
	if u, err := url.Parse(rec.URL); err == nil && u.Path != "" && u.Path != "/" {
		base = strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
	}
	base = strings.Trim(unsafeName.ReplaceAllString(base, "-"), "-")
	if base == "" {
		base = rec.ID
	}
	return fmt.Sprintf("%s-%dx%d.%s", base, width, height, format)
}

// Action applies a recommendation: optimize, then save
type Action struct {
	optimizer Optimizer
	saver     Saver
}

func NewAction(optimizer Optimizer, saver Saver) *Action {
	return &Action{optimizer: optimizer, saver: saver}
}

// Apply optimizes the recommendation's source and saves the result. The
// returned asset records where the file went and whether transparency was
// present in the source.
func (a *Action) Apply(ctx context.Context, rec models.Recommendation, format string) (*models.OptimizedAsset, error) {
	req, err := RequestFor(rec, format)
	if err != nil {
		return nil, err
	}

	res, err := a.optimizer.Optimize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to optimize %s: %w", rec.NodeName, err)
	}
	if res.HasTransparency && DropsTransparency(req.Format) {
		log.Warn().Str("rec_id", rec.ID).Str("format", req.Format).Msg("Source has transparency that the output format discards")
	}

	name := FileName(rec, res.Width, res.Height, req.Format)
	saved, err := a.saver.Save(ctx, res.Bytes, name, res.ContentType)
	if err != nil {
		return nil, err
	}

	return &models.OptimizedAsset{
		RecommendationID: rec.ID,
		SourceURL:        rec.URL,
		Format:           req.Format,
		Width:            res.Width,
		Height:           res.Height,
		OriginalSize:     res.OriginalSize,
		OptimizedSize:    res.OptimizedSize,
		HasTransparency:  res.HasTransparency,
		SavedAs:          saved,
	}, nil
}
