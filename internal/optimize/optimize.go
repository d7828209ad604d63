// Package optimize re-encodes recommended images and hands the result to a
// Saver.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrNotAnImage        = errors.New("source is not an image")
	ErrTransformFailed   = errors.New("image transformation failed")
	ErrSourceTooLarge    = errors.New("source image exceeds maximum download size")
)

// MaxDimension is the largest width or height produced
const MaxDimension = 8192

// DefaultMaxSourceBytes caps how much of a source image is downloaded
const DefaultMaxSourceBytes = 50 << 20

// DefaultFormat is used when no output format is requested
const DefaultFormat = "webp"

// SupportedFormats lists the output formats
var SupportedFormats = map[string]bool{
	"webp": true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"avif": true,
}

// Request describes one optimization. Zero Width and Height keep the source size.
type Request struct {
	URL     string
	Width   int
	Height  int
	Format  string
	Quality int
}

// Result is the optimizer's output
type Result struct {
	Bytes           []byte
	ContentType     string
	Width           int
	Height          int
	OriginalSize    int64
	OptimizedSize   int64
	HasTransparency bool
}

// Optimizer fetches, resizes and re-encodes an image
type Optimizer interface {
	Optimize(ctx context.Context, req Request) (*Result, error)
}

// NormalizeFormat lowercases a format and applies the default
func NormalizeFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		return DefaultFormat, nil
	}
	if !SupportedFormats[f] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if f == "jpeg" {
		f = "jpg"
	}
	return f, nil
}

// DropsTransparency reports whether encoding to format loses an alpha channel
func DropsTransparency(format string) bool {
	f, err := NormalizeFormat(format)
	return err == nil && f == "jpg"
}

// ContentType returns the MIME type of an output format
func ContentType(format string) string {
	switch format {
	case "webp":
		return "image/webp"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "avif":
		return "image/avif"
	}
	return "application/octet-stream"
}

// Validate checks and normalizes a request
func (r *Request) Validate() error {
	if !strings.HasPrefix(r.URL, "http://") && !strings.HasPrefix(r.URL, "https://") {
		return fmt.Errorf("%w: source must be an http(s) url", ErrNotAnImage)
	}
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("%w: dimensions cannot be negative", ErrInvalidDimensions)
	}
	if r.Width > MaxDimension || r.Height > MaxDimension {
		return fmt.Errorf("%w: exceeds maximum of %d", ErrInvalidDimensions, MaxDimension)
	}
	f, err := NormalizeFormat(r.Format)
	if err != nil {
		return err
	}
	r.Format = f
	if r.Quality <= 0 {
		r.Quality = 80
	} else if r.Quality > 100 {
		r.Quality = 100
	}
	return nil
}

// Scale returns the uniform scale that fits the source into the target box.
// It never enlarges.
func Scale(srcW, srcH, dstW, dstH int) float64 {
	if srcW <= 0 || srcH <= 0 {
		return 1
	}
	scale := 1.0
	if dstW > 0 {
		scale = float64(dstW) / float64(srcW)
	}
	if dstH > 0 {
		scale = min(scale, float64(dstH)/float64(srcH))
	}
	return min(scale, 1)
}

// VipsOptimizer implements Optimizer with libvips
type VipsOptimizer struct {
	client   *http.Client
	maxBytes int64
}

// Startup initializes libvips. Call once before the first Optimize.
func Startup() {
	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(nil)
}

// Shutdown releases libvips
func Shutdown() {
	vips.Shutdown()
}

// NewVipsOptimizer creates an optimizer. client may be nil.
func NewVipsOptimizer(client *http.Client) *VipsOptimizer {
	if client == nil {
		client = http.DefaultClient
	}
	return &VipsOptimizer{client: client, maxBytes: DefaultMaxSourceBytes}
}

// Optimize downloads the source, resizes it to the requested box and encodes
// it in the requested format.
func (o *VipsOptimizer) Optimize(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	data, err := o.fetch(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	image, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	defer image.Close()

	hasAlpha := image.HasAlpha()
	if scale := Scale(image.Width(), image.Height(), req.Width, req.Height); scale < 1 {
		if err := image.Resize(scale, vips.KernelLanczos3); err != nil {
			return nil, fmt.Errorf("%w: resize failed: %v", ErrTransformFailed, err)
		}
	}

	if hasAlpha && DropsTransparency(req.Format) {
		if err := image.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return nil, fmt.Errorf("%w: flatten failed: %v", ErrTransformFailed, err)
		}
	}

	out, err := export(image, req.Format, req.Quality)
	if err != nil {
		return nil, fmt.Errorf("%w: export failed: %v", ErrTransformFailed, err)
	}

	log.Debug().
		Str("url", req.URL).
		Int("width", image.Width()).
		Int("height", image.Height()).
		Str("format", req.Format).
		Int("original", len(data)).
		Int("optimized", len(out)).
		Msg("Image optimized")

	return &Result{
		Bytes:           out,
		ContentType:     ContentType(req.Format),
		Width:           image.Width(),
		Height:          image.Height(),
		OriginalSize:    int64(len(data)),
		OptimizedSize:   int64(len(out)),
		HasTransparency: hasAlpha,
	}, nil
}

func (o *VipsOptimizer) fetch(ctx context.Context, src string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: status %d", src, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: content type %s", ErrNotAnImage, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src, err)
	}
	if int64(len(data)) > o.maxBytes {
		return nil, ErrSourceTooLarge
	}
	return data, nil
}

func export(image *vips.ImageRef, format string, quality int) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch format {
	case "webp":
		out, _, err = image.ExportWebp(&vips.WebpExportParams{Quality: quality})
	case "jpg":
		out, _, err = image.ExportJpeg(&vips.JpegExportParams{Quality: quality, OptimizeCoding: true})
	case "png":
		out, _, err = image.ExportPng(&vips.PngExportParams{Compression: 9})
	case "avif":
		out, _, err = image.ExportAvif(&vips.AvifExportParams{Quality: quality, Speed: 5})
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return out, err
}
