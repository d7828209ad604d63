package optimize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

// =============================================================================
// Format Tests
// =============================================================================

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		in      string
		out     string
		wantErr bool
	}{
		{"", "webp", false},
		{"WEBP", "webp", false},
		{"jpeg", "jpg", false},
		{" png ", "png", false},
		{"avif", "avif", false},
		{"gif", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.out, got)
		})
	}
}

func TestDropsTransparency(t *testing.T) {
	assert.True(t, DropsTransparency("jpg"))
	assert.True(t, DropsTransparency("jpeg"))
	assert.False(t, DropsTransparency("webp"))
	assert.False(t, DropsTransparency("png"))
	assert.False(t, DropsTransparency("avif"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/webp", ContentType("webp"))
	assert.Equal(t, "image/jpeg", ContentType("jpg"))
	assert.Equal(t, "image/avif", ContentType("avif"))
	assert.Equal(t, "application/octet-stream", ContentType("bmp"))
}

// =============================================================================
// Request Tests
// =============================================================================

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		err  error
	}{
		{"valid", Request{URL: "https://x/a.png", Width: 600, Height: 400}, nil},
		{"data url", Request{URL: "data:image/png;base64,AAAA"}, ErrNotAnImage},
		{"negative width", Request{URL: "https://x/a.png", Width: -1}, ErrInvalidDimensions},
		{"too large", Request{URL: "https://x/a.png", Width: MaxDimension + 1}, ErrInvalidDimensions},
		{"bad format", Request{URL: "https://x/a.png", Format: "tga"}, ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestRequest_ValidateDefaults(t *testing.T) {
	r := Request{URL: "https://x/a.png"}
	require.NoError(t, r.Validate())
	assert.Equal(t, "webp", r.Format)
	assert.Equal(t, 80, r.Quality)

	r = Request{URL: "https://x/a.png", Quality: 150}
	require.NoError(t, r.Validate())
	assert.Equal(t, 100, r.Quality)
}

func TestScale(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, dstW, dstH int
		expected               float64
	}{
		{"downscale to width", 3000, 2000, 600, 400, 0.2},
		{"height bound", 1000, 1000, 500, 250, 0.25},
		{"never enlarge", 300, 200, 600, 400, 1},
		{"no target", 3000, 2000, 0, 0, 1},
		{"zero source", 0, 0, 100, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Scale(tt.srcW, tt.srcH, tt.dstW, tt.dstH), 0.0001)
		})
	}
}

// =============================================================================
// Action Tests
// =============================================================================

type fakeOptimizer struct {
	got    Request
	result *Result
	err    error
}

func (f *fakeOptimizer) Optimize(_ context.Context, req Request) (*Result, error) {
	f.got = req
	return f.result, f.err
}

func oversizedRec() models.Recommendation {
	return models.Recommendation{
		ID:            "rec_1",
		NodeName:      "Hero",
		Type:          models.RecOversized,
		URL:           "https://framerusercontent.com/images/Hero%20Shot.png?scale-down-to=2048",
		OptimalWidth:  600,
		OptimalHeight: 400,
		Actionable:    true,
	}
}

func TestRequestFor(t *testing.T) {
	req, err := RequestFor(oversizedRec(), "")
	require.NoError(t, err)
	assert.Equal(t, 600, req.Width)
	assert.Equal(t, 400, req.Height)
	assert.Equal(t, "webp", req.Format)

	format := oversizedRec()
	format.Type = models.RecFormat
	req, err = RequestFor(format, "avif")
	require.NoError(t, err)
	assert.Zero(t, req.Width, "format conversion keeps the source size")
	assert.Equal(t, "avif", req.Format)
}

func TestRequestFor_Refusals(t *testing.T) {
	cms := oversizedRec()
	cms.IsCMSAsset = true
	_, err := RequestFor(cms, "")
	assert.ErrorIs(t, err, ErrCMSAsset)

	compression := oversizedRec()
	compression.Type = models.RecCompression
	_, err = RequestFor(compression, "")
	assert.ErrorIs(t, err, ErrNotOptimizable)

	inline := oversizedRec()
	inline.Actionable = false
	_, err = RequestFor(inline, "")
	assert.ErrorIs(t, err, ErrNotOptimizable)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Hero-Shot-600x400.webp", FileName(oversizedRec(), 600, 400, "webp"))

	noPath := oversizedRec()
	noPath.URL = "https://cdn.example.com/"
	assert.Equal(t, "Hero-600x400.jpg", FileName(noPath, 600, 400, "jpg"))

	unnamed := noPath
	unnamed.NodeName = "///"
	assert.Equal(t, "rec_1-1x1.png", FileName(unnamed, 1, 1, "png"))
}

func TestAction_Apply(t *testing.T) {
	dir := t.TempDir()
	saver, err := NewLocalSaver(dir)
	require.NoError(t, err)

	opt := &fakeOptimizer{result: &Result{
		Bytes:           []byte("webp-bytes"),
		ContentType:     "image/webp",
		Width:           600,
		Height:          400,
		OriginalSize:    2_000_000,
		OptimizedSize:   10,
		HasTransparency: true,
	}}

	asset, err := NewAction(opt, saver).Apply(context.Background(), oversizedRec(), "webp")
	require.NoError(t, err)

	assert.Equal(t, oversizedRec().URL, opt.got.URL)
	assert.Equal(t, "rec_1", asset.RecommendationID)
	assert.True(t, asset.HasTransparency)
	assert.Equal(t, int64(2_000_000-10), asset.Savings())
	assert.Equal(t, filepath.Join(dir, "Hero-Shot-600x400.webp"), asset.SavedAs)

	data, err := os.ReadFile(asset.SavedAs)
	require.NoError(t, err)
	assert.Equal(t, "webp-bytes", string(data))
}

func TestAction_OptimizerFailure(t *testing.T) {
	saver, err := NewLocalSaver(t.TempDir())
	require.NoError(t, err)

	opt := &fakeOptimizer{err: ErrNotAnImage}
	_, err = NewAction(opt, saver).Apply(context.Background(), oversizedRec(), "")
	assert.ErrorIs(t, err, ErrNotAnImage)
}

type failingSaver struct{}

func (failingSaver) Save(context.Context, []byte, string, string) (string, error) {
	return "", errors.New("disk full")
}

func TestAction_SaverFailure(t *testing.T) {
	opt := &fakeOptimizer{result: &Result{Bytes: []byte("x"), Width: 1, Height: 1}}
	_, err := NewAction(opt, failingSaver{}).Apply(context.Background(), oversizedRec(), "")
	assert.ErrorContains(t, err, "disk full")
}

// =============================================================================
// Saver Tests
// =============================================================================

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "a.webp", ObjectKey("", "a.webp"))
	assert.Equal(t, "assets/a.webp", ObjectKey("/assets/", "/a.webp"))
}

func TestNewMinioSaver(t *testing.T) {
	s, err := NewMinioSaver(MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "assets", Folder: "opt"})
	require.NoError(t, err)
	assert.Equal(t, "assets", s.bucket)
	assert.Equal(t, "opt", s.folder)
}
