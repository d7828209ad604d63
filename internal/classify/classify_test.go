package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmdznr/framer-bandwidth-check/internal/graph"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{"png extension", "https://framerusercontent.com/images/abc.png", "png"},
		{"uppercase extension", "https://cdn.example.com/Photo.JPG", "jpg"},
		{"extension with query", "https://cdn.example.com/a.webp?scale-down-to=512", "webp"},
		{"font", "https://fonts.example.com/inter.woff2", "woff2"},
		{"data uri png", "data:image/png;base64,iVBORw0KGgo=", "png"},
		{"data uri svg", "data:image/svg+xml;utf8,<svg/>", "svg"},
		{"data uri not image", "data:text/plain;base64,aGk=", models.FormatUnknown},
		{"data uri without comma", "data:image/png", models.FormatUnknown},
		{"opaque cdn url", "https://images.example.com/v1/3f9a0c", models.FormatUnknown},
		{"unknown extension", "https://example.com/render.php", models.FormatUnknown},
		{"empty", "", models.FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectFormat(tt.src))
		})
	}
}

func TestFormatGroups(t *testing.T) {
	assert.True(t, IsLegacyRaster("png"))
	assert.True(t, IsLegacyRaster("jpeg"))
	assert.False(t, IsLegacyRaster("webp"))
	assert.False(t, IsLegacyRaster(models.FormatUnknown))
	assert.True(t, IsModernRaster("avif"))
	assert.False(t, IsModernRaster("png"))
}

func TestInspect_Order(t *testing.T) {
	// An image node that also carries a decorative background is a background.
	d := &graph.NodeDetail{
		ID:              "n1",
		Name:            "Hero",
		Type:            graph.TypeImage,
		Width:           300,
		Height:          200,
		BackgroundImage: []graph.ImageAttr{{URL: ""}, {URL: "https://cdn.example.com/bg.jpg", Width: 1920, Height: 1080}},
		Image:           &graph.ImageAttr{URL: "https://cdn.example.com/fg.png"},
	}

	n := Inspect(d)
	assert.Equal(t, NodeBackground, n.Kind)
	assert.Equal(t, "https://cdn.example.com/bg.jpg", n.Source)
	assert.Equal(t, models.Dimensions{Width: 1920, Height: 1080}, n.Intrinsic)
	assert.Equal(t, models.Dimensions{Width: 300, Height: 200}, n.Rendered)
	assert.True(t, n.Visible)
}

func TestClassify(t *testing.T) {
	hidden := false

	tests := []struct {
		name   string
		node   *graph.NodeDetail
		kind   models.AssetKind
		format string
		isNil  bool
	}{
		{
			name:  "plain container",
			node:  &graph.NodeDetail{ID: "c", Type: graph.TypeFrame},
			isNil: true,
		},
		{
			name:  "text without font",
			node:  &graph.NodeDetail{ID: "t", Type: graph.TypeText},
			isNil: true,
		},
		{
			name:   "image",
			node:   &graph.NodeDetail{ID: "i", Type: graph.TypeImage, Image: &graph.ImageAttr{URL: "https://x/a.png"}},
			kind:   models.KindImage,
			format: "png",
		},
		{
			name:   "image type without attribute",
			node:   &graph.NodeDetail{ID: "i", Type: graph.TypeImage},
			kind:   models.KindImage,
			format: models.FormatUnknown,
		},
		{
			name:   "inline svg",
			node:   &graph.NodeDetail{ID: "s", Type: graph.TypeSVG, SVG: "<svg></svg>"},
			kind:   models.KindSVG,
			format: "svg",
		},
		{
			name:   "svg url",
			node:   &graph.NodeDetail{ID: "s", SVGURL: "https://x/icon.svg"},
			kind:   models.KindSVG,
			format: "svg",
		},
		{
			name:   "font",
			node:   &graph.NodeDetail{ID: "f", Type: graph.TypeText, Font: &graph.FontAttr{Family: "Inter", Weight: 600, URL: "https://x/inter.woff2"}},
			kind:   models.KindFont,
			format: "woff2",
		},
		{
			name:   "video",
			node:   &graph.NodeDetail{ID: "v", Type: graph.TypeVideo, VideoURL: "https://x/clip.mp4"},
			kind:   models.KindVideo,
			format: "mp4",
		},
		{
			name:   "hidden image still classified",
			node:   &graph.NodeDetail{ID: "h", Type: graph.TypeImage, Visible: &hidden},
			kind:   models.KindImage,
			format: models.FormatUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Classify(tt.node, models.BreakpointTablet)
			if tt.isNil {
				assert.Nil(t, rec)
				return
			}
			require.NotNil(t, rec)
			assert.Equal(t, tt.kind, rec.Kind)
			assert.Equal(t, tt.format, rec.Format)
			assert.Equal(t, models.BreakpointTablet, rec.Breakpoint)
			assert.Equal(t, tt.node.ID, rec.NodeID)
			assert.Equal(t, tt.node.IsVisible(), rec.Visible)
		})
	}
}

func TestClassify_FontName(t *testing.T) {
	rec := Classify(&graph.NodeDetail{ID: "f", Name: "Heading", Type: graph.TypeText, Font: &graph.FontAttr{Family: "Inter", Weight: 700}}, models.BreakpointDesktop)
	require.NotNil(t, rec)
	assert.Equal(t, "Inter 700", rec.NodeName)
	assert.Equal(t, models.FormatUnknown, rec.Format)
}

func TestClassify_CMS(t *testing.T) {
	rec := Classify(&graph.NodeDetail{
		ID:    "cms1",
		Type:  graph.TypeImage,
		Image: &graph.ImageAttr{URL: "https://x/post.jpg"},
		CMS:   &graph.CMSAttr{CollectionID: "posts", ItemSlug: "hello-world"},
	}, models.BreakpointDesktop)
	require.NotNil(t, rec)
	assert.True(t, rec.IsCMSAsset)
	assert.Equal(t, "hello-world", rec.CMSItemSlug)
}
