package classify

import (
	"net/url"
	"path"
	"strings"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

var knownExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true, "avif": true,
	"svg": true, "bmp": true, "tiff": true, "ico": true,
	"woff": true, "woff2": true, "ttf": true, "otf": true,
	"mp4": true, "webm": true, "mov": true,
}

// DetectFormat resolves the lowercase format of a source reference.
// Order: URL file extension, then a data:image/<fmt> prefix, then unknown.
func DetectFormat(src string) string {
	if src == "" {
		return models.FormatUnknown
	}
	if strings.HasPrefix(src, "data:") {
		return dataURLFormat(src)
	}
	if ext := extension(src); ext != "" {
		return ext
	}
	return models.FormatUnknown
}

func extension(src string) string {
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.Path
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if knownExtensions[ext] {
		return ext
	}
	return ""
}

func dataURLFormat(src string) string {
	meta, _, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return models.FormatUnknown
	}
	mime, _, _ := strings.Cut(meta, ";")
	mime = strings.ToLower(mime)
	if !strings.HasPrefix(mime, "image/") {
		return models.FormatUnknown
	}
	sub := strings.TrimPrefix(mime, "image/")
	if i := strings.IndexByte(sub, '+'); i >= 0 {
		sub = sub[:i]
	}
	if sub == "" {
		return models.FormatUnknown
	}
	return sub
}

// IsLegacyRaster reports formats a modern encoder would usually shrink
func IsLegacyRaster(format string) bool {
	switch format {
	case "png", "jpg", "jpeg", "gif", "bmp", "tiff":
		return true
	}
	return false
}

// IsModernRaster reports formats that are already efficiently encoded
func IsModernRaster(format string) bool {
	return format == "webp" || format == "avif"
}
