package recommend

const kb = 1024

// Policy holds the thresholds used to flag assets. The defaults are
// calibration values carried over as is; change them through configuration.
type Policy struct {
	PixelDensity float64 `mapstructure:"pixel_density"`
	MaxWidth     int     `mapstructure:"max_width"`
	// OversizeRatio flags images whose source width exceeds the optimal width by this factor
	OversizeRatio float64 `mapstructure:"oversize_ratio"`
	// FormatMinBytes skips format suggestions for assets smaller than this
	FormatMinBytes int64 `mapstructure:"format_min_bytes"`
	// FormatSavings is the expected fractional saving of converting a legacy format to WebP
	FormatSavings map[string]float64 `mapstructure:"format_savings"`
	// CompressionCeiling flags modern format assets above this size
	CompressionCeiling      int64   `mapstructure:"compression_ceiling"`
	CompressionSavingsRatio float64 `mapstructure:"compression_savings_ratio"`

	HighSavings   int64   `mapstructure:"high_savings"`
	HighRatio     float64 `mapstructure:"high_ratio"`
	MediumSavings int64   `mapstructure:"medium_savings"`
	MediumRatio   float64 `mapstructure:"medium_ratio"`
	// MinSavings drops recommendations that would save less than this
	MinSavings int64 `mapstructure:"min_savings"`
}

// DefaultPolicy returns the default thresholds
func DefaultPolicy() Policy {
	return Policy{
		PixelDensity:   2,
		MaxWidth:       1600,
		OversizeRatio:  1.5,
		FormatMinBytes: 50 * kb,
		FormatSavings: map[string]float64{
			"png":  0.5,
			"jpg":  0.3,
			"jpeg": 0.3,
			"gif":  0.4,
			"bmp":  0.8,
			"tiff": 0.8,
		},
		CompressionCeiling:      500 * kb,
		CompressionSavingsRatio: 0.3,
		HighSavings:             500 * kb,
		HighRatio:               0.7,
		MediumSavings:           100 * kb,
		MediumRatio:             0.4,
		MinSavings:              10 * kb,
	}
}

func (p *Policy) withDefaults() Policy {
	def := DefaultPolicy()
	out := *p
	if out.PixelDensity <= 0 {
		out.PixelDensity = def.PixelDensity
	}
	if out.MaxWidth <= 0 {
		out.MaxWidth = def.MaxWidth
	}
	if out.OversizeRatio <= 0 {
		out.OversizeRatio = def.OversizeRatio
	}
	if out.FormatSavings == nil {
		out.FormatSavings = def.FormatSavings
	}
	if out.CompressionSavingsRatio <= 0 {
		out.CompressionSavingsRatio = def.CompressionSavingsRatio
	}
	return out
}
