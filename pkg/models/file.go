package models

// OptimizedAsset is the result of re-encoding a recommendation's source
type OptimizedAsset struct {
	RecommendationID string
	SourceURL        string
	Format           string
	Width            int
	Height           int
	OriginalSize     int64
	OptimizedSize    int64
	HasTransparency  bool
	SavedAs          string
}

// Savings returns the number of bytes saved, never negative
func (o OptimizedAsset) Savings() int64 {
	if o.OptimizedSize >= o.OriginalSize {
		return 0
	}
	return o.OriginalSize - o.OptimizedSize
}
