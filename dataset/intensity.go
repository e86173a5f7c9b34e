package dataset

// LowIntensityThreshold is the SEP intensity below which an event is low intensity.
// Events above HighIntensityThreshold are high; everything in between is medium.
const LowIntensityThreshold = 2.0

// Intensity bucket names.
const (
	IntensityLow    = "low"
	IntensityMedium = "medium"
	IntensityHigh   = "high"
)

// IntensityDistribution counts records per intensity bucket.
type IntensityDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// ClassifyIntensity returns the bucket name of an SEP intensity.
func ClassifyIntensity(v float64) string {
	switch {
	case v < LowIntensityThreshold:
		return IntensityLow
	case v > HighIntensityThreshold:
		return IntensityHigh
	default:
		return IntensityMedium
	}
}

// Distribution buckets every record of t by SEP intensity.
func Distribution(t *Table) IntensityDistribution {
	var d IntensityDistribution
	if t == nil {
		return d
	}
	for _, r := range t.Records {
		switch ClassifyIntensity(r.SEPIntensity) {
		case IntensityLow:
			d.Low++
		case IntensityMedium:
			d.Medium++
		default:
			d.High++
		}
	}
	return d
}
