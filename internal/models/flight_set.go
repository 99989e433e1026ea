package models

import "time"

// Delta is an additive position offset.
type Delta struct {
	Lat float64 `json:"deltaLat" yaml:"delta_lat" msgpack:"lat"`
	Lon float64 `json:"deltaLon" yaml:"delta_lon" msgpack:"lon"`
	Alt float64 `json:"deltaAlt" yaml:"delta_alt" msgpack:"alt"`
}

// IsZero reports whether the delta leaves positions unchanged.
func (d Delta) IsZero() bool {
	return d.Lat == 0 && d.Lon == 0 && d.Alt == 0
}

// FlightSet is a maximal run of images whose consecutive capture gaps never
// exceed the configured threshold. Images are sorted by capture instant.
type FlightSet struct {
	Index  int           `json:"index"`
	Images []ImageRecord `json:"images"`
	Start  time.Time     `json:"start"`
	End    time.Time     `json:"end"`

	// Correction is an overlay; member images are never modified.
	Correction       *Delta `json:"correction,omitempty"`
	CorrectionSource string `json:"correctionSource,omitempty"`
}

// Len returns the number of images in the set.
func (s FlightSet) Len() int {
	return len(s.Images)
}

// AppliedDelta returns the attached correction, or a zero delta.
func (s FlightSet) AppliedDelta() Delta {
	if s.Correction == nil {
		return Delta{}
	}
	return *s.Correction
}

// Correction sources recorded on a FlightSet.
const (
	CorrectionSourceManual = "manual"
	correctionSourceAuto   = "auto:"
)

// AutoCorrectionSource labels an overlay resolved from a correction entry.
func AutoCorrectionSource(pointID string) string {
	return correctionSourceAuto + pointID
}

// SetSummary is the tabular view of a FlightSet.
type SetSummary struct {
	Index      int       `json:"index"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	ImageCount int       `json:"imageCount"`
	Delta      Delta     `json:"delta"`
	Source     string    `json:"source,omitempty"`
}

// Summary returns the tabular view of the set.
func (s FlightSet) Summary() SetSummary {
	return SetSummary{
		Index:      s.Index,
		Start:      s.Start,
		End:        s.End,
		ImageCount: len(s.Images),
		Delta:      s.AppliedDelta(),
		Source:     s.CorrectionSource,
	}
}
