package models

import "time"

// CorrectionEntry is a surveyed ground-control offset tied to a timestamp.
type CorrectionEntry struct {
	PointID  string    `json:"pointId"`
	DateTime time.Time `json:"dateTime"` // minute precision
	Delta    Delta     `json:"delta"`
	Line     int       `json:"line,omitempty"`
}

// SetOverride is a manually entered delta for one set. Set is 1-based, the
// way sets are numbered in summaries and the CLI.
type SetOverride struct {
	Set   int   `json:"set" yaml:"set"`
	Delta Delta `json:"delta" yaml:",inline"`
}

// Overrides is the YAML document of manual set corrections.
type Overrides struct {
	Sets []SetOverride `json:"sets" yaml:"sets"`
}
