package models

import "fmt"

// ResolvedPosition is a final, fully corrected image position.
type ResolvedPosition struct {
	Filename  string  `json:"filename" msgpack:"filename"`
	Latitude  float64 `json:"latitude" msgpack:"latitude"`
	Longitude float64 `json:"longitude" msgpack:"longitude"`
	Altitude  float64 `json:"altitude" msgpack:"altitude"`
}

// CorrectionMode selects how positions are corrected. The modes are mutually
// exclusive for a single export.
type CorrectionMode string

const (
	ModeDelta CorrectionMode = "delta"
	ModePPK   CorrectionMode = "ppk"
)

// ParseCorrectionMode validates a mode name. Empty means delta.
func ParseCorrectionMode(s string) (CorrectionMode, error) {
	switch CorrectionMode(s) {
	case "", ModeDelta:
		return ModeDelta, nil
	case ModePPK:
		return ModePPK, nil
	}
	return "", fmt.Errorf("unknown correction mode %q", s)
}
