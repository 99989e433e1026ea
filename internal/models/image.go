// Package models contains domain types for the survey geotag backend.
package models

import "strings"

// DMS is a degrees/minutes/seconds angle as read from EXIF GPS tags.
type DMS struct {
	Degrees float64 `json:"degrees" msgpack:"d"`
	Minutes float64 `json:"minutes" msgpack:"m"`
	Seconds float64 `json:"seconds" msgpack:"s"`
}

// Decimal converts to decimal degrees. Hemisphere is not considered: southern
// and western values must already carry a negative degree component.
func (d DMS) Decimal() float64 {
	return d.Degrees + d.Minutes/60.0 + d.Seconds/3600.0
}

// Signed converts to decimal degrees and negates the result for "S" and "W"
// references. An already negative value is left alone.
func (d DMS) Signed(ref string) float64 {
	v := d.Decimal()
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		if v > 0 {
			return -v
		}
	}
	return v
}

// ImageRecord is one discovered photograph. Capture date and time are kept
// as the raw EXIF strings ("YYYY:MM:DD", "HH:MM:SS").
type ImageRecord struct {
	Path         string  `json:"path"`
	Latitude     DMS     `json:"latitude"`
	LatitudeRef  string  `json:"latitudeRef,omitempty"`
	Longitude    DMS     `json:"longitude"`
	LongitudeRef string  `json:"longitudeRef,omitempty"`
	Altitude     float64 `json:"altitude"`
	CaptureDate  string  `json:"captureDate"`
	CaptureTime  string  `json:"captureTime"`
	Seq          int     `json:"seq"` // discovery order, breaks timestamp ties
}

// DecimalLatitude returns the latitude in decimal degrees, honouring the
// hemisphere reference when the source supplied one.
func (r ImageRecord) DecimalLatitude() float64 {
	return r.Latitude.Signed(r.LatitudeRef)
}

// DecimalLongitude returns the longitude in decimal degrees.
func (r ImageRecord) DecimalLongitude() float64 {
	return r.Longitude.Signed(r.LongitudeRef)
}

// Filename returns the base name of the image path. Both slash styles are
// treated as separators since manifests may come from any platform.
func (r ImageRecord) Filename() string {
	if i := strings.LastIndexAny(r.Path, `/\`); i >= 0 {
		return r.Path[i+1:]
	}
	return r.Path
}
