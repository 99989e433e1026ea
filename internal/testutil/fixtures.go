// fixtures.go - Shared input files for tests
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// ManifestCSV describes six photographs from one survey day: three in a
// morning flight, two an hour later, and one with an impossible capture date.
const ManifestCSV = `SourceFile,DateTimeOriginal,GPSLatitude,GPSLatitudeRef,GPSLongitude,GPSLongitudeRef,GPSAltitude
flight/IMG_0001.JPG,2023:06:14 09:00:00,"47 deg 36' 0.00"" N",North,"122 deg 18' 0.00"" W",West,100 m Above Sea Level
flight/IMG_0002.JPG,2023:06:14 09:00:05,"47 deg 36' 3.60"" N",North,"122 deg 18' 3.60"" W",West,101 m Above Sea Level
flight/IMG_0003.JPG,2023:06:14 09:00:10,"47 deg 36' 7.20"" N",North,"122 deg 18' 7.20"" W",West,102 m Above Sea Level
flight/IMG_0004.JPG,2023:06:14 10:00:00,"47 deg 42' 0.00"" N",North,"122 deg 24' 0.00"" W",West,120 m Above Sea Level
flight/IMG_0005.JPG,2023:06:14 10:00:05,"47 deg 42' 3.60"" N",North,"122 deg 24' 3.60"" W",West,121 m Above Sea Level
flight/IMG_0006.JPG,2023:13:45 10:00:00,"47 deg 42' 0.00"" N",North,"122 deg 24' 0.00"" W",West,120 m Above Sea Level
`

// CorrectionsCSV qualifies GCP1 for the morning flight and GCP2 for the
// later one. GCP3 is on another day and is never used.
const CorrectionsCSV = `Point Id,Date/Time,deltaLat,deltaLong,deltah
GCP1,06/14/2023 08:30,0.00001,-0.00002,0.5
GCP2,06/14/2023 09:30,0.00003,0.00004,-0.25
GCP3,06/15/2023 08:00,0.1,0.1,0.1
`

// PPKCSV brackets every valid image except IMG_0005, which falls after the
// last fix.
const PPKCSV = `Date/Time,WGS84 Latitude,WGS84 Longitude,WGS84 Ellip. Height
06/14/2023 08:59:58.000000,47.6,-122.3,100.0
06/14/2023 09:00:02.000000,47.6004,-122.3004,104.0
06/14/2023 09:00:10.000000,47.601,-122.301,110.0
06/14/2023 10:00:00.000000,47.7,-122.4,120.0
06/14/2023 10:00:04.000000,47.7004,-122.4004,124.0
`

// OverridesYAML replaces the delta of the second set.
const OverridesYAML = `sets:
  - set: 2
    delta_lat: 0.5
    delta_lon: -0.5
    delta_alt: 2
`

// WriteFile writes content into a fresh temp dir and returns the path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}
