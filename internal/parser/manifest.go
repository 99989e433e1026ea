package parser

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/uav-shift/backend/internal/models"
)

// Image manifest columns, as written by `exiftool -csv`.
const (
	ColSourceFile       = "SourceFile"
	ColDateTimeOriginal = "DateTimeOriginal"
	ColGPSLatitude      = "GPSLatitude"
	ColGPSLatitudeRef   = "GPSLatitudeRef"
	ColGPSLongitude     = "GPSLongitude"
	ColGPSLongitudeRef  = "GPSLongitudeRef"
	ColGPSAltitude      = "GPSAltitude"
)

var (
	numberRegex = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
	hemiRegex   = regexp.MustCompile(`(?i)\b([NSEW])(?:orth|outh|ast|est)?\s*$`)
)

// ManifestParser reads image manifests: one row per photograph with its
// EXIF capture time and GPS tags.
type ManifestParser struct{}

func NewManifestParser() *ManifestParser {
	return &ManifestParser{}
}

func (p *ManifestParser) Name() string {
	return "image_manifest"
}

func (p *ManifestParser) Kind() models.InputKind {
	return models.InputImages
}

func (p *ManifestParser) CanParse(header []string) bool {
	return hasAll(header, ColSourceFile, ColDateTimeOriginal)
}

// ParseFile opens and parses an image manifest.
func (p *ManifestParser) ParseFile(path string) ([]models.ImageRecord, []models.Diagnostic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	defer f.Close()
	return ParseImageManifest(f)
}

// ParseImageManifest reads image records in file order. GPS columns are
// optional and default to zero. Coordinates may be decimal degrees ("-n"
// output) or exiftool's "47 deg 36' 22.44\" N" form. Capture times are kept
// as raw strings and validated when the images are segmented.
func ParseImageManifest(r io.Reader) ([]models.ImageRecord, []models.Diagnostic, error) {
	t, err := openTable(r)
	if err != nil {
		return nil, nil, err
	}
	if err := t.require(ColSourceFile, ColDateTimeOriginal); err != nil {
		return nil, nil, err
	}

	images := make([]models.ImageRecord, 0)
	diags := make([]models.Diagnostic, 0)

	for {
		row, line, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if line == 0 {
				return nil, nil, err
			}
			diags = append(diags, models.NewDiagnostic("manifest", line, err))
			continue
		}

		path := t.field(row, ColSourceFile)
		if path == "" {
			diags = append(diags, models.NewDiagnostic("manifest", line,
				fmt.Errorf("%w: empty %s", models.ErrMalformedRow, ColSourceFile)))
			continue
		}

		date, clock, err := SplitDateTime(t.field(row, ColDateTimeOriginal))
		if err != nil {
			diags = append(diags, models.NewDiagnostic(path, line, err))
			continue
		}

		rec := models.ImageRecord{
			Path:        path,
			CaptureDate: date,
			CaptureTime: clock,
			Seq:         len(images),
		}

		var latRef, lonRef string
		rec.Latitude, latRef, err = ParseDMS(t.field(row, ColGPSLatitude))
		if err == nil {
			rec.Longitude, lonRef, err = ParseDMS(t.field(row, ColGPSLongitude))
		}
		if err == nil {
			rec.Altitude, err = parseAltitude(t.field(row, ColGPSAltitude))
		}
		if err != nil {
			diags = append(diags, models.NewDiagnostic(path, line, err))
			continue
		}

		rec.LatitudeRef = firstNonEmpty(normalizeRef(t.field(row, ColGPSLatitudeRef)), latRef)
		rec.LongitudeRef = firstNonEmpty(normalizeRef(t.field(row, ColGPSLongitudeRef)), lonRef)
		images = append(images, rec)
	}

	return images, diags, nil
}

// ParseDMS reads a coordinate written as decimal degrees, "D M S" numbers, or
// exiftool's "D deg M' S\" H" form. A trailing hemisphere letter is returned
// separately. An empty string is a zero coordinate.
func ParseDMS(s string) (models.DMS, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.DMS{}, "", nil
	}

	ref := ""
	if m := hemiRegex.FindStringSubmatch(s); m != nil {
		ref = strings.ToUpper(m[1])
	}

	nums := numberRegex.FindAllString(s, -1)
	if len(nums) == 0 || len(nums) > 3 {
		return models.DMS{}, "", fmt.Errorf("%w: coordinate %q", models.ErrMalformedRow, s)
	}
	vals := make([]float64, 3)
	for i, n := range nums {
		v, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return models.DMS{}, "", fmt.Errorf("%w: coordinate %q", models.ErrMalformedRow, s)
		}
		vals[i] = v
	}
	return models.DMS{Degrees: vals[0], Minutes: vals[1], Seconds: vals[2]}, ref, nil
}

// parseAltitude accepts "123.4" as well as exiftool's "123.4 m Above Sea Level".
func parseAltitude(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n := numberRegex.FindString(s)
	if n == "" {
		return 0, fmt.Errorf("%w: altitude %q", models.ErrMalformedRow, s)
	}
	v, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: altitude %q", models.ErrMalformedRow, s)
	}
	if strings.Contains(strings.ToLower(s), "below sea level") && v > 0 {
		v = -v
	}
	return v, nil
}

func normalizeRef(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	switch s[0] {
	case 'N', 'S', 'E', 'W':
		return s[:1]
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
