// Package imagesource discovers survey photographs on disk and reads their
// capture time and GPS position from EXIF.
package imagesource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/parser"
)

// Extensions lists the file suffixes treated as images.
var Extensions = []string{".jpg", ".jpeg", ".png"}

// Scanner walks a folder tree for images.
type Scanner struct {
	log *log.Logger
}

// NewScanner creates a scanner. A nil logger discards output.
func NewScanner(logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.New("imagesource")
		logger.SetLevel(log.OFF)
	}
	return &Scanner{log: logger}
}

// ScanDir walks root recursively and reads every image it finds. Paths are
// visited in lexical order so discovery order (Seq) is reproducible. Files
// that cannot be read, or that carry no capture time, are skipped and
// reported.
func (s *Scanner) ScanDir(ctx context.Context, root string) ([]models.ImageRecord, []models.Diagnostic, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", models.ErrIOFailure, root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Warnf("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && IsImage(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(paths)

	images := make([]models.ImageRecord, 0, len(paths))
	diags := make([]models.Diagnostic, 0)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rec, err := ReadImage(path)
		if err != nil {
			s.log.Warnf("error processing %s: %v", path, err)
			diags = append(diags, models.NewDiagnostic(filepath.Base(path), 0, err))
			continue
		}
		rec.Seq = len(images)
		images = append(images, rec)
	}

	s.log.Infof("scanned %s: %d images, %d skipped", root, len(images), len(diags))
	return images, diags, nil
}

// IsImage reports whether the path has an image extension.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ReadImage decodes one file's EXIF block. Missing GPS tags leave the
// position at zero; a missing or malformed DateTimeOriginal is an error.
func ReadImage(path string) (models.ImageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.ImageRecord{}, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return models.ImageRecord{}, fmt.Errorf("%w: exif: %v", models.ErrIOFailure, err)
	}
	return fromExif(path, x)
}

func fromExif(path string, x *exif.Exif) (models.ImageRecord, error) {
	rec := models.ImageRecord{Path: path}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return rec, fmt.Errorf("%w: no DateTimeOriginal", models.ErrMalformedTimestamp)
	}
	raw, err := tag.StringVal()
	if err != nil {
		return rec, fmt.Errorf("%w: DateTimeOriginal: %v", models.ErrMalformedTimestamp, err)
	}
	if rec.CaptureDate, rec.CaptureTime, err = parser.SplitDateTime(raw); err != nil {
		return rec, err
	}

	if rec.Latitude, err = dmsTag(x, exif.GPSLatitude); err != nil {
		return rec, err
	}
	if rec.Longitude, err = dmsTag(x, exif.GPSLongitude); err != nil {
		return rec, err
	}
	rec.LatitudeRef = refTag(x, exif.GPSLatitudeRef)
	rec.LongitudeRef = refTag(x, exif.GPSLongitudeRef)

	if tag, err := x.Get(exif.GPSAltitude); err == nil {
		num, den, err := tag.Rat2(0)
		if err != nil {
			return rec, fmt.Errorf("%w: GPSAltitude: %v", models.ErrMalformedRow, err)
		}
		if den != 0 {
			rec.Altitude = float64(num) / float64(den)
		}
		if ref, err := x.Get(exif.GPSAltitudeRef); err == nil {
			if v, err := ref.Int(0); err == nil && v == 1 {
				rec.Altitude = -rec.Altitude
			}
		}
	}

	return rec, nil
}

// dmsTag reads a three-rational GPS coordinate. An absent tag is zero.
func dmsTag(x *exif.Exif, name exif.FieldName) (models.DMS, error) {
	tag, err := x.Get(name)
	if err != nil {
		return models.DMS{}, nil
	}
	var parts [3]float64
	for i := range parts {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return models.DMS{}, fmt.Errorf("%w: %s: %v", models.ErrMalformedRow, name, err)
		}
		if den != 0 {
			parts[i] = float64(num) / float64(den)
		}
	}
	return models.DMS{Degrees: parts[0], Minutes: parts[1], Seconds: parts[2]}, nil
}

func refTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(s))
}
