// Package geotag holds the survey geotagging core: flight-set segmentation,
// ground-control correction matching, PPK track interpolation and position
// composition. Everything here is synchronous and owns no shared state.
package geotag

import (
	"sort"
	"time"

	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/parser"
)

// CaptureInstant parses an image's EXIF capture date and time.
func CaptureInstant(img models.ImageRecord) (time.Time, error) {
	return parser.ParseImageTime(img.CaptureDate, img.CaptureTime)
}

type timedImage struct {
	img models.ImageRecord
	at  time.Time
	pos int
}

// Segment partitions images into flight sets. Images are ordered by capture
// instant, ties broken by discovery order (Seq, then input position), and a
// new set starts whenever the gap to the previous image exceeds maxGap.
// A gap of exactly maxGap stays in the same set. Images whose capture time
// cannot be parsed are left out and reported.
func Segment(images []models.ImageRecord, maxGap time.Duration) ([]models.FlightSet, []models.Diagnostic) {
	timed := make([]timedImage, 0, len(images))
	var diags []models.Diagnostic

	for i, img := range images {
		at, err := CaptureInstant(img)
		if err != nil {
			diags = append(diags, models.NewDiagnostic(img.Filename(), 0, err))
			continue
		}
		timed = append(timed, timedImage{img: img, at: at, pos: i})
	}

	sort.SliceStable(timed, func(i, j int) bool {
		a, b := timed[i], timed[j]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		if a.img.Seq != b.img.Seq {
			return a.img.Seq < b.img.Seq
		}
		return a.pos < b.pos
	})

	sets := make([]models.FlightSet, 0)
	var open []models.ImageRecord
	var openStart, last time.Time

	flush := func() {
		if len(open) == 0 {
			return
		}
		sets = append(sets, models.FlightSet{
			Index:  len(sets),
			Images: open,
			Start:  openStart,
			End:    last,
		})
		open = nil
	}

	for _, ti := range timed {
		if len(open) > 0 && ti.at.Sub(last) > maxGap {
			flush()
		}
		if len(open) == 0 {
			openStart = ti.at
		}
		open = append(open, ti.img)
		last = ti.at
	}
	flush()

	return sets, diags
}

// ImageSpan returns the earliest and latest valid capture instants.
func ImageSpan(images []models.ImageRecord) (first, last time.Time, ok bool) {
	for _, img := range images {
		at, err := CaptureInstant(img)
		if err != nil {
			continue
		}
		if !ok || at.Before(first) {
			first = at
		}
		if !ok || at.After(last) {
			last = at
		}
		ok = true
	}
	return first, last, ok
}
