package geotag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uav-shift/backend/internal/models"
)

// ProgressCallback is called after every image with the number processed so
// far and the total.
type ProgressCallback func(processed, total int)

// InterpolationResult holds the positions resolved from a PPK track. When
// Cancelled is set, Positions covers only the first Processed images.
type InterpolationResult struct {
	Positions   []models.ResolvedPosition `json:"positions"`
	Diagnostics []models.Diagnostic       `json:"diagnostics"`
	Processed   int                       `json:"processed"`
	Total       int                       `json:"total"`
	Cancelled   bool                      `json:"cancelled"`
}

// Interpolate resolves an absolute position for each image by linear
// interpolation between its bracketing PPK fixes.
//
// The run is rejected with ErrNoTemporalOverlap when the images' time range
// and the track's time range are disjoint. Individual images with a malformed
// timestamp or without a fix on both sides are skipped and reported.
// Cancellation is checked after each image; a cancelled run returns the
// positions computed so far with Cancelled set.
func Interpolate(ctx context.Context, images []models.ImageRecord, index FixIndex, onProgress ProgressCallback) (*InterpolationResult, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no images to interpolate", models.ErrMissingInput)
	}
	if index == nil || index.Len() == 0 {
		return nil, fmt.Errorf("%w: no PPK fixes loaded", models.ErrMissingInput)
	}

	fixFirst, fixLast, _ := index.Span()
	imgFirst, imgLast, ok := ImageSpan(images)
	if ok && (imgFirst.After(fixLast) || imgLast.Before(fixFirst)) {
		return nil, fmt.Errorf("%w: images %s to %s, fixes %s to %s", models.ErrNoTemporalOverlap,
			imgFirst.Format(time.RFC3339), imgLast.Format(time.RFC3339),
			fixFirst.Format(time.RFC3339Nano), fixLast.Format(time.RFC3339Nano))
	}

	result := &InterpolationResult{
		Positions:   make([]models.ResolvedPosition, 0, len(images)),
		Diagnostics: make([]models.Diagnostic, 0),
		Total:       len(images),
	}

	for _, img := range images {
		pos, err := resolve(ctx, img, index)
		switch {
		case err == nil:
			result.Positions = append(result.Positions, pos)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			result.Cancelled = true
			return result, nil
		case errors.Is(err, models.ErrMalformedTimestamp), errors.Is(err, models.ErrNoBracketingFix):
			result.Diagnostics = append(result.Diagnostics, models.NewDiagnostic(img.Filename(), 0, err))
		default:
			return nil, fmt.Errorf("%w: %s: %v", models.ErrIOFailure, img.Filename(), err)
		}

		result.Processed++
		if onProgress != nil {
			onProgress(result.Processed, result.Total)
		}
		if ctx.Err() != nil {
			result.Cancelled = result.Processed < result.Total
			return result, nil
		}
	}

	return result, nil
}

func resolve(ctx context.Context, img models.ImageRecord, index FixIndex) (models.ResolvedPosition, error) {
	at, err := CaptureInstant(img)
	if err != nil {
		return models.ResolvedPosition{}, err
	}
	before, after, err := index.Bracket(ctx, at)
	if err != nil {
		return models.ResolvedPosition{}, err
	}
	lat, lon, alt := InterpolateFix(before, after, at)
	return models.ResolvedPosition{
		Filename:  img.Filename(),
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
	}, nil
}

// InterpolateFix blends two fixes linearly by elapsed time. Equal instants
// return the first fix's coordinates unchanged.
func InterpolateFix(before, after models.PPKFix, at time.Time) (lat, lon, alt float64) {
	if before.Instant.Equal(after.Instant) {
		return before.Latitude, before.Longitude, before.Altitude
	}
	ratio := float64(at.Sub(before.Instant)) / float64(after.Instant.Sub(before.Instant))
	lat = before.Latitude + ratio*(after.Latitude-before.Latitude)
	lon = before.Longitude + ratio*(after.Longitude-before.Longitude)
	alt = before.Altitude + ratio*(after.Altitude-before.Altitude)
	return lat, lon, alt
}
