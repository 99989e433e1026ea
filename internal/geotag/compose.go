package geotag

import (
	"fmt"

	"github.com/uav-shift/backend/internal/models"
)

// ComposeCorrected converts every image of the selected sets to decimal
// degrees and adds its set's delta overlay. A nil selection means all sets.
// Rows follow the selection order, then image order within each set.
func ComposeCorrected(sets []models.FlightSet, selected []int) ([]models.ResolvedPosition, error) {
	indices, err := SelectSets(len(sets), selected)
	if err != nil {
		return nil, err
	}

	rows := make([]models.ResolvedPosition, 0)
	for _, i := range indices {
		set := sets[i]
		d := set.AppliedDelta()
		for _, img := range set.Images {
			rows = append(rows, models.ResolvedPosition{
				Filename:  img.Filename(),
				Latitude:  img.DecimalLatitude() + d.Lat,
				Longitude: img.DecimalLongitude() + d.Lon,
				Altitude:  img.Altitude + d.Alt,
			})
		}
	}
	return rows, nil
}

// ComposeInterpolated returns the rows of a PPK run. Positions are absolute,
// so no delta is applied.
func ComposeInterpolated(result *InterpolationResult) []models.ResolvedPosition {
	if result == nil {
		return nil
	}
	rows := make([]models.ResolvedPosition, len(result.Positions))
	copy(rows, result.Positions)
	return rows
}

// SelectSets validates 0-based set indices against count, dropping repeats.
// A nil selection selects every set.
func SelectSets(count int, selected []int) ([]int, error) {
	if selected == nil {
		all := make([]int, count)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	seen := make(map[int]struct{}, len(selected))
	out := make([]int, 0, len(selected))
	for _, i := range selected {
		if i < 0 || i >= count {
			return nil, fmt.Errorf("%w: index %d (have %d sets)", models.ErrSetNotFound, i, count)
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out, nil
}

// SetImages returns the images of the selected sets in selection order.
func SetImages(sets []models.FlightSet, selected []int) ([]models.ImageRecord, error) {
	indices, err := SelectSets(len(sets), selected)
	if err != nil {
		return nil, err
	}
	var images []models.ImageRecord
	for _, i := range indices {
		images = append(images, sets[i].Images...)
	}
	return images, nil
}
