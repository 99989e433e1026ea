package parser

import (
	"sort"
	"time"

	"github.com/uav-shift/backend/internal/models"
)

// MergeConfig configures how several PPK logs are combined.
type MergeConfig struct {
	// DedupeWindow is the maximum time difference between two fixes with
	// identical coordinates for them to be considered the same sample.
	// Zero means only exact instant matches are merged.
	DedupeWindow time.Duration
}

// DefaultMergeConfig returns the default merge configuration.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{}
}

// MergeFixes combines PPK logs into one load-ordered slice. It handles:
// 1. Ordering all fixes by instant, keeping file order for ties
// 2. Dropping repeated samples from overlapping exports
// 3. Renumbering Seq so it stays a valid tie-breaker
func MergeFixes(logs [][]models.PPKFix, config MergeConfig) []models.PPKFix {
	if len(logs) == 0 {
		return nil
	}
	if len(logs) == 1 {
		return logs[0]
	}

	total := 0
	for _, l := range logs {
		total += len(l)
	}
	all := make([]models.PPKFix, 0, total)
	for _, l := range logs {
		all = append(all, l...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Instant.Before(all[j].Instant)
	})

	merged := dedupeFixes(all, config.DedupeWindow)
	for i := range merged {
		merged[i].Seq = i
	}
	return merged
}

// dedupeFixes removes fixes repeating the previous kept fix's coordinates
// within the window. Fixes are assumed to be sorted by instant.
func dedupeFixes(fixes []models.PPKFix, window time.Duration) []models.PPKFix {
	if len(fixes) <= 1 {
		return fixes
	}

	result := make([]models.PPKFix, 0, len(fixes))
	result = append(result, fixes[0])

	for i := 1; i < len(fixes); i++ {
		current := fixes[i]
		prev := result[len(result)-1]

		if current.Instant.Sub(prev.Instant) <= window && sameCoordinates(current, prev) {
			continue
		}
		result = append(result, current)
	}
	return result
}

func sameCoordinates(a, b models.PPKFix) bool {
	return a.Latitude == b.Latitude && a.Longitude == b.Longitude && a.Altitude == b.Altitude
}
