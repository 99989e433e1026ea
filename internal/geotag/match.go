package geotag

import (
	"fmt"
	"sort"
	"time"

	"github.com/uav-shift/backend/internal/models"
)

// MatchResult reports which correction each flight set received.
type MatchResult struct {
	// Assignments is indexed by position in the matched sets slice; nil
	// means the set is uncorrected.
	Assignments []*models.CorrectionEntry
	// Unmatched lists the Index of every set without a qualifying entry.
	Unmatched []int
	// UnusedIDs lists, sorted, the point ids never selected for any set.
	UnusedIDs   []string
	Diagnostics []models.Diagnostic
}

// ValidateSorted fails with ErrUnsortedCorrections unless the entries are
// in non-decreasing date/time order.
func ValidateSorted(corrections []models.CorrectionEntry) error {
	for i := 1; i < len(corrections); i++ {
		if corrections[i].DateTime.Before(corrections[i-1].DateTime) {
			return fmt.Errorf("%w: %s (line %d) precedes %s (line %d)", models.ErrUnsortedCorrections,
				corrections[i].PointID, corrections[i].Line,
				corrections[i-1].PointID, corrections[i-1].Line)
		}
	}
	return nil
}

// SortCorrections returns a copy ordered by date/time, keeping file order
// for equal timestamps.
func SortCorrections(corrections []models.CorrectionEntry) []models.CorrectionEntry {
	sorted := make([]models.CorrectionEntry, len(corrections))
	copy(sorted, corrections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DateTime.Before(sorted[j].DateTime)
	})
	return sorted
}

// Match gives every set the latest correction taken on the set's start date
// strictly before its start time. The scan over corrections stops at the
// first entry dated after the start date, or at the first same-day entry that
// is not earlier than the start. A point id counts as used only when it is
// the final choice for some set.
//
// Corrections must be sorted; unsorted input fails with
// ErrUnsortedCorrections and no partial result.
func Match(sets []models.FlightSet, corrections []models.CorrectionEntry) (*MatchResult, error) {
	if err := ValidateSorted(corrections); err != nil {
		return nil, err
	}

	result := &MatchResult{
		Assignments: make([]*models.CorrectionEntry, len(sets)),
		Unmatched:   make([]int, 0),
		UnusedIDs:   make([]string, 0),
	}
	used := make(map[string]struct{}, len(corrections))

	for i, set := range sets {
		start := set.Start
		startDate := civilDate(start)

		var best *models.CorrectionEntry
		for j := range corrections {
			c := &corrections[j]
			d := civilDate(c.DateTime)
			if d.After(startDate) {
				break
			}
			if !d.Equal(startDate) {
				continue
			}
			if !c.DateTime.Before(start) {
				break
			}
			best = c
		}

		if best == nil {
			result.Unmatched = append(result.Unmatched, set.Index)
			result.Diagnostics = append(result.Diagnostics, models.Diagnostic{
				Kind:    models.KindNoQualifyingCorrection,
				Subject: setLabel(set.Index),
				Reason: fmt.Sprintf("%s: no correction on %s before %s", models.ErrNoQualifyingCorrection,
					start.Format("2006-01-02"), start.Format("15:04:05")),
			})
			continue
		}
		used[best.PointID] = struct{}{}
		entry := *best
		result.Assignments[i] = &entry
	}

	seen := make(map[string]struct{}, len(corrections))
	for _, c := range corrections {
		if _, ok := used[c.PointID]; ok {
			continue
		}
		if _, dup := seen[c.PointID]; dup {
			continue
		}
		seen[c.PointID] = struct{}{}
		result.UnusedIDs = append(result.UnusedIDs, c.PointID)
	}
	sort.Strings(result.UnusedIDs)

	for _, id := range result.UnusedIDs {
		result.Diagnostics = append(result.Diagnostics, models.Diagnostic{
			Kind:    models.KindUnusedCorrection,
			Subject: id,
			Reason:  "correction did not match any flight set",
		})
	}

	return result, nil
}

// Apply returns a copy of sets with the matched corrections attached as
// overlays. Sets without an assignment are copied unchanged.
func (r *MatchResult) Apply(sets []models.FlightSet) []models.FlightSet {
	out := make([]models.FlightSet, len(sets))
	copy(out, sets)
	for i := range out {
		if i >= len(r.Assignments) || r.Assignments[i] == nil {
			continue
		}
		d := r.Assignments[i].Delta
		out[i].Correction = &d
		out[i].CorrectionSource = models.AutoCorrectionSource(r.Assignments[i].PointID)
	}
	return out
}

// Matched returns the number of sets that received a correction.
func (r *MatchResult) Matched() int {
	n := 0
	for _, a := range r.Assignments {
		if a != nil {
			n++
		}
	}
	return n
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setLabel(index int) string {
	return fmt.Sprintf("set %d", index+1)
}
