package geotag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/uav-shift/backend/internal/models"
)

// FixIndex answers bracketing queries over a PPK track.
type FixIndex interface {
	// Len returns the number of fixes.
	Len() int
	// Span returns the earliest and latest fix instants.
	Span() (first, last time.Time, ok bool)
	// Bracket returns the latest fix at or before t and the earliest fix at
	// or after t, failing with ErrNoBracketingFix when either is missing.
	// Among fixes sharing an instant the first loaded is returned.
	Bracket(ctx context.Context, t time.Time) (before, after models.PPKFix, err error)
}

// Track is an in-memory FixIndex: the fixes in load order plus a sorted
// index over their instants, searched by bisection.
type Track struct {
	fixes    []models.PPKFix
	order    []int       // positions into fixes, ascending by instant
	instants []time.Time // instants[k] == fixes[order[k]].Instant
}

// NewTrack indexes a copy of fixes. Slice order is taken as load order.
func NewTrack(fixes []models.PPKFix) *Track {
	t := &Track{
		fixes:    make([]models.PPKFix, len(fixes)),
		order:    make([]int, len(fixes)),
		instants: make([]time.Time, len(fixes)),
	}
	copy(t.fixes, fixes)
	for i := range t.order {
		t.order[i] = i
	}
	sort.SliceStable(t.order, func(i, j int) bool {
		return t.fixes[t.order[i]].Instant.Before(t.fixes[t.order[j]].Instant)
	})
	for k, i := range t.order {
		t.instants[k] = t.fixes[i].Instant
	}
	return t
}

func (t *Track) Len() int {
	return len(t.fixes)
}

func (t *Track) Span() (first, last time.Time, ok bool) {
	if len(t.instants) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.instants[0], t.instants[len(t.instants)-1], true
}

// Fix returns the k-th fix in instant order.
func (t *Track) Fix(k int) models.PPKFix {
	return t.fixes[t.order[k]]
}

func (t *Track) Bracket(ctx context.Context, at time.Time) (before, after models.PPKFix, err error) {
	if err := ctx.Err(); err != nil {
		return before, after, err
	}
	n := len(t.instants)

	// First instant >= at. Ties are in load order, so this is the first loaded.
	ai := sort.Search(n, func(k int) bool { return !t.instants[k].Before(at) })

	// Last instant <= at, then back to the start of its equal run.
	bi := sort.Search(n, func(k int) bool { return t.instants[k].After(at) }) - 1
	if bi >= 0 {
		ref := t.instants[bi]
		bi = sort.Search(bi+1, func(k int) bool { return !t.instants[k].Before(ref) })
	}

	if bi < 0 || ai >= n {
		return before, after, fmt.Errorf("%w: %s", models.ErrNoBracketingFix, at.Format(time.RFC3339Nano))
	}
	return t.Fix(bi), t.Fix(ai), nil
}
