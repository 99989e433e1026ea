package geotag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uav-shift/backend/internal/models"
)

func correction(id string, at time.Time, lat float64) models.CorrectionEntry {
	return models.CorrectionEntry{PointID: id, DateTime: at, Delta: models.Delta{Lat: lat, Lon: -lat, Alt: lat * 10}}
}

func setAt(index int, start time.Time) models.FlightSet {
	return models.FlightSet{Index: index, Start: start, End: start.Add(time.Minute)}
}

func TestMatch_LatestEarlierSameDay(t *testing.T) {
	sets := []models.FlightSet{
		setAt(0, surveyDay.Add(9*time.Hour)),
		setAt(1, surveyDay.Add(10*time.Hour)),
	}
	corrections := []models.CorrectionEntry{
		correction("GCP1", surveyDay.Add(8*time.Hour+30*time.Minute), 1),
		correction("GCP2", surveyDay.Add(9*time.Hour+30*time.Minute), 2),
		correction("GCP3", surveyDay.Add(24*time.Hour+8*time.Hour), 3),
	}

	res, err := Match(sets, corrections)
	require.NoError(t, err)

	require.NotNil(t, res.Assignments[0])
	assert.Equal(t, "GCP1", res.Assignments[0].PointID)
	require.NotNil(t, res.Assignments[1])
	assert.Equal(t, "GCP2", res.Assignments[1].PointID)
	assert.Empty(t, res.Unmatched)
	assert.Equal(t, []string{"GCP3"}, res.UnusedIDs)
	assert.Equal(t, 2, res.Matched())

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, models.KindUnusedCorrection, res.Diagnostics[0].Kind)
	assert.Equal(t, "GCP3", res.Diagnostics[0].Subject)
}

func TestMatch_StrictlyEarlier(t *testing.T) {
	start := surveyDay.Add(9 * time.Hour)
	sets := []models.FlightSet{setAt(0, start)}

	res, err := Match(sets, []models.CorrectionEntry{correction("AT", start, 1)})
	require.NoError(t, err)
	assert.Nil(t, res.Assignments[0])
	assert.Equal(t, []int{0}, res.Unmatched)
	assert.Equal(t, []string{"AT"}, res.UnusedIDs)

	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, models.KindNoQualifyingCorrection, res.Diagnostics[0].Kind)
	assert.Equal(t, "set 1", res.Diagnostics[0].Subject)
}

func TestMatch_OtherDaysNeverQualify(t *testing.T) {
	start := surveyDay.Add(9 * time.Hour)
	sets := []models.FlightSet{setAt(0, start)}
	corrections := []models.CorrectionEntry{
		correction("YESTERDAY", start.Add(-24*time.Hour), 1),
		correction("TOMORROW", start.Add(24*time.Hour-2*time.Hour), 2),
	}

	res, err := Match(sets, corrections)
	require.NoError(t, err)
	assert.Nil(t, res.Assignments[0])
	assert.Equal(t, []int{0}, res.Unmatched)
	assert.Equal(t, []string{"TOMORROW", "YESTERDAY"}, res.UnusedIDs)
}

func TestMatch_SupersededCandidateIsUnused(t *testing.T) {
	start := surveyDay.Add(12 * time.Hour)
	sets := []models.FlightSet{setAt(0, start)}
	corrections := []models.CorrectionEntry{
		correction("EARLY", surveyDay.Add(8*time.Hour), 1),
		correction("LATE", surveyDay.Add(11*time.Hour), 2),
	}

	res, err := Match(sets, corrections)
	require.NoError(t, err)
	assert.Equal(t, "LATE", res.Assignments[0].PointID)
	assert.Equal(t, []string{"EARLY"}, res.UnusedIDs)

	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, models.KindUnusedCorrection, res.Diagnostics[0].Kind)
	assert.Equal(t, "EARLY", res.Diagnostics[0].Subject)

	t.Run("chosen for an earlier set", func(t *testing.T) {
		sets := []models.FlightSet{
			setAt(0, surveyDay.Add(9*time.Hour)),
			setAt(1, start),
		}
		res, err := Match(sets, corrections)
		require.NoError(t, err)
		assert.Equal(t, "EARLY", res.Assignments[0].PointID)
		assert.Equal(t, "LATE", res.Assignments[1].PointID)
		assert.Empty(t, res.UnusedIDs)
	})
}

func TestMatch_NoCorrectionsOrSets(t *testing.T) {
	res, err := Match(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Assignments)
	assert.Empty(t, res.UnusedIDs)

	res, err = Match([]models.FlightSet{setAt(0, surveyDay)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Unmatched)
}

func TestMatch_RejectsUnsortedInput(t *testing.T) {
	sets := []models.FlightSet{setAt(0, surveyDay.Add(12*time.Hour))}
	corrections := []models.CorrectionEntry{
		correction("B", surveyDay.Add(10*time.Hour), 2),
		correction("A", surveyDay.Add(9*time.Hour), 1),
	}

	res, err := Match(sets, corrections)
	assert.ErrorIs(t, err, models.ErrUnsortedCorrections)
	assert.Nil(t, res)

	sorted := SortCorrections(corrections)
	assert.Equal(t, "A", sorted[0].PointID)
	assert.Equal(t, "B", corrections[0].PointID, "input left untouched")

	res, err = Match(sets, sorted)
	require.NoError(t, err)
	assert.Equal(t, "B", res.Assignments[0].PointID)
}

func TestMatchResult_Apply(t *testing.T) {
	sets := []models.FlightSet{
		setAt(0, surveyDay.Add(9*time.Hour)),
		setAt(1, surveyDay.Add(7*time.Hour)),
	}
	res, err := Match(sets, []models.CorrectionEntry{correction("GCP1", surveyDay.Add(8*time.Hour), 0.5)})
	require.NoError(t, err)

	applied := res.Apply(sets)
	require.Len(t, applied, 2)
	require.NotNil(t, applied[0].Correction)
	assert.Equal(t, models.Delta{Lat: 0.5, Lon: -0.5, Alt: 5}, *applied[0].Correction)
	assert.Equal(t, "auto:GCP1", applied[0].CorrectionSource)
	assert.Nil(t, applied[1].Correction)

	// Original sets are not modified.
	assert.Nil(t, sets[0].Correction)
}
