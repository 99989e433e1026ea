package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/testutil"
)

func loadedSession(t *testing.T) *Session {
	t.Helper()
	s := New("test-session", DefaultOptions())
	_, err := s.LoadImagesFromManifest(testutil.WriteFile(t, "images.csv", testutil.ManifestCSV))
	require.NoError(t, err)
	return s
}

func TestSession_LoadImagesSegments(t *testing.T) {
	s := loadedSession(t)

	sets := s.SetSummaries()
	require.Len(t, sets, 2)
	assert.Equal(t, 3, sets[0].ImageCount)
	assert.Equal(t, 2, sets[1].ImageCount)

	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, models.KindMalformedTimestamp, diags[0].Kind)
	assert.Contains(t, diags[0].Subject, "IMG_0006")

	info := s.Summary()
	assert.Equal(t, 6, info.ImageCount)
	assert.Equal(t, 2, info.SetCount)
	assert.Equal(t, DefaultGapMinutes, info.MaxGapMinutes)
	require.NotNil(t, info.ImageRange)
}

func TestSession_SetMaxGap(t *testing.T) {
	s := loadedSession(t)

	sets, err := s.SetMaxGap(120)
	require.NoError(t, err)
	assert.Len(t, sets, 1)
	assert.Equal(t, 120, s.MaxGap())

	for _, minutes := range []int{0, -5, 121} {
		_, err := s.SetMaxGap(minutes)
		assert.True(t, errors.Is(err, models.ErrInvalidGap), "minutes=%d", minutes)
	}
	assert.Equal(t, 120, s.MaxGap())
}

func TestSession_LoadCorrections(t *testing.T) {
	s := loadedSession(t)

	res, err := s.LoadCorrectionsFile(testutil.WriteFile(t, "corr.csv", testutil.CorrectionsCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched())
	assert.Equal(t, []string{"GCP3"}, res.UnusedIDs)

	sets := s.Sets()
	require.Len(t, sets, 2)
	require.NotNil(t, sets[0].Correction)
	assert.Equal(t, 0.5, sets[0].Correction.Alt)
	assert.Equal(t, models.AutoCorrectionSource("GCP1"), sets[0].CorrectionSource)
	require.NotNil(t, sets[1].Correction)
	assert.Equal(t, -0.25, sets[1].Correction.Alt)

	assert.Equal(t, []string{"GCP3"}, s.Summary().UnusedCorrections)
}

func TestSession_LoadCorrections_Unsorted(t *testing.T) {
	s := loadedSession(t)
	entries := []models.CorrectionEntry{
		{PointID: "B", DateTime: time.Date(2023, 6, 14, 9, 30, 0, 0, time.UTC)},
		{PointID: "A", DateTime: time.Date(2023, 6, 14, 8, 30, 0, 0, time.UTC)},
	}

	_, err := s.LoadCorrections(entries, nil)
	assert.True(t, errors.Is(err, models.ErrUnsortedCorrections))
	assert.Equal(t, 0, s.Summary().CorrectionCount)

	opts := DefaultOptions()
	opts.SortCorrections = true
	sorted := New("sorted", opts)
	_, err = sorted.LoadImagesFromManifest(testutil.WriteFile(t, "images.csv", testutil.ManifestCSV))
	require.NoError(t, err)
	res, err := sorted.LoadCorrections(entries, nil)
	require.NoError(t, err)
	assert.Equal(t, "A", res.Assignments[0].PointID)
	assert.Equal(t, "B", res.Assignments[1].PointID)
}

func TestSession_ResegmentDropsManualAndRematches(t *testing.T) {
	s := loadedSession(t)
	_, err := s.LoadCorrectionsFile(testutil.WriteFile(t, "corr.csv", testutil.CorrectionsCSV))
	require.NoError(t, err)

	require.NoError(t, s.SetCorrection(1, models.Delta{Lat: 1, Lon: 1, Alt: 1}))
	assert.Equal(t, models.CorrectionSourceManual, s.Sets()[1].CorrectionSource)

	_, err = s.SetMaxGap(120)
	require.NoError(t, err)
	sets := s.Sets()
	require.Len(t, sets, 1)
	require.NotNil(t, sets[0].Correction)
	assert.Equal(t, models.AutoCorrectionSource("GCP1"), sets[0].CorrectionSource)
}

func TestSession_SetCorrection(t *testing.T) {
	s := loadedSession(t)

	err := s.SetCorrection(5, models.Delta{Lat: 1})
	assert.True(t, errors.Is(err, models.ErrSetNotFound))

	require.NoError(t, s.SetCorrection(0, models.Delta{Lat: 0.001, Alt: 2}))
	rows, err := s.Positions(models.ModeDelta, []int{0})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.InDelta(t, 47.6+0.001, rows[0].Latitude, 1e-9)
	assert.InDelta(t, 102.0, rows[0].Altitude, 1e-9)
}

func TestSession_ApplyOverrides(t *testing.T) {
	s := loadedSession(t)

	err := s.ApplyOverrides(&models.Overrides{Sets: []models.SetOverride{
		{Set: 1, Delta: models.Delta{Alt: 1}},
		{Set: 3, Delta: models.Delta{Alt: 1}},
	}})
	assert.True(t, errors.Is(err, models.ErrSetNotFound))
	assert.Nil(t, s.Sets()[0].Correction, "nothing applied on error")

	require.NoError(t, s.ApplyOverrides(&models.Overrides{Sets: []models.SetOverride{
		{Set: 2, Delta: models.Delta{Lat: 0.5, Lon: -0.5, Alt: 2}},
	}}))
	sets := s.Sets()
	assert.Nil(t, sets[0].Correction)
	require.NotNil(t, sets[1].Correction)
	assert.Equal(t, 2.0, sets[1].Correction.Alt)
}

func TestSession_PositionsDelta(t *testing.T) {
	s := New("empty", DefaultOptions())
	_, err := s.Positions(models.ModeDelta, nil)
	assert.True(t, errors.Is(err, models.ErrMissingInput))

	s = loadedSession(t)
	rows, err := s.Positions(models.ModeDelta, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	_, err = s.Positions(models.ModeDelta, []int{2})
	assert.True(t, errors.Is(err, models.ErrSetNotFound))
}

func TestSession_Interpolate(t *testing.T) {
	s := loadedSession(t)

	_, err := s.Interpolate(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, models.ErrMissingInput))

	require.NoError(t, s.LoadPPKFiles(testutil.WriteFile(t, "ppk.csv", testutil.PPKCSV)))
	assert.Equal(t, 5, s.Summary().FixCount)

	_, err = s.Positions(models.ModePPK, nil)
	assert.True(t, errors.Is(err, models.ErrMissingInput))

	var calls int
	res, err := s.Interpolate(context.Background(), nil, func(processed, total int) {
		calls++
		assert.Equal(t, 5, total)
	})
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
	assert.False(t, res.Cancelled)
	require.Len(t, res.Positions, 4)
	assert.Equal(t, "IMG_0001.JPG", res.Positions[0].Filename)
	assert.InDelta(t, 47.6002, res.Positions[0].Latitude, 1e-9)
	assert.InDelta(t, 102.0, res.Positions[0].Altitude, 1e-9)

	rows, err := s.Positions(models.ModePPK, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.True(t, s.Summary().PositionsReady)

	var skipped []string
	for _, d := range s.Diagnostics() {
		if d.Kind == models.KindNoBracketingFix {
			skipped = append(skipped, d.Subject)
		}
	}
	require.Len(t, skipped, 1)
	assert.True(t, strings.HasSuffix(skipped[0], "IMG_0005.JPG"))
}

func TestSession_InterpolateSelectedSet(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, s.LoadPPKFiles(testutil.WriteFile(t, "ppk.csv", testutil.PPKCSV)))

	res, err := s.Interpolate(context.Background(), []int{0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Len(t, res.Positions, 3)
}

func TestSession_InterpolateCancelledKeepsNothing(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, s.LoadPPKFiles(testutil.WriteFile(t, "ppk.csv", testutil.PPKCSV)))

	ctx, cancel := context.WithCancel(context.Background())
	res, err := s.Interpolate(ctx, nil, func(processed, total int) {
		if processed == 2 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 2, res.Processed)

	_, err = s.Positions(models.ModePPK, nil)
	assert.True(t, errors.Is(err, models.ErrMissingInput))
}

func TestSession_ReloadImagesDropsInterpolation(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, s.LoadPPKFiles(testutil.WriteFile(t, "ppk.csv", testutil.PPKCSV)))
	_, err := s.Interpolate(context.Background(), nil, nil)
	require.NoError(t, err)
	require.True(t, s.Summary().PositionsReady)

	_, err = s.LoadImagesFromManifest(testutil.WriteFile(t, "images.csv", testutil.ManifestCSV))
	require.NoError(t, err)

	_, err = s.Positions(models.ModePPK, nil)
	assert.ErrorIs(t, err, models.ErrMissingInput)
	assert.False(t, s.Summary().PositionsReady)

	t.Run("regrouping drops it too", func(t *testing.T) {
		_, err := s.Interpolate(context.Background(), nil, nil)
		require.NoError(t, err)

		_, err = s.SetMaxGap(120)
		require.NoError(t, err)
		_, err = s.Positions(models.ModePPK, nil)
		assert.ErrorIs(t, err, models.ErrMissingInput)
	})
}

func TestSession_ImagesLockedDuringInterpolation(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, s.LoadPPKFiles(testutil.WriteFile(t, "ppk.csv", testutil.PPKCSV)))

	var loadErr, gapErr error
	res, err := s.Interpolate(context.Background(), nil, func(processed, total int) {
		if processed == 1 {
			_, loadErr = s.LoadImages(nil, nil)
			_, gapErr = s.SetMaxGap(120)
		}
	})
	require.NoError(t, err)
	assert.ErrorIs(t, loadErr, models.ErrRunInProgress)
	assert.ErrorIs(t, gapErr, models.ErrRunInProgress)

	assert.Len(t, res.Positions, 4)
	assert.Equal(t, 6, s.Summary().ImageCount)
	assert.Equal(t, DefaultGapMinutes, s.MaxGap())
	rows, err := s.Positions(models.ModePPK, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestSession_NoTemporalOverlap(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, s.LoadPPK([]models.PPKFix{
		{Instant: time.Date(2023, 6, 15, 9, 0, 0, 0, time.UTC), Latitude: 1},
		{Instant: time.Date(2023, 6, 15, 9, 1, 0, 0, time.UTC), Latitude: 2},
	}, nil))

	_, err := s.Interpolate(context.Background(), nil, nil)
	assert.True(t, errors.Is(err, models.ErrNoTemporalOverlap))
}

func TestSession_DuckDBTrack(t *testing.T) {
	opts := DefaultOptions()
	opts.TrackBackend = TrackBackendDuckDB
	opts.TempDir = t.TempDir()
	s := New("duckdb-session", opts)
	_, err := s.LoadImagesFromManifest(testutil.WriteFile(t, "images.csv", testutil.ManifestCSV))
	require.NoError(t, err)
	require.NoError(t, s.LoadPPKFiles(testutil.WriteFile(t, "ppk.csv", testutil.PPKCSV)))

	files, _ := filepath.Glob(filepath.Join(opts.TempDir, "track_*.duckdb"))
	assert.Len(t, files, 1)

	res, err := s.Interpolate(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Positions, 4)
	assert.InDelta(t, 47.6002, res.Positions[0].Latitude, 1e-9)

	require.NoError(t, s.Close())
	_, err = os.Stat(files[0])
	assert.True(t, os.IsNotExist(err))
}

func TestSession_Reset(t *testing.T) {
	s := loadedSession(t)
	_, err := s.LoadCorrectionsFile(testutil.WriteFile(t, "corr.csv", testutil.CorrectionsCSV))
	require.NoError(t, err)
	require.NoError(t, s.LoadPPKFiles(testutil.WriteFile(t, "ppk.csv", testutil.PPKCSV)))

	require.NoError(t, s.Reset())
	info := s.Summary()
	assert.Equal(t, 0, info.ImageCount)
	assert.Equal(t, 0, info.SetCount)
	assert.Equal(t, 0, info.CorrectionCount)
	assert.Equal(t, 0, info.FixCount)
	assert.Empty(t, s.Diagnostics())
}
