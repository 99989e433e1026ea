// duckstore_test.go - Tests for the DuckDB-backed PPK track
package parser_test

import (
	"context"
	"github.com/uav-shift/backend/internal/parser"
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

// createTestTrack loads the shared PPK fixture into a temporary DuckTrack.
func createTestTrack(t *testing.T, fixes []models.PPKFix) *parser.DuckTrack {
	t.Helper()
	opts := parser.DefaultDuckOptions()
	opts.BatchSize = 2 // force several appender flushes
	opts.Threads = 1

	track, err := parser.NewDuckTrack(t.TempDir(), "test", opts)
	if err != nil {
		t.Fatalf("Failed to create DuckTrack: %v", err)
	}
	t.Cleanup(func() { track.Close() })

	require.NoError(t, track.AddAll(fixes))
	return track
}

func fixtureFixes(t *testing.T) []models.PPKFix {
	t.Helper()
	fixes, _, err := parser.ParsePPK(strings.NewReader(testutil.PPKCSV))
	require.NoError(t, err)
	return fixes
}

func TestNewDuckTrack(t *testing.T) {
	dir := t.TempDir()
	track, err := parser.NewDuckTrack(dir, "file_test", parser.DefaultDuckOptions())
	require.NoError(t, err)

	dbPath := filepath.Join(dir, "track_file_test.duckdb")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Expected database file to be created")
	}

	track.Close()
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("Expected database file to be removed on Close")
	}
}

func TestDuckTrack_Span(t *testing.T) {
	fixes := fixtureFixes(t)
	track := createTestTrack(t, fixes)

	assert.Equal(t, 5, track.Len())
	first, last, ok := track.Span()
	require.True(t, ok)
	assert.Equal(t, fixes[0].Instant, first)
	assert.Equal(t, fixes[4].Instant, last)

	empty := createTestTrack(t, nil)
	_, _, ok = empty.Span()
	assert.False(t, ok)
}

func TestDuckTrack_Bracket(t *testing.T) {
	fixes := fixtureFixes(t)
	track := createTestTrack(t, fixes)
	ctx := context.Background()
	day := time.Date(2023, 6, 14, 0, 0, 0, 0, time.UTC)

	t.Run("between fixes", func(t *testing.T) {
		before, after, err := track.Bracket(ctx, day.Add(9*time.Hour+5*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 1, before.Seq)
		assert.Equal(t, 2, after.Seq)
		assert.Equal(t, fixes[1].Instant, before.Instant)
		assert.Equal(t, "09:00:02.000000", before.Time)
		assert.Equal(t, 47.601, after.Latitude)
	})

	t.Run("exact match", func(t *testing.T) {
		before, after, err := track.Bracket(ctx, day.Add(9*time.Hour+10*time.Second))
		require.NoError(t, err)
		assert.Equal(t, before, after)
		assert.Equal(t, 2, before.Seq)
	})

	t.Run("after the last fix", func(t *testing.T) {
		_, _, err := track.Bracket(ctx, day.Add(10*time.Hour+5*time.Second))
		assert.ErrorIs(t, err, models.ErrNoBracketingFix)
	})

	t.Run("before the first fix", func(t *testing.T) {
		_, _, err := track.Bracket(ctx, day.Add(8*time.Hour))
		assert.ErrorIs(t, err, models.ErrNoBracketingFix)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := track.Bracket(cctx, day.Add(9*time.Hour))
		assert.Error(t, err)
	})
}

func TestDuckTrack_DuplicateInstantsResolveToFirstLoaded(t *testing.T) {
	at := time.Date(2023, 6, 14, 9, 0, 0, 0, time.UTC)
	fixes := []models.PPKFix{
		{Instant: at.Add(-time.Second), Latitude: 0, Seq: 0},
		{Instant: at, Latitude: 1, Seq: 1},
		{Instant: at, Latitude: 2, Seq: 2},
		{Instant: at.Add(time.Second), Latitude: 3, Seq: 3},
	}
	track := createTestTrack(t, fixes)

	before, after, err := track.Bracket(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, 1.0, before.Latitude)
	assert.Equal(t, 1.0, after.Latitude)
}

func TestDuckTrack_AddAfterFinalize(t *testing.T) {
	track := createTestTrack(t, fixtureFixes(t))
	assert.Error(t, track.Add(models.PPKFix{}))
}
