package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/testutil"
)

func runShift(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestSetsCommand(t *testing.T) {
	manifest := testutil.WriteFile(t, "images.csv", testutil.ManifestCSV)

	stdout, stderr, err := runShift(t, "sets", "--images", manifest)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SET"))
	assert.Contains(t, lines[1], "2023-06-14 09:00:00")
	assert.Contains(t, lines[2], "2023-06-14 10:00:00")
	assert.Contains(t, stderr, "IMG_0006")

	t.Run("wide gap merges the flights", func(t *testing.T) {
		stdout, _, err := runShift(t, "sets", "--images", manifest, "--max-gap", "120")
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 2)
	})
}

func TestCorrectCommand(t *testing.T) {
	manifest := testutil.WriteFile(t, "images.csv", testutil.ManifestCSV)
	corrections := testutil.WriteFile(t, "gcp.csv", testutil.CorrectionsCSV)
	out := filepath.Join(t.TempDir(), "corrected.csv")

	stdout, stderr, err := runShift(t, "correct", "--images", manifest, "--corrections", corrections, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote 5 positions")
	assert.Contains(t, stderr, "matched no set: GCP3")

	lines := readLines(t, out)
	require.Len(t, lines, 6)
	assert.Equal(t, "ID,Latitude,Longitude,Altitude", lines[0])
	assert.Contains(t, lines[1], "IMG_0001")
	assert.Contains(t, lines[1], "47.600010000")
	assert.Contains(t, lines[1], "100.500000")

	t.Run("selected sets with overrides", func(t *testing.T) {
		overrides := testutil.WriteFile(t, "overrides.yaml", testutil.OverridesYAML)
		out := filepath.Join(t.TempDir(), "set2.csv")

		stdout, _, err := runShift(t, "correct", "--images", manifest, "--corrections", corrections,
			"--overrides", overrides, "--sets", "2", "--out", out)
		require.NoError(t, err)
		assert.Contains(t, stdout, "manual")

		lines := readLines(t, out)
		require.Len(t, lines, 3)
		assert.Contains(t, lines[1], "IMG_0004")
		assert.Contains(t, lines[1], "48.200000000")
		assert.Contains(t, lines[1], "122.000000")
	})

	t.Run("unsorted corrections are rejected", func(t *testing.T) {
		unsorted := testutil.WriteFile(t, "unsorted.csv", "Point Id,Date/Time,deltaLat,deltaLong,deltah\n"+
			"B,06/14/2023 09:30,0,0,0\nA,06/14/2023 08:30,0,0,0\n")
		out := filepath.Join(t.TempDir(), "never.csv")

		_, _, err := runShift(t, "correct", "--images", manifest, "--corrections", unsorted, "--out", out)
		require.ErrorIs(t, err, models.ErrUnsortedCorrections)
		assert.NoFileExists(t, out)
	})
}

func TestPPKCommand(t *testing.T) {
	manifest := testutil.WriteFile(t, "images.csv", testutil.ManifestCSV)
	track := testutil.WriteFile(t, "ppk.csv", testutil.PPKCSV)

	t.Run("csv", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "ppk.csv")
		stdout, stderr, err := runShift(t, "ppk", "--images", manifest, "--ppk", track, "--out", out)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Interpolated 4 of 5 images")
		assert.Contains(t, stderr, "IMG_0005")

		lines := readLines(t, out)
		require.Len(t, lines, 5)
		assert.Equal(t, "Image Filename,Latitude,Longitude,Altitude", lines[0])
	})

	t.Run("msgpack", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "ppk.msgpack")
		_, _, err := runShift(t, "ppk", "--images", manifest, "--ppk", track, "--out", out, "--format", "msgpack")
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		var rows []models.ResolvedPosition
		require.NoError(t, msgpack.Unmarshal(data, &rows))
		assert.Len(t, rows, 4)
	})

	t.Run("no overlap writes nothing", func(t *testing.T) {
		late := testutil.WriteFile(t, "late.csv", "Date/Time,WGS84 Latitude,WGS84 Longitude,WGS84 Ellip. Height\n"+
			"06/20/2023 08:00:00.000000,47.6,-122.3,100.0\n06/20/2023 08:00:01.000000,47.6,-122.3,100.0\n")
		out := filepath.Join(t.TempDir(), "never.csv")

		_, _, err := runShift(t, "ppk", "--images", manifest, "--ppk", late, "--out", out)
		require.ErrorIs(t, err, models.ErrNoTemporalOverlap)
		assert.NoFileExists(t, out)
	})
}

func TestCommandErrors(t *testing.T) {
	manifest := testutil.WriteFile(t, "images.csv", testutil.ManifestCSV)

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"no image source", []string{"sets"}, models.ErrMissingInput},
		{"gap too large", []string{"sets", "--images", manifest, "--max-gap", "500"}, models.ErrInvalidGap},
		{"set number zero", []string{"correct", "--images", manifest, "--corrections", manifest, "--sets", "0", "--out", "x.csv"}, models.ErrSetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runShift(t, tt.args...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseSetNumbers(t *testing.T) {
	got, err := parseSetNumbers(" 1, 3 ")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, got)

	got, err = parseSetNumbers("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseSetNumbers("a")
	assert.Error(t, err)
}
