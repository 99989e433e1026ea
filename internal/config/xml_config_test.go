package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/session"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Processing.MaxGapMinutes)
	assert.Equal(t, 8089, cfg.Server.Port)
	assert.True(t, filepath.IsAbs(cfg.Storage.UploadsDirectory))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "<ShiftApp>"))
	assert.True(t, strings.Contains(string(data), "<MaxGapMinutes>20</MaxGapMinutes>"))
}

func TestLoadConfig_ReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")

	cfg := DefaultConfig()
	cfg.Processing.MaxGapMinutes = 45
	cfg.Processing.TrackBackend = "duckdb"
	cfg.Export.PPKAltDecimals = 3
	require.NoError(t, cfg.Save(path))

	t.Setenv("PORT", "9100")
	t.Setenv("SHIFT_LOG_LEVEL", "debug")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 45, loaded.Processing.MaxGapMinutes)
	assert.Equal(t, "duckdb", loaded.Processing.TrackBackend)
	assert.Equal(t, 9100, loaded.Server.Port)
	assert.Equal(t, "debug", loaded.Advanced.LogLevel)
	assert.Equal(t, filepath.Join(dir, "data", "temp"), loaded.Storage.TempDirectory)

	f := loaded.ExportFormat(models.ModePPK)
	assert.Equal(t, 3, f.AltDecimals)
	assert.Equal(t, "Image Filename", f.Header[0])

	opts := loaded.SessionOptions(nil)
	assert.Equal(t, 45, opts.MaxGapMinutes)
	assert.Equal(t, session.TrackBackendDuckDB, opts.TrackBackend)
	assert.Equal(t, loaded.Storage.TempDirectory, opts.TempDir)
}

func TestLoadConfig_EnvGapOutOfRange(t *testing.T) {
	t.Setenv("SHIFT_MAX_GAP_MINUTES", "500")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "config.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxGapMinutes")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		ok     bool
	}{
		{"defaults", func(*AppConfig) {}, true},
		{"gap too small", func(c *AppConfig) { c.Processing.MaxGapMinutes = 0 }, false},
		{"gap upper bound", func(c *AppConfig) { c.Processing.MaxGapMinutes = 120 }, true},
		{"bad backend", func(c *AppConfig) { c.Processing.TrackBackend = "redis" }, false},
		{"coords too precise", func(c *AppConfig) { c.Export.DeltaCoordDecimals = 10 }, false},
		{"altitude too coarse", func(c *AppConfig) { c.Export.PPKAltDecimals = 1 }, false},
		{"bad port", func(c *AppConfig) { c.Server.Port = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
