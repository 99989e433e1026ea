package config

import (
	"github.com/labstack/gommon/log"
	"github.com/uav-shift/backend/internal/export"
	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/parser"
	"github.com/uav-shift/backend/internal/session"
)

// SessionOptions builds the options every session is created with.
func (c *AppConfig) SessionOptions(logger *log.Logger) session.Options {
	duck := parser.DefaultDuckOptions()
	if c.Advanced.DuckDBThreads > 0 {
		duck.Threads = c.Advanced.DuckDBThreads
	}
	if c.Advanced.DuckDBMemoryLimit != "" {
		duck.MemoryLimit = c.Advanced.DuckDBMemoryLimit
	}
	duck.Logger = logger

	opts := session.DefaultOptions()
	opts.MaxGapMinutes = c.Processing.MaxGapMinutes
	opts.SortCorrections = c.Processing.SortCorrections
	opts.TrackBackend = c.Processing.TrackBackend
	opts.DuckDBFixThreshold = c.Processing.DuckDBFixThreshold
	if c.Storage.TempDirectory != "" {
		opts.TempDir = c.Storage.TempDirectory
	}
	opts.Duck = duck
	opts.Logger = logger
	return opts
}

// ExportFormat returns the CSV layout for a mode with the configured precision.
func (c *AppConfig) ExportFormat(mode models.CorrectionMode) export.Format {
	f := export.FormatFor(mode)
	if mode == models.ModePPK {
		f.CoordDecimals = c.Export.PPKCoordDecimals
		f.AltDecimals = c.Export.PPKAltDecimals
	} else {
		f.CoordDecimals = c.Export.DeltaCoordDecimals
		f.AltDecimals = c.Export.DeltaAltDecimals
	}
	return f
}
