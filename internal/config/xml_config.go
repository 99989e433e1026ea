// Package config provides XML-based configuration for the geotag server and CLI.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"ShiftApp"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// Export configuration
	Export ExportConfig `xml:"Export"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	TempDirectory    string `xml:"TempDirectory"`
	ExportDirectory  string `xml:"ExportDirectory"`
	// ImageRoot restricts folder scans requested over HTTP. Empty allows any path.
	ImageRoot string `xml:"ImageRoot"`
}

// ProcessingConfig contains segmentation, matching and interpolation settings
type ProcessingConfig struct {
	MaxGapMinutes          int    `xml:"MaxGapMinutes"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
	TrackBackend           string `xml:"TrackBackend"` // auto, memory or duckdb
	DuckDBFixThreshold     int    `xml:"DuckDBFixThreshold"`
	SortCorrections        bool   `xml:"SortCorrections"`
}

// ExportConfig contains output precision settings
type ExportConfig struct {
	DeltaCoordDecimals int `xml:"DeltaCoordinateDecimals"`
	DeltaAltDecimals   int `xml:"DeltaAltitudeDecimals"`
	PPKCoordDecimals   int `xml:"PPKCoordinateDecimals"`
	PPKAltDecimals     int `xml:"PPKAltitudeDecimals"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	DuckDBThreads        int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit    string `xml:"DuckDBMemoryLimit"`
	ProgressIntervalMs   int    `xml:"ProgressIntervalMs"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "512M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			TempDirectory:    "./data/temp",
			ExportDirectory:  "./data/exports",
		},
		Processing: ProcessingConfig{
			MaxGapMinutes:          20,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			TrackBackend:           "auto",
			DuckDBFixThreshold:     500000,
			SortCorrections:        false,
		},
		Export: ExportConfig{
			DeltaCoordDecimals: 9,
			DeltaAltDecimals:   6,
			PPKCoordDecimals:   9,
			PPKAltDecimals:     4,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			DuckDBThreads:        4,
			DuckDBMemoryLimit:    "1GB",
			ProgressIntervalMs:   250,
		},
	}
}

// LoadConfig loads configuration from XML file. A missing file is created
// with defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Survey geotag shift configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks value ranges.
func (c *AppConfig) Validate() error {
	p := c.Processing
	if p.MaxGapMinutes < 1 || p.MaxGapMinutes > 120 {
		return fmt.Errorf("Processing.MaxGapMinutes must be 1-120, got %d", p.MaxGapMinutes)
	}
	switch p.TrackBackend {
	case "auto", "memory", "duckdb":
	default:
		return fmt.Errorf("Processing.TrackBackend must be auto, memory or duckdb, got %q", p.TrackBackend)
	}

	e := c.Export
	for _, v := range []struct {
		name     string
		value    int
		min, max int
	}{
		{"Export.DeltaCoordinateDecimals", e.DeltaCoordDecimals, 6, 9},
		{"Export.PPKCoordinateDecimals", e.PPKCoordDecimals, 6, 9},
		{"Export.DeltaAltitudeDecimals", e.DeltaAltDecimals, 2, 6},
		{"Export.PPKAltitudeDecimals", e.PPKAltDecimals, 2, 6},
	} {
		if v.value < v.min || v.value > v.max {
			return fmt.Errorf("%s must be %d-%d, got %d", v.name, v.min, v.max, v.value)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("Server.Port out of range: %d", c.Server.Port)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.TempDirectory = filepath.Join(dataDir, "temp")
		c.Storage.ExportDirectory = filepath.Join(dataDir, "exports")
	}

	if gap := os.Getenv("SHIFT_MAX_GAP_MINUTES"); gap != "" {
		if g, err := strconv.Atoi(gap); err == nil {
			c.Processing.MaxGapMinutes = g
		}
	}

	if level := os.Getenv("SHIFT_LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.TempDirectory,
		&c.Storage.ExportDirectory,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TempDirectory,
		c.Storage.ExportDirectory,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
