package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/uav-shift/backend/internal/models"
)

// sniffBytes is how much of a file Detect reads.
const sniffBytes = 64 * 1024

// Registry holds all available input parsers and provides auto-detection.
type Registry struct {
	parsers []InputParser
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry returns a registry holding the correction, PPK and manifest
// parsers, tried in that order.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(NewCorrectionParser())
	r.Register(NewPPKParser())
	r.Register(NewManifestParser())
	return r
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a parser after the ones already registered. FindParser
// returns the first match, so earlier parsers win.
func (r *Registry) Register(p InputParser) {
	r.parsers = append(r.parsers, p)
}

// FindParser returns the first parser accepting the header row.
func (r *Registry) FindParser(header []string) (InputParser, error) {
	for _, p := range r.parsers {
		if p.CanParse(header) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no suitable parser found for header: %s", strings.Join(header, ","))
}

// GetParserByName returns a parser by its name.
func (r *Registry) GetParserByName(name string) (InputParser, error) {
	name = strings.ToLower(name)
	for _, p := range r.parsers {
		if strings.ToLower(p.Name()) == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("parser not found: %s", name)
}

// Detect sniffs the start of a file and classifies it. YAML overrides are
// recognised by name or content; CSVs by their header row.
func (r *Registry) Detect(filePath string) (models.InputKind, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return models.InputUnknown, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	defer f.Close()

	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return models.InputUnknown, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	return r.DetectBytes(filePath, buf[:n]), nil
}

// DetectBytes classifies already-read content.
func (r *Registry) DetectBytes(name string, data []byte) models.InputKind {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		if LooksLikeOverrides(data) {
			return models.InputOverrides
		}
		return models.InputUnknown
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == nil {
		if p, err := r.FindParser(header); err == nil {
			return p.Kind()
		}
	}

	if LooksLikeOverrides(data) {
		return models.InputOverrides
	}
	return models.InputUnknown
}
