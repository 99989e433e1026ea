package parser

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/uav-shift/backend/internal/models"
)

// ParseOverrides parses a YAML file of manual per-set corrections:
//
//	sets:
//	  - set: 2
//	    delta_lat: 0.000012
//	    delta_lon: -0.000004
//	    delta_alt: 0.35
func ParseOverrides(filePath string) (*models.Overrides, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	defer file.Close()

	return ParseOverridesFromReader(file)
}

// ParseOverridesFromReader parses overrides from an io.Reader. Set numbers
// are 1-based and must be unique.
func ParseOverridesFromReader(r io.Reader) (*models.Overrides, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}

	var o models.Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("%w: overrides: %v", models.ErrMalformedRow, err)
	}

	seen := make(map[int]struct{}, len(o.Sets))
	for _, s := range o.Sets {
		if s.Set < 1 {
			return nil, fmt.Errorf("%w: overrides: set number %d must be 1 or greater", models.ErrMalformedRow, s.Set)
		}
		if _, dup := seen[s.Set]; dup {
			return nil, fmt.Errorf("%w: overrides: set %d listed twice", models.ErrMalformedRow, s.Set)
		}
		seen[s.Set] = struct{}{}
	}

	return &o, nil
}

// LooksLikeOverrides reports whether data decodes as an overrides document
// with at least one set.
func LooksLikeOverrides(data []byte) bool {
	var o models.Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return false
	}
	return len(o.Sets) > 0
}
