package parser

import (
	"fmt"
	"io"
	"os"

	"github.com/uav-shift/backend/internal/models"
)

// Correction CSV columns.
const (
	ColPointID   = "Point Id"
	ColDateTime  = "Date/Time"
	ColDeltaLat  = "deltaLat"
	ColDeltaLong = "deltaLong"
	ColDeltaH    = "deltah"
)

// CorrectionParser reads surveyed ground-control correction CSVs.
type CorrectionParser struct{}

func NewCorrectionParser() *CorrectionParser {
	return &CorrectionParser{}
}

func (p *CorrectionParser) Name() string {
	return "corrections"
}

func (p *CorrectionParser) Kind() models.InputKind {
	return models.InputCorrections
}

func (p *CorrectionParser) CanParse(header []string) bool {
	return hasAll(header, ColPointID, ColDateTime, ColDeltaLat, ColDeltaLong, ColDeltaH)
}

// ParseFile opens and parses a correction CSV.
func (p *CorrectionParser) ParseFile(path string) ([]models.CorrectionEntry, []models.Diagnostic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	defer f.Close()
	return ParseCorrections(f)
}

// ParseCorrections reads correction entries in file order. Rows with an
// unparsable timestamp or delta are skipped and reported. The returned
// entries are not re-sorted.
func ParseCorrections(r io.Reader) ([]models.CorrectionEntry, []models.Diagnostic, error) {
	t, err := openTable(r)
	if err != nil {
		return nil, nil, err
	}
	if err := t.require(ColPointID, ColDateTime, ColDeltaLat, ColDeltaLong, ColDeltaH); err != nil {
		return nil, nil, err
	}

	entries := make([]models.CorrectionEntry, 0)
	diags := make([]models.Diagnostic, 0)

	for {
		row, line, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if line == 0 {
				return nil, nil, err
			}
			diags = append(diags, models.NewDiagnostic("corrections", line, err))
			continue
		}

		id := t.field(row, ColPointID)
		if id == "" {
			diags = append(diags, models.NewDiagnostic("corrections", line,
				fmt.Errorf("%w: empty %s", models.ErrMalformedRow, ColPointID)))
			continue
		}

		ts, err := ParseCorrectionTime(t.field(row, ColDateTime))
		if err != nil {
			diags = append(diags, models.NewDiagnostic(id, line, err))
			continue
		}

		var d models.Delta
		if d.Lat, err = t.float(row, ColDeltaLat); err == nil {
			if d.Lon, err = t.float(row, ColDeltaLong); err == nil {
				d.Alt, err = t.float(row, ColDeltaH)
			}
		}
		if err != nil {
			diags = append(diags, models.NewDiagnostic(id, line, err))
			continue
		}

		entries = append(entries, models.CorrectionEntry{
			PointID:  id,
			DateTime: ts,
			Delta:    d,
			Line:     line,
		})
	}

	return entries, diags, nil
}

func hasAll(header []string, names ...string) bool {
	set := make(map[string]struct{}, len(header))
	for _, h := range header {
		set[NormalizeHeader(h)] = struct{}{}
	}
	for _, n := range names {
		if _, ok := set[NormalizeHeader(n)]; !ok {
			return false
		}
	}
	return true
}
