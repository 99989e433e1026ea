package parser

import (
	"fmt"
	"io"
	"os"

	"github.com/uav-shift/backend/internal/models"
)

// PPK CSV columns.
const (
	ColLatitude  = "WGS84 Latitude"
	ColLongitude = "WGS84 Longitude"
	ColHeight    = "WGS84 Ellip. Height"
)

// PPKParser reads post-processed GNSS track CSVs.
type PPKParser struct{}

func NewPPKParser() *PPKParser {
	return &PPKParser{}
}

func (p *PPKParser) Name() string {
	return "ppk"
}

func (p *PPKParser) Kind() models.InputKind {
	return models.InputPPK
}

func (p *PPKParser) CanParse(header []string) bool {
	return hasAll(header, ColDateTime, ColLatitude, ColLongitude, ColHeight)
}

// ParseFile opens and parses a PPK track CSV.
func (p *PPKParser) ParseFile(path string) ([]models.PPKFix, []models.Diagnostic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	defer f.Close()
	return ParsePPK(f)
}

// ParsePPK reads fixes in load order. Seq records that order and breaks ties
// between fixes sharing an instant.
func ParsePPK(r io.Reader) ([]models.PPKFix, []models.Diagnostic, error) {
	t, err := openTable(r)
	if err != nil {
		return nil, nil, err
	}
	if err := t.require(ColDateTime, ColLatitude, ColLongitude, ColHeight); err != nil {
		return nil, nil, err
	}

	fixes := make([]models.PPKFix, 0, 1024)
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
			diags = append(diags, models.NewDiagnostic("ppk", line, err))
			continue
		}

		date, clock, err := SplitDateTime(t.field(row, ColDateTime))
		if err != nil {
			diags = append(diags, models.NewDiagnostic("ppk", line, err))
			continue
		}
		instant, err := ParsePPKTime(date, clock)
		if err != nil {
			diags = append(diags, models.NewDiagnostic("ppk", line, err))
			continue
		}

		fix := models.PPKFix{Date: date, Time: clock, Instant: instant, Seq: len(fixes)}
		if fix.Latitude, err = t.float(row, ColLatitude); err == nil {
			if fix.Longitude, err = t.float(row, ColLongitude); err == nil {
				fix.Altitude, err = t.float(row, ColHeight)
			}
		}
		if err != nil {
			diags = append(diags, models.NewDiagnostic("ppk", line, err))
			continue
		}

		fixes = append(fixes, fix)
	}

	return fixes, diags, nil
}
