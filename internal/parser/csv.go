package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/uav-shift/backend/internal/models"
)

const utf8BOM = "\ufeff"

// NormalizeHeader lower-cases a column name and collapses inner whitespace so
// that "WGS84  Ellip. Height" and "wgs84 ellip. height" compare equal.
func NormalizeHeader(name string) string {
	name = strings.TrimPrefix(name, utf8BOM)
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// csvTable reads a headed CSV file row by row.
type csvTable struct {
	r      *csv.Reader
	header []string
	cols   map[string]int
}

func openTable(r io.Reader) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", models.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", models.ErrIOFailure, err)
	}

	t := &csvTable{r: cr, header: make([]string, len(header)), cols: make(map[string]int, len(header))}
	for i, h := range header {
		n := NormalizeHeader(h)
		t.header[i] = n
		if _, dup := t.cols[n]; !dup {
			t.cols[n] = i
		}
	}
	return t, nil
}

// require fails with ErrMissingColumn naming every absent column.
func (t *csvTable) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := t.cols[NormalizeHeader(n)]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", models.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

func (t *csvTable) has(name string) bool {
	_, ok := t.cols[NormalizeHeader(name)]
	return ok
}

// next returns the next non-blank row and its 1-based line number.
// Rows the csv package cannot split are returned as errors wrapping
// ErrMalformedRow so callers can skip them.
func (t *csvTable) next() ([]string, int, error) {
	for {
		row, err := t.r.Read()
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, pe.StartLine, fmt.Errorf("%w: %v", models.ErrMalformedRow, pe.Err)
			}
			return nil, 0, fmt.Errorf("%w: %v", models.ErrIOFailure, err)
		}
		line, _ := t.r.FieldPos(0)
		if isBlank(row) {
			continue
		}
		return row, line, nil
	}
}

// field returns the trimmed value of a named column, or "" when the row is
// short or the column is absent.
func (t *csvTable) field(row []string, name string) string {
	i, ok := t.cols[NormalizeHeader(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// float parses a named column as a float64.
func (t *csvTable) float(row []string, name string) (float64, error) {
	raw := t.field(row, name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: column %q value %q", models.ErrMalformedRow, name, raw)
	}
	return v, nil
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
