// Package export writes resolved image positions to flat files.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/uav-shift/backend/internal/models"
)

// Format fixes the header and decimal precision of a CSV export.
type Format struct {
	Header        []string
	CoordDecimals int
	AltDecimals   int
}

// DeltaFormat is used for positions corrected by a ground-control delta.
func DeltaFormat() Format {
	return Format{
		Header:        []string{"ID", "Latitude", "Longitude", "Altitude"},
		CoordDecimals: 9,
		AltDecimals:   6,
	}
}

// PPKFormat is used for positions interpolated from a PPK track.
func PPKFormat() Format {
	return Format{
		Header:        []string{"Image Filename", "Latitude", "Longitude", "Altitude"},
		CoordDecimals: 9,
		AltDecimals:   4,
	}
}

// FormatFor returns the default format of a correction mode.
func FormatFor(mode models.CorrectionMode) Format {
	if mode == models.ModePPK {
		return PPKFormat()
	}
	return DeltaFormat()
}

// WriteCSV writes the header and one row per position.
func WriteCSV(w io.Writer, rows []models.ResolvedPosition, f Format) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Header); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	rec := make([]string, 4)
	for _, r := range rows {
		rec[0] = r.Filename
		rec[1] = strconv.FormatFloat(r.Latitude, 'f', f.CoordDecimals, 64)
		rec[2] = strconv.FormatFloat(r.Longitude, 'f', f.CoordDecimals, 64)
		rec[3] = strconv.FormatFloat(r.Altitude, 'f', f.AltDecimals, 64)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	return nil
}

// WriteMsgpack encodes the positions as a msgpack array.
func WriteMsgpack(w io.Writer, rows []models.ResolvedPosition) error {
	if rows == nil {
		rows = []models.ResolvedPosition{}
	}
	if err := msgpack.NewEncoder(w).Encode(rows); err != nil {
		return fmt.Errorf("%w: msgpack: %v", models.ErrIOFailure, err)
	}
	return nil
}

// WriteCSVFile writes a CSV export atomically: rows go to a temp file in the
// destination directory which is renamed over path once complete.
func WriteCSVFile(path string, rows []models.ResolvedPosition, f Format) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, rows, f)
	})
}

// WriteMsgpackFile is WriteCSVFile for msgpack output.
func WriteMsgpackFile(path string, rows []models.ResolvedPosition) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteMsgpack(w, rows)
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		cleanup()
		return err
	}
	if err := bw.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	return nil
}
