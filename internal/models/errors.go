package models

import "errors"

// Failure taxonomy. Per-record failures are reported as Diagnostics and the
// record is skipped; precondition failures abort only the operation that
// needed them.
var (
	ErrMalformedTimestamp     = errors.New("malformed timestamp")
	ErrNoTemporalOverlap      = errors.New("image timestamps do not overlap PPK data timestamps")
	ErrNoBracketingFix        = errors.New("no PPK fix brackets the image time")
	ErrNoQualifyingCorrection = errors.New("no qualifying correction")
	ErrIOFailure              = errors.New("io failure")

	ErrUnsortedCorrections = errors.New("corrections are not sorted by date/time")
	ErrMissingColumn       = errors.New("missing required column")
	ErrMalformedRow        = errors.New("malformed row")
	ErrInvalidGap          = errors.New("max gap out of range")
	ErrMissingInput        = errors.New("missing input")
	ErrRunInProgress       = errors.New("ppk run already in progress")
	ErrSetNotFound         = errors.New("flight set not found")
	ErrFileNotFound        = errors.New("file not found")
)
