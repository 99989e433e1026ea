package models

import (
	"errors"
	"fmt"
)

// DiagnosticKind classifies a skipped record or a warning.
type DiagnosticKind string

const (
	KindMalformedTimestamp     DiagnosticKind = "malformed_timestamp"
	KindNoTemporalOverlap      DiagnosticKind = "no_temporal_overlap"
	KindNoBracketingFix        DiagnosticKind = "no_bracketing_fix"
	KindNoQualifyingCorrection DiagnosticKind = "no_qualifying_correction"
	KindUnusedCorrection       DiagnosticKind = "unused_correction"
	KindMalformedRow           DiagnosticKind = "malformed_row"
	KindIOFailure              DiagnosticKind = "io_failure"
	KindOther                  DiagnosticKind = "other"
)

// Diagnostic records a record that was skipped, or a warning about one.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Subject string         `json:"subject,omitempty"` // file name, set number or point id
	Line    int            `json:"line,omitempty"`
	Reason  string         `json:"reason"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d): %s", d.Kind, d.Subject, d.Line, d.Reason)
	}
	if d.Subject != "" {
		return fmt.Sprintf("%s: %s: %s", d.Kind, d.Subject, d.Reason)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Reason)
}

// KindOf maps an error onto the diagnostic taxonomy.
func KindOf(err error) DiagnosticKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedTimestamp):
		return KindMalformedTimestamp
	case errors.Is(err, ErrNoTemporalOverlap):
		return KindNoTemporalOverlap
	case errors.Is(err, ErrNoBracketingFix):
		return KindNoBracketingFix
	case errors.Is(err, ErrNoQualifyingCorrection):
		return KindNoQualifyingCorrection
	case errors.Is(err, ErrMalformedRow):
		return KindMalformedRow
	case errors.Is(err, ErrIOFailure):
		return KindIOFailure
	}
	return KindOther
}

// NewDiagnostic builds a diagnostic from an error.
func NewDiagnostic(subject string, line int, err error) Diagnostic {
	return Diagnostic{
		Kind:    KindOf(err),
		Subject: subject,
		Line:    line,
		Reason:  err.Error(),
	}
}
