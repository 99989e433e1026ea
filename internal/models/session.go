package models

import "time"

// RunStatus represents the state of a background PPK interpolation run.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusError     RunStatus = "error"
)

// PPKRun is the observable progress of an interpolation run.
type PPKRun struct {
	Status           RunStatus  `json:"status"`
	Processed        int        `json:"processed"`
	Total            int        `json:"total"`
	Progress         float64    `json:"progress"` // 0-100
	Resolved         int        `json:"resolved"`
	Skipped          int        `json:"skipped"`
	Error            string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	ProcessingTimeMs int64      `json:"processingTimeMs,omitempty"`
}

// Done reports whether the run has stopped.
func (r PPKRun) Done() bool {
	return r.Status == RunStatusComplete || r.Status == RunStatusCancelled || r.Status == RunStatusError
}

// SessionInfo summarises what a session has loaded.
type SessionInfo struct {
	ID                string       `json:"id"`
	MaxGapMinutes     int          `json:"maxGapMinutes"`
	ImageCount        int          `json:"imageCount"`
	SetCount          int          `json:"setCount"`
	CorrectionCount   int          `json:"correctionCount"`
	UnusedCorrections []string     `json:"unusedCorrections,omitempty"`
	FixCount          int          `json:"fixCount"`
	TrackRange        *TimeRange   `json:"trackRange,omitempty"`
	ImageRange        *TimeRange   `json:"imageRange,omitempty"`
	PositionsReady    bool         `json:"positionsReady"`
	DiagnosticCount   int          `json:"diagnosticCount"`
	Sets              []SetSummary `json:"sets"`
	PPKRun            *PPKRun      `json:"ppkRun,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
}
