package models

import "time"

// InputKind identifies what an uploaded file contains.
type InputKind string

const (
	InputImages      InputKind = "images"
	InputCorrections InputKind = "corrections"
	InputPPK         InputKind = "ppk"
	InputOverrides   InputKind = "overrides"
	InputUnknown     InputKind = "unknown"
)

// FileInfo represents metadata about an uploaded file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Kind       InputKind `json:"kind"`
	UploadedAt time.Time `json:"uploadedAt"`
}
