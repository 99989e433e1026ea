package models

import "time"

// PPKFix is one post-processed GNSS sample.
type PPKFix struct {
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Instant   time.Time `json:"instant"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Seq       int       `json:"seq"` // load order
}

// TimeRange represents a time window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
