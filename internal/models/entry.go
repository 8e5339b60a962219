package models

import "time"

// Entry is one login reconstructed from a detail view.
type Entry struct {
	Title          string   `json:"title"`
	SiteURL        string   `json:"siteUrl"`
	Username       string   `json:"username"`
	Password       string   `json:"password"`
	AdditionalURLs []string `json:"additionalUrls"`
}

// RowSample is a single observation taken while waiting for the row count to settle.
type RowSample struct {
	Attempt int
	Count   int
}

// ExtractionResult is the output of a completed extraction.
// Rows that could not be opened are counted in FailedRowCount and contribute no Entry.
type ExtractionResult struct {
	Entries        []Entry       `json:"entries"`
	FailedRowCount int           `json:"failedRowCount"`
	StableCount    int           `json:"stableCount"`
	Visited        int           `json:"visited"`
	Duration       time.Duration `json:"-"`
}
