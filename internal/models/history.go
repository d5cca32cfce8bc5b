package models

import "time"

// HistoryStatus describes how processing of one upload ended.
type HistoryStatus string

const (
	StatusRenamed          HistoryStatus = "renamed"
	StatusExtractionFailed HistoryStatus = "extraction_failed"
	StatusTitleFailed      HistoryStatus = "title_failed"
	StatusRejected         HistoryStatus = "rejected"
)

// HistoryRecord captures the outcome of processing a single upload.
// Only names and reasons are stored, never file content.
type HistoryRecord struct {
	ID           int64         `json:"id"`
	SessionID    string        `json:"session_id"`
	OriginalName string        `json:"original_name"`
	ProposedName string        `json:"proposed_name,omitempty"`
	Status       HistoryStatus `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
