package models

import (
	"time"
)

// TrackerStatus is the user-visible progress of one upload batch.
type TrackerStatus string

const (
	TrackerStatusInitiated       TrackerStatus = "INITIATED"
	TrackerStatusResumeAnalyzed  TrackerStatus = "RESUME_ANALYZED"
	TrackerStatusEmbedGenerated  TrackerStatus = "EMBED_GENERATED"
	TrackerStatusVectorDBUpdated TrackerStatus = "VECTOR_DB_UPDATED"
	TrackerStatusCompleted       TrackerStatus = "COMPLETED"
	TrackerStatusFailed          TrackerStatus = "FAILED"
)

// IsTerminal reports whether the tracker reached its final state.
func (s TrackerStatus) IsTerminal() bool {
	return s == TrackerStatusCompleted || s == TrackerStatusFailed
}

// ProcessTracker is the only status surface the UI polls for one upload.
// Invariant: ProcessedFiles + FailedFiles <= TotalFiles, with equality
// exactly when the final job terminates.
type ProcessTracker struct {
	ID                string        `json:"id"`
	Status            TrackerStatus `json:"status"`
	TotalFiles        int           `json:"total_files"`
	ProcessedFiles    int           `json:"processed_files"`
	FailedFiles       int           `json:"failed_files"`
	Message           string        `json:"message,omitempty"`
	UploadedFilename  string        `json:"uploaded_filename,omitempty"`
	CorrelationID     string        `json:"correlation_id,omitempty"`
	JobID             string        `json:"job_id,omitempty"` // Weak reference; survives queue cleanup
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// AllFilesAccounted reports whether every file reached a terminal outcome.
func (t *ProcessTracker) AllFilesAccounted() bool {
	return t.ProcessedFiles+t.FailedFiles >= t.TotalFiles
}
