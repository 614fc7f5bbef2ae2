package models

import (
	"time"
)

// JobType identifies which processor handles a queue row.
type JobType string

const (
	JobTypeResumeProcessing JobType = "RESUME_PROCESSING"
	JobTypeBatchEmbedding   JobType = "BATCH_EMBEDDING"
	JobTypeDataMigration    JobType = "DATA_MIGRATION"
	JobTypeCleanup          JobType = "CLEANUP"
)

// JobStatus is the queue state machine:
//
//	PENDING -> PROCESSING -> COMPLETED
//	PROCESSING -> PENDING (retryable failure, rescheduled)
//	PROCESSING -> FAILED  (retries exhausted; dead-letter copy)
//	PENDING/PROCESSING -> CANCELLED (explicit request, best-effort)
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// QueueJob is one durable unit of work, typically one uploaded file. The
// version column is a monotonic revision used for the optimistic claim.
type QueueJob struct {
	ID              string                 `json:"id"`
	JobType         JobType                `json:"job_type"`
	CorrelationID   string                 `json:"correlation_id,omitempty"`
	Status          JobStatus              `json:"status"`
	Priority        int                    `json:"priority"` // Higher first
	FileData        []byte                 `json:"-"`
	Filename        string                 `json:"filename,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	RetryCount      int                    `json:"retry_count"`
	MaxRetries      int                    `json:"max_retries"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	ErrorStackTrace string                 `json:"-"`
	CreatedAt       time.Time              `json:"created_at"`
	ScheduledFor    time.Time              `json:"scheduled_for"`
	StartedAt       *time.Time             `json:"started_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
	AssignedTo      string                 `json:"assigned_to,omitempty"`
	HeartbeatAt     *time.Time             `json:"heartbeat_at,omitempty"`
	Version         int64                  `json:"version"`
}

// GetStringMetadata returns a string metadata value, or "" when absent or
// not a string.
func (j *QueueJob) GetStringMetadata(key string) string {
	if j.Metadata == nil {
		return ""
	}
	if v, ok := j.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// TrackerID returns the process tracker this job reports to, if any.
func (j *QueueJob) TrackerID() string {
	return j.GetStringMetadata("tracker_id")
}

// RetriesRemaining reports whether a failure may be rescheduled.
func (j *QueueJob) RetriesRemaining() bool {
	return j.RetryCount < j.MaxRetries
}

// DeadLetterJob archives a terminally failed job for post-mortem. Rows are
// never retried automatically.
type DeadLetterJob struct {
	ID            string    `json:"id"`
	OriginalJobID string    `json:"original_job_id"`
	JobType       JobType   `json:"job_type"`
	FailedAt      time.Time `json:"failed_at"`
	FailureReason string    `json:"failure_reason"`
	JobData       []byte    `json:"-"`
	Filename      string    `json:"filename,omitempty"`
	RetryAttempts int       `json:"retry_attempts"`
	Resolved      bool      `json:"resolved"`
}

// QueueStats is a point-in-time aggregate over the queue table.
type QueueStats struct {
	Pending              int64   `json:"pending"`
	Processing           int64   `json:"processing"`
	Completed            int64   `json:"completed"`
	Failed               int64   `json:"failed"`
	Cancelled            int64   `json:"cancelled"`
	DeadLetters          int64   `json:"dead_letters"`
	AvgProcessingSeconds float64 `json:"avg_processing_seconds"`
}
