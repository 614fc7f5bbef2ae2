package common

import (
	"github.com/google/uuid"
)

// NewCandidateID generates a unique candidate ID with the "cand_" prefix
func NewCandidateID() string {
	return "cand_" + uuid.New().String()
}

// NewEmbeddingID generates a unique resume embedding ID
func NewEmbeddingID() string {
	return "emb_" + uuid.New().String()
}

// NewJobRequirementID generates a unique job requirement ID
func NewJobRequirementID() string {
	return "req_" + uuid.New().String()
}

// NewMatchID generates a unique candidate match ID
func NewMatchID() string {
	return "match_" + uuid.New().String()
}

// NewProfileID generates a unique external profile ID
func NewProfileID() string {
	return "prof_" + uuid.New().String()
}

// NewQueueJobID generates a unique queue job ID
func NewQueueJobID() string {
	return "job_" + uuid.New().String()
}

// NewTrackerID generates a unique process tracker ID
func NewTrackerID() string {
	return "trk_" + uuid.New().String()
}

// NewAuditID generates a unique match audit ID
func NewAuditID() string {
	return "audit_" + uuid.New().String()
}

// NewDeadLetterID generates a unique dead letter ID
func NewDeadLetterID() string {
	return "dlq_" + uuid.New().String()
}

// NewCorrelationID generates a correlation ID shared by one upload batch
func NewCorrelationID() string {
	return "corr_" + uuid.New().String()
}

// NewWorkerID generates a worker identity used for queue lease assignment
func NewWorkerID() string {
	return "worker_" + uuid.New().String()
}
