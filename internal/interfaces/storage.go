package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/aptus/internal/models"
)

// CandidateStorage - typed access to candidate rows
type CandidateStorage interface {
	// UpsertByEmail inserts the candidate, or overwrites resume fields of the
	// existing row when the email already exists and the names agree. Returns
	// the stored candidate id.
	UpsertByEmail(ctx context.Context, candidate *models.Candidate) (string, error)
	Get(ctx context.Context, id string) (*models.Candidate, error)
	GetByEmail(ctx context.Context, email string) (*models.Candidate, error)
	List(ctx context.Context, limit, offset int) ([]*models.Candidate, error)
	Count(ctx context.Context) (int, error)

	// Delete removes the candidate and cascades to embeddings, external
	// profiles, and matches in one transaction.
	Delete(ctx context.Context, id string) error
}

// EmbeddingStorage - resume chunk vectors
type EmbeddingStorage interface {
	StoreBatch(ctx context.Context, embeddings []*models.ResumeEmbedding) error

	// DeleteByCandidate removes all chunks for a candidate. Run before
	// re-embedding so a retried job never leaves orphan chunks.
	DeleteByCandidate(ctx context.Context, candidateID string) error
	GetByCandidate(ctx context.Context, candidateID string) ([]*models.ResumeEmbedding, error)
	CountByCandidate(ctx context.Context, candidateID string) (int, error)

	// SearchSimilar ranks stored chunks by cosine similarity to the query
	// vector and returns the top limit matches.
	SearchSimilar(ctx context.Context, query []float32, limit int) ([]*models.EmbeddingMatch, error)
}

// JobRequirementStorage - job requirement rows
type JobRequirementStorage interface {
	Create(ctx context.Context, req *models.JobRequirement) error
	Update(ctx context.Context, req *models.JobRequirement) error
	Get(ctx context.Context, id string) (*models.JobRequirement, error)
	List(ctx context.Context, activeOnly bool) ([]*models.JobRequirement, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// MatchStorage - candidate/job match rows
type MatchStorage interface {
	// Upsert writes the match keyed on (candidate_id, job_requirement_id).
	// Scores and explanation are overwritten; is_selected and recruiter
	// notes are preserved on conflict.
	Upsert(ctx context.Context, match *models.CandidateMatch) error
	Get(ctx context.Context, candidateID, jobRequirementID string) (*models.CandidateMatch, error)
	ListByJob(ctx context.Context, jobRequirementID string) ([]*models.CandidateMatch, error)
	ListByCandidate(ctx context.Context, candidateID string) ([]*models.CandidateMatch, error)
	SetSelected(ctx context.Context, id string, selected bool, notes string) error
}

// ProfileStorage - external enrichment profiles
type ProfileStorage interface {
	// Upsert writes the profile keyed on (candidate_id, source).
	Upsert(ctx context.Context, profile *models.CandidateExternalProfile) error
	Get(ctx context.Context, candidateID string, source models.ProfileSource) (*models.CandidateExternalProfile, error)
	ListByCandidate(ctx context.Context, candidateID string) ([]*models.CandidateExternalProfile, error)
}

// QueueStorage - the durable job queue. The claim is the only serialization
// point between workers.
type QueueStorage interface {
	Create(ctx context.Context, job *models.QueueJob) (string, error)

	// ClaimBatch atomically claims up to limit PENDING jobs due by now,
	// ordered priority DESC then created_at ASC, marking them PROCESSING and
	// assigned to workerID. No two claimers ever receive the same row.
	ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]*models.QueueJob, error)

	// Heartbeat refreshes the lease. No effect unless the job is PROCESSING.
	Heartbeat(ctx context.Context, jobID string, now time.Time) error

	Complete(ctx context.Context, jobID string, now time.Time) error

	// FailRetryable increments retry_count and reschedules the job PENDING
	// at scheduledFor with the worker assignment cleared.
	FailRetryable(ctx context.Context, jobID string, reason string, scheduledFor time.Time) error

	// FailTerminal marks the job FAILED and appends a dead-letter copy.
	FailTerminal(ctx context.Context, jobID string, reason string, stackTrace string, now time.Time) error

	// Cancel requests cancellation. A PENDING job is cancelled immediately;
	// a PROCESSING job has its cooperative flag set for the worker to
	// observe between steps.
	Cancel(ctx context.Context, jobID string, now time.Time) error

	// IsCancelled reports whether a cancel request was recorded for the job.
	IsCancelled(ctx context.Context, jobID string) (bool, error)

	// MarkCancelled finalizes a PROCESSING job whose worker observed the
	// cancel flag. Partial persistence is kept.
	MarkCancelled(ctx context.Context, jobID string, now time.Time) error

	// SweepStale fails PROCESSING jobs whose heartbeat is older than the
	// threshold: rescheduled when retries remain, dead-lettered otherwise.
	// Returns the number of jobs recovered.
	SweepStale(ctx context.Context, staleThreshold time.Duration, retryDelay time.Duration, now time.Time) (int, error)

	// Cleanup deletes terminal rows older than the retention window.
	Cleanup(ctx context.Context, retention time.Duration, now time.Time) (int, error)

	Get(ctx context.Context, jobID string) (*models.QueueJob, error)
	CountPending(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*models.QueueStats, error)

	ListDeadLetters(ctx context.Context, limit int) ([]*models.DeadLetterJob, error)
	ResolveDeadLetter(ctx context.Context, id string) error
}

// TrackerStorage - upload progress rows. Counter updates are monotonic.
type TrackerStorage interface {
	Create(ctx context.Context, tracker *models.ProcessTracker) error
	Get(ctx context.Context, id string) (*models.ProcessTracker, error)
	List(ctx context.Context, limit int) ([]*models.ProcessTracker, error)

	// UpdateStatus sets the phase and message without touching counters.
	UpdateStatus(ctx context.Context, id string, status models.TrackerStatus, message string) error

	// RecordFileOutcome increments processed_files (success) or failed_files
	// and flips the tracker terminal when every file is accounted for.
	RecordFileOutcome(ctx context.Context, id string, succeeded bool, message string, now time.Time) (*models.ProcessTracker, error)
}

// AuditStorage - append-only match run records
type AuditStorage interface {
	Create(ctx context.Context, audit *models.MatchAudit) error
	Finalize(ctx context.Context, audit *models.MatchAudit) error
	Get(ctx context.Context, id string) (*models.MatchAudit, error)
	ListByJob(ctx context.Context, jobRequirementID string, limit int) ([]*models.MatchAudit, error)
}

// KeyValueStorage - named secrets and settings
type KeyValueStorage interface {
	Set(ctx context.Context, key, value, description string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]models.KeyValuePair, error)
	Close() error
}
