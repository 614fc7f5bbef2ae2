package workers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/aptus/internal/services/embeddings"
	"github.com/ternarybob/arbor"
)

// ResumeWorker processes one RESUME_PROCESSING job: parse the file, extract
// the candidate profile, upsert it, regenerate embeddings. The lease is
// heartbeated between steps and cancellation is observed at each boundary;
// work persisted before a cancel is kept.
type ResumeWorker struct {
	parser     interfaces.FileParser
	llm        interfaces.LLMService
	candidates interfaces.CandidateStorage
	embeddings *embeddings.Service
	trackers   interfaces.TrackerStorage
	logger     arbor.ILogger
}

var _ interfaces.JobWorker = (*ResumeWorker)(nil)

// NewResumeWorker creates the resume processing worker
func NewResumeWorker(
	parser interfaces.FileParser,
	llm interfaces.LLMService,
	candidates interfaces.CandidateStorage,
	embeddings *embeddings.Service,
	trackers interfaces.TrackerStorage,
	logger arbor.ILogger,
) *ResumeWorker {
	return &ResumeWorker{
		parser:     parser,
		llm:        llm,
		candidates: candidates,
		embeddings: embeddings,
		trackers:   trackers,
		logger:     logger,
	}
}

func (w *ResumeWorker) JobType() models.JobType {
	return models.JobTypeResumeProcessing
}

// Validate rejects jobs that could never succeed before they are executed.
func (w *ResumeWorker) Validate(job *models.QueueJob) error {
	if len(job.FileData) == 0 {
		return fmt.Errorf("%w: job %s carries no file data", common.ErrInvalidInput, job.ID)
	}
	return nil
}

// Execute runs the pipeline for one claimed queue job.
func (w *ResumeWorker) Execute(ctx context.Context, job *models.QueueJob, lease interfaces.JobLease) error {
	return w.ProcessFile(ctx, job.FileData, job.Filename, job.TrackerID(), lease)
}

// ProcessFile runs the resume pipeline for one file. It is shared by the
// queue worker and the inline upload path; the inline path passes a no-op
// lease. Tracker file outcomes for failures are recorded by the caller,
// which knows whether the failure is terminal.
func (w *ResumeWorker) ProcessFile(ctx context.Context, data []byte, filename, trackerID string, lease interfaces.JobLease) error {
	if lease.Cancelled(ctx) {
		return common.ErrJobCancelled
	}

	text, err := w.parser.Parse(ctx, data, filename)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	w.heartbeat(ctx, lease)

	if lease.Cancelled(ctx) {
		return common.ErrJobCancelled
	}

	extract, err := w.llm.AnalyzeResume(ctx, text)
	if err != nil {
		return fmt.Errorf("resume analysis for %s: %w", filename, err)
	}
	w.updateTracker(ctx, trackerID, models.TrackerStatusResumeAnalyzed, fmt.Sprintf("Analyzed %s", filename))
	w.heartbeat(ctx, lease)

	if lease.Cancelled(ctx) {
		return common.ErrJobCancelled
	}

	candidate := candidateFromExtract(extract, filename, text, data)
	candidateID, err := w.candidates.UpsertByEmail(ctx, candidate)
	if err != nil {
		return fmt.Errorf("failed to store candidate from %s: %w", filename, err)
	}

	chunks, err := w.embeddings.EmbedAndPersist(ctx, candidateID, text, lease.Heartbeat)
	if err != nil {
		return fmt.Errorf("failed to embed resume %s: %w", filename, err)
	}
	w.updateTracker(ctx, trackerID, models.TrackerStatusEmbedGenerated, fmt.Sprintf("Embedded %s", filename))

	if trackerID != "" {
		if _, err := w.trackers.RecordFileOutcome(ctx, trackerID, true, fmt.Sprintf("Processed %s", filename), timeNow()); err != nil {
			w.logger.Warn().Err(err).Str("tracker_id", trackerID).Msg("Failed to record file success")
		}
	}

	w.logger.Info().
		Str("candidate_id", candidateID).
		Str("filename", filename).
		Int("chunks", chunks).
		Msg("Resume processed")
	return nil
}

// RecordFailure marks the file failed on the tracker. Called by the
// scheduler on terminal failures and by the inline path, never on a
// retryable failure that will run again.
func (w *ResumeWorker) RecordFailure(ctx context.Context, trackerID, message string) {
	if trackerID == "" {
		return
	}
	if _, err := w.trackers.RecordFileOutcome(ctx, trackerID, false, message, timeNow()); err != nil {
		w.logger.Warn().Err(err).Str("tracker_id", trackerID).Msg("Failed to record file failure")
	}
}

func (w *ResumeWorker) heartbeat(ctx context.Context, lease interfaces.JobLease) {
	if err := lease.Heartbeat(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("Lease heartbeat failed")
	}
}

func (w *ResumeWorker) updateTracker(ctx context.Context, trackerID string, status models.TrackerStatus, message string) {
	if trackerID == "" {
		return
	}
	if err := w.trackers.UpdateStatus(ctx, trackerID, status, message); err != nil {
		w.logger.Warn().Err(err).Str("tracker_id", trackerID).Msg("Failed to update tracker status")
	}
}

func candidateFromExtract(extract *models.CandidateExtract, filename, text string, data []byte) *models.Candidate {
	return &models.Candidate{
		Name:               strings.TrimSpace(extract.Name),
		Email:              models.NormalizeEmail(extract.Email),
		Mobile:             strings.TrimSpace(extract.Mobile),
		ResumeFilename:     filename,
		ResumeContent:      text,
		ResumeFile:         data,
		ExperienceSummary:  extract.ExperienceSummary,
		Skills:             extract.Skills.String(),
		DomainKnowledge:    extract.DomainKnowledge.String(),
		AcademicBackground: extract.AcademicBackground.String(),
		YearsOfExperience:  extract.YearsOfExperience.Value,
	}
}

// NoopLease satisfies the lease contract for inline processing, where there
// is no queue row to keep alive.
type NoopLease struct{}

var _ interfaces.JobLease = NoopLease{}

func (NoopLease) Heartbeat(ctx context.Context) error { return nil }
func (NoopLease) Cancelled(ctx context.Context) bool  { return false }
