package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/models"
)

// AuditRecorder receives fire-and-forget audit events for batch runs.
// Implementations must never block or surface errors to the caller.
type AuditRecorder interface {
	RecordStart(audit *models.MatchAudit)
	RecordFinish(audit *models.MatchAudit)
	EstimatedTokens(candidateCount int) int
}

// maxParallelism caps any per-run override so one request cannot flood the
// LLM provider.
const maxParallelism = 16

// MatchAll scores every candidate against one job. Candidates run serially
// by default or in a bounded parallel group; a positive parallelism
// overrides the configured width for this run. Each iteration is
// independent and a failure on one candidate never stops the rest. One
// audit row traces the run; its persistence is asynchronous and
// best-effort.
func (e *Engine) MatchAll(ctx context.Context, jobID string, auditor AuditRecorder, parallelism int) ([]*models.CandidateMatch, error) {
	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("job requirement %s: %w", jobID, err)
	}

	candidates, err := e.allCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	principal := common.PrincipalFrom(ctx)
	audit := &models.MatchAudit{
		ID:               common.NewAuditID(),
		JobRequirementID: job.ID,
		JobTitle:         job.Title,
		Status:           models.AuditStatusRunning,
		TotalCandidates:  len(candidates),
		InitiatedBy:      principal.Username,
		InitiatedAt:      time.Now().UTC(),
	}
	if auditor != nil {
		auditor.RecordStart(audit)
	}

	started := time.Now()
	results := make([]*models.CandidateMatch, len(candidates))
	summaries := make([]models.MatchSummary, len(candidates))

	if parallelism < 1 {
		parallelism = e.matchCfg.Parallelism
	}
	if parallelism < 1 {
		parallelism = 1
	}
	if parallelism > maxParallelism {
		parallelism = maxParallelism
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, parallelism)
	for i, candidate := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, candidate *models.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()

			match, err := e.Match(ctx, candidate, job)
			summary := models.MatchSummary{
				CandidateID:   candidate.ID,
				CandidateName: candidate.Name,
			}
			if err != nil {
				e.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Str("job_id", job.ID).Msg("Candidate match failed during batch run")
				summary.Error = err.Error()
			} else {
				results[i] = match
				summary.MatchScore = match.MatchScore
				summary.Shortlisted = match.IsShortlisted
			}
			summaries[i] = summary
		}(i, candidate)
	}
	wg.Wait()

	matches := []*models.CandidateMatch{}
	var scoreSum, topScore float64
	shortlisted := 0
	for _, match := range results {
		if match == nil {
			continue
		}
		matches = append(matches, match)
		scoreSum += match.MatchScore
		if match.MatchScore > topScore {
			topScore = match.MatchScore
		}
		if match.IsShortlisted {
			shortlisted++
		}
	}

	audit.SuccessfulMatches = len(matches)
	audit.ShortlistedCount = shortlisted
	audit.HighestMatchScore = topScore
	if len(matches) > 0 {
		audit.AverageMatchScore = scoreSum / float64(len(matches))
	}
	audit.DurationMs = time.Since(started).Milliseconds()
	audit.MatchSummaries = summaries
	if auditor != nil {
		audit.EstimatedTokensUsed = auditor.EstimatedTokens(len(candidates))
	}
	now := time.Now().UTC()
	audit.CompletedAt = &now
	if len(matches) == 0 && len(candidates) > 0 {
		audit.Status = models.AuditStatusFailed
		audit.ErrorMessage = "no candidate produced a match"
	} else {
		audit.Status = models.AuditStatusCompleted
	}
	if auditor != nil {
		auditor.RecordFinish(audit)
	}

	e.logger.Info().
		Str("job_id", job.ID).
		Int("candidates", len(candidates)).
		Int("matched", len(matches)).
		Int("shortlisted", shortlisted).
		Int64("duration_ms", audit.DurationMs).
		Msg("Batch match completed")
	return matches, nil
}

// allCandidates pages through the candidate store.
func (e *Engine) allCandidates(ctx context.Context) ([]*models.Candidate, error) {
	const pageSize = 200

	all := []*models.Candidate{}
	for offset := 0; ; offset += pageSize {
		page, err := e.candidates.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}
