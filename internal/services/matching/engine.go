package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// Engine runs the agentic match pipeline for one (candidate, job) pair:
// refresh stale profiles, guarantee a search baseline, optionally let the
// model pick extra sources, build ranked context, score, and re-score
// borderline results once context exists. Every step except the score
// itself is guarded: failures are logged and skipped.
type Engine struct {
	llm        interfaces.LLMService
	enrichment interfaces.EnrichmentService
	matches    interfaces.MatchStorage
	candidates interfaces.CandidateStorage
	jobs       interfaces.JobRequirementStorage
	matchCfg   *common.MatchingConfig
	enrichCfg  *common.EnrichmentConfig
	logger     arbor.ILogger
}

// NewEngine wires the pipeline
func NewEngine(
	llm interfaces.LLMService,
	enrichment interfaces.EnrichmentService,
	matches interfaces.MatchStorage,
	candidates interfaces.CandidateStorage,
	jobs interfaces.JobRequirementStorage,
	matchCfg *common.MatchingConfig,
	enrichCfg *common.EnrichmentConfig,
	logger arbor.ILogger,
) *Engine {
	return &Engine{
		llm:        llm,
		enrichment: enrichment,
		matches:    matches,
		candidates: candidates,
		jobs:       jobs,
		matchCfg:   matchCfg,
		enrichCfg:  enrichCfg,
		logger:     logger,
	}
}

// MatchByID loads both entities and runs the pipeline.
func (e *Engine) MatchByID(ctx context.Context, candidateID, jobID string) (*models.CandidateMatch, error) {
	candidate, err := e.candidates.Get(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("candidate %s: %w", candidateID, err)
	}
	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("job requirement %s: %w", jobID, err)
	}
	return e.Match(ctx, candidate, job)
}

// Match runs the six-step pipeline and upserts the result.
func (e *Engine) Match(ctx context.Context, candidate *models.Candidate, job *models.JobRequirement) (*models.CandidateMatch, error) {
	// Steps 1-3 run alongside the first-pass score, so a candidate with no
	// prior profiles scores blind rather than waiting on enrichment. The
	// join below keeps the baseline guarantee: Match never returns while
	// its enrichment is in flight.
	enriched := make(chan struct{})
	go func() {
		defer close(enriched)

		// Step 1: refresh stale SUCCESS profiles
		if err := e.enrichment.RefreshStale(ctx, candidate); err != nil {
			e.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Stale profile refresh failed, continuing")
		}

		// Step 2: guarantee the search baseline
		if err := e.enrichment.EnsureBaseline(ctx, candidate); err != nil {
			e.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Baseline enrichment failed, continuing")
		}

		// Step 3: model-selected sources (opt-in)
		if e.enrichCfg.SourceSelectionEnabled {
			e.runSourceSelection(ctx, candidate, job)
		}
	}()
	defer func() { <-enriched }()

	// Step 4: ranked context from SUCCESS profiles
	leaning := job.Leaning()
	enrichedContext := e.currentContext(ctx, candidate.ID, leaning)

	// Step 5: first-pass score. This step is mandatory.
	scores, err := e.llm.MatchCandidate(ctx, candidate, job, enrichedContext)
	if err != nil {
		return nil, fmt.Errorf("match scoring failed: %w", err)
	}

	// Step 6: borderline multi-pass, only when the first pass ran blind.
	// Enrichment must land before the context is rebuilt.
	if e.matchCfg.MultiPassEnabled && enrichedContext == "" && e.isBorderline(scores.MatchScore) {
		<-enriched
		if rebuilt := e.currentContext(ctx, candidate.ID, leaning); rebuilt != "" {
			second, err := e.llm.MatchCandidate(ctx, candidate, job, rebuilt)
			if err != nil {
				e.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Second-pass match failed, keeping first-pass scores")
			} else {
				e.logger.Info().
					Str("candidate_id", candidate.ID).
					Str("job_id", job.ID).
					Float64("first_score", scores.MatchScore).
					Float64("second_score", second.MatchScore).
					Float64("score_delta", second.MatchScore-scores.MatchScore).
					Msg("Borderline multi-pass re-scored with enriched context")
				scores = second
			}
		}
	}

	match := &models.CandidateMatch{
		CandidateID:      candidate.ID,
		JobRequirementID: job.ID,
		MatchScore:       scores.MatchScore,
		SkillsScore:      scores.SkillsScore,
		ExperienceScore:  scores.ExperienceScore,
		EducationScore:   scores.EducationScore,
		DomainScore:      scores.DomainScore,
		MatchExplanation: scores.MatchExplanation,
		IsShortlisted:    scores.MatchScore >= e.shortlistThreshold(),
	}
	if err := e.matches.Upsert(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to persist match: %w", err)
	}

	e.logger.Info().
		Str("candidate_id", candidate.ID).
		Str("job_id", job.ID).
		Float64("match_score", match.MatchScore).
		Bool("shortlisted", match.IsShortlisted).
		Msg("Candidate matched")
	return match, nil
}

// runSourceSelection asks the model which sources matter and enriches the
// selected ones that are absent or stale.
func (e *Engine) runSourceSelection(ctx context.Context, candidate *models.Candidate, job *models.JobRequirement) {
	selection, err := e.llm.SelectEnrichmentSources(ctx, candidate, job)
	if err != nil {
		e.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Source selection failed, continuing")
		return
	}

	now := time.Now().UTC()
	ttl := e.enrichCfg.StalenessTTL()
	for _, source := range selection.Sources {
		profiles, err := e.enrichment.SuccessfulProfiles(ctx, candidate.ID)
		if err != nil {
			e.logger.Warn().Err(err).Msg("Profile listing failed during source selection")
			return
		}

		fresh := false
		for _, p := range profiles {
			if p.Source == source && !p.IsStale(ttl, now) {
				fresh = true
				break
			}
		}
		if fresh {
			continue
		}

		if _, err := e.enrichment.EnrichSource(ctx, candidate, source); err != nil {
			e.logger.Warn().Err(err).Str("source", string(source)).Msg("Selected source enrichment failed, continuing")
		}
	}
}

func (e *Engine) currentContext(ctx context.Context, candidateID string, leaning models.JobLeaning) string {
	profiles, err := e.enrichment.SuccessfulProfiles(ctx, candidateID)
	if err != nil {
		e.logger.Warn().Err(err).Str("candidate_id", candidateID).Msg("Context build failed, scoring without context")
		return ""
	}
	return buildContext(profiles, leaning)
}

func (e *Engine) isBorderline(score float64) bool {
	return score >= e.matchCfg.BorderlineMin && score <= e.matchCfg.BorderlineMax
}

func (e *Engine) shortlistThreshold() float64 {
	if e.matchCfg.ShortlistThreshold > 0 {
		return e.matchCfg.ShortlistThreshold
	}
	return 70
}
