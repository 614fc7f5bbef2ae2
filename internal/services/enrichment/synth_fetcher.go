package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// SynthFetcher covers sources that cannot be scraped (LinkedIn, Twitter).
// It composes the summary from the candidate's own resume fields with an
// explicit marker so downstream readers know no external call was made.
type SynthFetcher struct {
	source models.ProfileSource
	logger arbor.ILogger
}

var _ interfaces.ProfileFetcher = (*SynthFetcher)(nil)

// NewSynthFetcher creates a synthesising fetcher for the given source.
func NewSynthFetcher(source models.ProfileSource, logger arbor.ILogger) *SynthFetcher {
	return &SynthFetcher{source: source, logger: logger}
}

func (f *SynthFetcher) Source() models.ProfileSource {
	return f.source
}

func (f *SynthFetcher) SupportsURL(url string) bool {
	lower := strings.ToLower(url)
	switch f.source {
	case models.SourceLinkedIn:
		return strings.Contains(lower, "linkedin.com")
	case models.SourceTwitter:
		return strings.Contains(lower, "twitter.com") || strings.Contains(lower, "x.com")
	}
	return false
}

// Enrich synthesises the summary from resume data. This never fails: there
// is no external dependency to fail.
func (f *SynthFetcher) Enrich(ctx context.Context, profile *models.CandidateExternalProfile, candidate *models.Candidate) error {
	now := time.Now().UTC()

	profile.DisplayName = candidate.Name
	profile.EnrichedSummary = SynthesiseSummary(f.source, candidate)
	profile.MarkSuccess(now)

	f.logger.Debug().
		Str("candidate_id", candidate.ID).
		Str("source", string(f.source)).
		Msg("Profile synthesised from resume")
	return nil
}

// SynthesiseSummary builds a labelled profile summary from candidate DB
// fields. Shared with the web-search fetcher's keyless fallback.
func SynthesiseSummary(source models.ProfileSource, candidate *models.Candidate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[synthesised from resume] %s profile summary for %s.", sourceLabel(source), candidate.Name)
	if candidate.ExperienceSummary != "" {
		fmt.Fprintf(&b, " %s", candidate.ExperienceSummary)
	}
	if candidate.Skills != "" {
		fmt.Fprintf(&b, " Skills: %s.", candidate.Skills)
	}
	if candidate.DomainKnowledge != "" {
		fmt.Fprintf(&b, " Domain knowledge: %s.", candidate.DomainKnowledge)
	}
	if candidate.YearsOfExperience != nil {
		fmt.Fprintf(&b, " Years of experience: %d.", *candidate.YearsOfExperience)
	}

	return b.String()
}

func sourceLabel(source models.ProfileSource) string {
	switch source {
	case models.SourceGitHub:
		return "GitHub"
	case models.SourceLinkedIn:
		return "LinkedIn"
	case models.SourceTwitter:
		return "Twitter"
	case models.SourceInternetSearch:
		return "Internet search"
	}
	return string(source)
}
