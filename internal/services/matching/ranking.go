package matching

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/aptus/internal/models"
)

// sourceWeight picks the ranking weight for one profile source given the
// job's leaning. Developer roles trust GitHub most; social/marketing roles
// trust Twitter; LinkedIn carries extra weight everywhere.
func sourceWeight(source models.ProfileSource, leaning models.JobLeaning) int {
	switch leaning {
	case models.JobLeaningDeveloper:
		switch source {
		case models.SourceGitHub:
			return 3
		case models.SourceLinkedIn:
			return 2
		}
	case models.JobLeaningSocial:
		switch source {
		case models.SourceTwitter:
			return 3
		case models.SourceLinkedIn:
			return 2
		}
	default:
		if source == models.SourceLinkedIn {
			return 2
		}
	}
	return 1
}

// buildContext assembles the enriched context string from SUCCESS profiles,
// ordered by weight descending with ties broken by fetch recency. Returns
// "" when no profile carries a summary.
func buildContext(profiles []*models.CandidateExternalProfile, leaning models.JobLeaning) string {
	usable := []*models.CandidateExternalProfile{}
	for _, p := range profiles {
		if p.Status == models.ProfileStatusSuccess && p.EnrichedSummary != "" {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return ""
	}

	sort.SliceStable(usable, func(i, j int) bool {
		wi := sourceWeight(usable[i].Source, leaning)
		wj := sourceWeight(usable[j].Source, leaning)
		if wi != wj {
			return wi > wj
		}
		return fetchedAt(usable[i]).After(fetchedAt(usable[j]))
	})

	var b strings.Builder
	for i, p := range usable {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", p.Source, p.EnrichedSummary)
	}
	return b.String()
}

func fetchedAt(p *models.CandidateExternalProfile) time.Time {
	if p.LastFetchedAt == nil {
		return time.Time{}
	}
	return *p.LastFetchedAt
}
