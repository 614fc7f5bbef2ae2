package enrichment

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
)

// GitHubFetcher enriches a candidate from their GitHub account: profile
// fields, follower and repo counts, top languages, and starred repositories.
type GitHubFetcher struct {
	client *github.Client
	logger arbor.ILogger
}

var _ interfaces.ProfileFetcher = (*GitHubFetcher)(nil)

// NewGitHubFetcher creates the fetcher. An empty token means unauthenticated
// requests at GitHub's lower rate limit.
func NewGitHubFetcher(token string, logger arbor.ILogger) *GitHubFetcher {
	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(context.Background(), ts)
		client = github.NewClient(tc)
	} else {
		client = github.NewClient(nil)
	}

	return &GitHubFetcher{
		client: client,
		logger: logger,
	}
}

func (f *GitHubFetcher) Source() models.ProfileSource {
	return models.SourceGitHub
}

var githubURLRe = regexp.MustCompile(`(?i)github\.com/([A-Za-z0-9][A-Za-z0-9-]*)`)

func (f *GitHubFetcher) SupportsURL(url string) bool {
	return githubURLRe.MatchString(url)
}

// Enrich fetches the user and their repositories and composes the profile.
// The username comes from the stored profile URL, or from a github.com link
// in the resume text.
func (f *GitHubFetcher) Enrich(ctx context.Context, profile *models.CandidateExternalProfile, candidate *models.Candidate) error {
	now := time.Now().UTC()

	username := extractGitHubUsername(profile.ProfileURL)
	if username == "" {
		username = extractGitHubUsername(candidate.ResumeContent)
	}
	if username == "" {
		profile.Status = models.ProfileStatusNotFound
		profile.LastFetchedAt = &now
		profile.ErrorMessage = "no github username found for candidate"
		return nil
	}

	user, _, err := f.client.Users.Get(ctx, username)
	if err != nil {
		profile.MarkFailed(now, fmt.Sprintf("github user lookup failed: %v", err))
		f.logger.Warn().Err(err).Str("username", username).Msg("GitHub user lookup failed")
		return err
	}

	repos, _, err := f.client.Repositories.ListByUser(ctx, username, &github.RepositoryListByUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: 30},
	})
	if err != nil {
		f.logger.Warn().Err(err).Str("username", username).Msg("GitHub repo listing failed, continuing with profile only")
		repos = nil
	}

	profile.ProfileURL = user.GetHTMLURL()
	profile.DisplayName = user.GetName()
	if profile.DisplayName == "" {
		profile.DisplayName = user.GetLogin()
	}
	profile.Bio = user.GetBio()
	profile.Location = user.GetLocation()
	followers := user.GetFollowers()
	profile.FollowersCount = &followers
	publicRepos := user.GetPublicRepos()
	profile.PublicRepos = &publicRepos

	profile.EnrichedSummary = composeGitHubSummary(user, repos)
	profile.MarkSuccess(now)

	f.logger.Debug().
		Str("candidate_id", candidate.ID).
		Str("username", username).
		Int("repos", len(repos)).
		Msg("GitHub profile enriched")
	return nil
}

func extractGitHubUsername(text string) string {
	match := githubURLRe.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return match[1]
}

// composeGitHubSummary builds the human-readable enrichment text from the
// user and their most-starred repositories.
func composeGitHubSummary(user *github.User, repos []*github.Repository) string {
	var b strings.Builder

	name := user.GetName()
	if name == "" {
		name = user.GetLogin()
	}
	fmt.Fprintf(&b, "GitHub profile for %s: %d followers, %d public repositories.",
		name, user.GetFollowers(), user.GetPublicRepos())
	if bio := user.GetBio(); bio != "" {
		fmt.Fprintf(&b, " Bio: %s.", strings.TrimRight(bio, "."))
	}

	if len(repos) > 0 {
		languages := topLanguages(repos, 3)
		if len(languages) > 0 {
			fmt.Fprintf(&b, " Top languages: %s.", strings.Join(languages, ", "))
		}

		top := topRepositories(repos, 3)
		names := make([]string, 0, len(top))
		for _, repo := range top {
			names = append(names, fmt.Sprintf("%s (%d stars)", repo.GetName(), repo.GetStargazersCount()))
		}
		fmt.Fprintf(&b, " Top repositories: %s.", strings.Join(names, ", "))
	}

	return b.String()
}

func topLanguages(repos []*github.Repository, limit int) []string {
	counts := map[string]int{}
	order := []string{}
	for _, repo := range repos {
		lang := repo.GetLanguage()
		if lang == "" {
			continue
		}
		if counts[lang] == 0 {
			order = append(order, lang)
		}
		counts[lang]++
	}

	// Ties keep first-seen order
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

func topRepositories(repos []*github.Repository, limit int) []*github.Repository {
	sorted := make([]*github.Repository, len(repos))
	copy(sorted, repos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].GetStargazersCount() > sorted[j].GetStargazersCount()
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
