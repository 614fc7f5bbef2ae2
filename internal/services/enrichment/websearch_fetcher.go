package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// WebSearchFetcher enriches a candidate through a Tavily-style search API.
// Without a key, or when the response carries too little useful content, it
// synthesises the summary from resume fields instead, so the baseline
// INTERNET_SEARCH profile always exists.
type WebSearchFetcher struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
}

var _ interfaces.ProfileFetcher = (*WebSearchFetcher)(nil)

const (
	searchMaxResults      = 5
	searchSnippetLimit    = 3
	searchSnippetMaxChars = 300
	searchMinUsefulChars  = 100
)

// NewWebSearchFetcher creates the fetcher
func NewWebSearchFetcher(config *common.EnrichmentConfig, apiKey string, logger arbor.ILogger) *WebSearchFetcher {
	baseURL := config.SearchBaseURL
	if baseURL == "" {
		baseURL = "https://api.tavily.com/search"
	}

	return &WebSearchFetcher{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: config.RequestTimeoutDuration()},
		logger:     logger,
	}
}

func (f *WebSearchFetcher) Source() models.ProfileSource {
	return models.SourceInternetSearch
}

func (f *WebSearchFetcher) SupportsURL(url string) bool {
	return true
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
	SearchDepth   string `json:"search_depth"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Enrich searches for the candidate's public presence. The query is
// "<name> <top-skill> professional profile".
func (f *WebSearchFetcher) Enrich(ctx context.Context, profile *models.CandidateExternalProfile, candidate *models.Candidate) error {
	now := time.Now().UTC()
	profile.DisplayName = candidate.Name

	if f.apiKey == "" {
		f.logger.Debug().Str("candidate_id", candidate.ID).Msg("No search API key, synthesising profile")
		profile.EnrichedSummary = SynthesiseSummary(models.SourceInternetSearch, candidate)
		profile.MarkSuccess(now)
		return nil
	}

	query := strings.TrimSpace(fmt.Sprintf("%s %s professional profile", candidate.Name, candidate.TopSkill()))
	summary, err := f.search(ctx, query)
	if err != nil {
		f.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Web search failed, synthesising profile")
		summary = ""
	}

	if len(summary) < searchMinUsefulChars {
		profile.EnrichedSummary = SynthesiseSummary(models.SourceInternetSearch, candidate)
	} else {
		profile.EnrichedSummary = summary
	}
	profile.MarkSuccess(now)
	return nil
}

// search runs one query and composes the answer plus up to three snippets.
func (f *WebSearchFetcher) search(ctx context.Context, query string) (string, error) {
	reqBody := searchRequest{
		APIKey:        f.apiKey,
		Query:         query,
		MaxResults:    searchMaxResults,
		IncludeAnswer: true,
		SearchDepth:   "basic",
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", f.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse search response: %w", err)
	}

	var b strings.Builder
	if result.Answer != "" {
		b.WriteString(result.Answer)
	}
	for i, item := range result.Results {
		if i >= searchSnippetLimit {
			break
		}
		snippet := item.Content
		if len(snippet) > searchSnippetMaxChars {
			// Back off to a rune boundary so the cut never splits a character
			cut := searchSnippetMaxChars
			for cut > 0 && !utf8.RuneStart(snippet[cut]) {
				cut--
			}
			snippet = snippet[:cut]
		}
		if snippet == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", item.Title, snippet)
	}

	return b.String(), nil
}
