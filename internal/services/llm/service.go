package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// Service implements the LLM gateway over an OpenAI-compatible endpoint.
type Service struct {
	client *Client
	config *common.LLMConfig
	logger arbor.ILogger
}

// NewService creates the gateway. apiKey may be empty for keyless local
// servers.
func NewService(config *common.LLMConfig, apiKey string, logger arbor.ILogger) interfaces.LLMService {
	return &Service{
		client: NewClient(config, apiKey, logger),
		config: config,
		logger: logger,
	}
}

const analyzeSystemPrompt = `You are a resume analysis assistant. Extract structured candidate data from resume text. Respond with a single JSON object and nothing else.`

const analyzePromptTemplate = `Extract the following fields from the resume text below. Respond with one JSON object:
{
  "name": "full name",
  "email": "email address or empty string",
  "mobile": "phone number or empty string",
  "experienceSummary": "2-3 sentence summary of work experience",
  "skills": ["skill1", "skill2"],
  "domainKnowledge": ["domain1", "domain2"],
  "academicBackground": ["degree or qualification"],
  "yearsOfExperience": 5
}

Resume text:
%s`

// AnalyzeResume extracts a structured candidate profile from resume text.
func (s *Service) AnalyzeResume(ctx context.Context, text string) (*models.CandidateExtract, error) {
	messages := []chatMessage{
		{Role: "system", Content: analyzeSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(analyzePromptTemplate, text)},
	}

	content, err := s.client.chat(ctx, messages, s.config.Temperature, s.config.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("analyze resume: %w", err)
	}

	jsonStr, err := extractJSONObject(content)
	if err != nil {
		return nil, fmt.Errorf("analyze resume: %w", err)
	}

	var extract models.CandidateExtract
	if err := json.Unmarshal([]byte(jsonStr), &extract); err != nil {
		s.logger.Warn().Err(err).Msg("Resume extraction payload failed to decode")
		return nil, fmt.Errorf("analyze resume: %v: %w", err, common.ErrLLMFormat)
	}
	if err := extract.Validate(); err != nil {
		return nil, fmt.Errorf("analyze resume: %v: %w", err, common.ErrLLMFormat)
	}

	s.logger.Debug().
		Str("name", extract.Name).
		Str("email", extract.Email).
		Msg("Resume analyzed")
	return &extract, nil
}

// Embed returns the vector for one text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.client.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text. When the batch request is
// refused or malformed the texts are embedded one at a time instead; only a
// per-item failure then fails the batch.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := s.client.embed(ctx, texts)
	if err == nil {
		return vectors, nil
	}

	s.logger.Warn().Err(err).Int("batch_size", len(texts)).Msg("Batch embedding failed, falling back to per-item calls")

	vectors = make([][]float32, len(texts))
	for i, text := range texts {
		single, itemErr := s.client.embed(ctx, []string{text})
		if itemErr != nil {
			return nil, fmt.Errorf("embed item %d of %d: %w", i, len(texts), itemErr)
		}
		vectors[i] = single[0]
	}
	return vectors, nil
}

const matchSystemPrompt = `You are a recruitment assistant scoring how well a candidate fits a job requirement. All scores are 0-100. Respond with a single JSON object and nothing else.`

const matchPromptTemplate = `Score this candidate against the job requirement. Respond with one JSON object:
{
  "matchScore": 0,
  "skillsScore": 0,
  "experienceScore": 0,
  "educationScore": 0,
  "domainScore": 0,
  "matchExplanation": "2-3 sentences explaining the scores"
}

Job requirement:
Title: %s
Description: %s
Required skills: %s
Experience: %s
Required education: %s
Domain: %s

Candidate:
Name: %s
Experience summary: %s
Skills: %s
Domain knowledge: %s
Academic background: %s
Years of experience: %s%s`

// MatchCandidate scores a candidate against a job requirement. The enriched
// context block is appended when non-empty.
func (s *Service) MatchCandidate(ctx context.Context, candidate *models.Candidate, job *models.JobRequirement, enrichedContext string) (*models.MatchScores, error) {
	contextBlock := ""
	if enrichedContext != "" {
		contextBlock = "\n\nExternal profile context:\n" + enrichedContext
	}

	prompt := fmt.Sprintf(matchPromptTemplate,
		job.Title,
		job.Description,
		job.RequiredSkills,
		experienceRange(job),
		job.RequiredEducation,
		job.Domain,
		candidate.Name,
		candidate.ExperienceSummary,
		candidate.Skills,
		candidate.DomainKnowledge,
		candidate.AcademicBackground,
		yearsOrUnknown(candidate.YearsOfExperience),
		contextBlock,
	)

	messages := []chatMessage{
		{Role: "system", Content: matchSystemPrompt},
		{Role: "user", Content: prompt},
	}

	content, err := s.client.chat(ctx, messages, s.config.Temperature, s.config.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("match candidate: %w", err)
	}

	jsonStr, err := extractJSONObject(content)
	if err != nil {
		return nil, fmt.Errorf("match candidate: %w", err)
	}

	var scores models.MatchScores
	if err := json.Unmarshal([]byte(jsonStr), &scores); err != nil {
		return nil, fmt.Errorf("match candidate: %v: %w", err, common.ErrLLMFormat)
	}

	s.logger.Debug().
		Str("candidate_id", candidate.ID).
		Str("job_id", job.ID).
		Float64("match_score", scores.MatchScore).
		Bool("with_context", enrichedContext != "").
		Msg("Candidate scored")
	return &scores, nil
}

const sourcesSystemPrompt = `You decide which external sources to consult when evaluating a candidate. Valid sources: GITHUB, LINKEDIN, TWITTER, INTERNET_SEARCH. Respond with a single JSON object and nothing else.`

const sourcesPromptTemplate = `Which sources should be consulted for this candidate and job? Respond with one JSON object:
{"sources": ["GITHUB"], "reasoning": "one sentence"}

Job title: %s
Required skills: %s
Candidate skills: %s
Candidate summary: %s`

// SelectEnrichmentSources asks the model which sources to consult. The
// response enum is strict; any parse failure degrades to INTERNET_SEARCH
// rather than an error so matching never stalls on this step.
func (s *Service) SelectEnrichmentSources(ctx context.Context, candidate *models.Candidate, job *models.JobRequirement) (*models.SourceSelection, error) {
	prompt := fmt.Sprintf(sourcesPromptTemplate, job.Title, job.RequiredSkills, candidate.Skills, candidate.ExperienceSummary)

	messages := []chatMessage{
		{Role: "system", Content: sourcesSystemPrompt},
		{Role: "user", Content: prompt},
	}

	fallback := &models.SourceSelection{
		Sources:   []models.ProfileSource{models.SourceInternetSearch},
		Reasoning: "fallback after source selection parse failure",
	}

	content, err := s.client.chat(ctx, messages, 0.1, 300)
	if err != nil {
		if common.IsRetryable(err) {
			return nil, fmt.Errorf("select enrichment sources: %w", err)
		}
		s.logger.Warn().Err(err).Msg("Source selection failed, falling back to INTERNET_SEARCH")
		return fallback, nil
	}

	jsonStr, err := extractJSONObject(content)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Source selection returned no JSON, falling back to INTERNET_SEARCH")
		return fallback, nil
	}

	var raw struct {
		Sources   []string `json:"sources"`
		Reasoning string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		s.logger.Warn().Err(err).Msg("Source selection payload failed to decode, falling back to INTERNET_SEARCH")
		return fallback, nil
	}

	selection := &models.SourceSelection{Reasoning: raw.Reasoning}
	for _, name := range raw.Sources {
		upper := strings.ToUpper(strings.TrimSpace(name))
		if models.IsValidProfileSource(upper) {
			selection.Sources = append(selection.Sources, models.ProfileSource(upper))
		}
	}
	if len(selection.Sources) == 0 {
		s.logger.Warn().Strs("raw_sources", raw.Sources).Msg("Source selection returned no valid sources, falling back to INTERNET_SEARCH")
		return fallback, nil
	}

	return selection, nil
}

// EmbeddingDimension reports the configured vector width.
func (s *Service) EmbeddingDimension() int {
	if s.config.EmbeddingDimension > 0 {
		return s.config.EmbeddingDimension
	}
	return 768
}

func experienceRange(job *models.JobRequirement) string {
	switch {
	case job.MinExperience != nil && job.MaxExperience != nil:
		return fmt.Sprintf("%d-%d years", *job.MinExperience, *job.MaxExperience)
	case job.MinExperience != nil:
		return fmt.Sprintf("%d+ years", *job.MinExperience)
	case job.MaxExperience != nil:
		return fmt.Sprintf("up to %d years", *job.MaxExperience)
	}
	return "not specified"
}

func yearsOrUnknown(years *int) string {
	if years == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *years)
}
