package interfaces

import (
	"context"

	"github.com/ternarybob/aptus/internal/models"
)

// LLMService is the gateway to the OpenAI-compatible chat and embedding
// endpoints. Response parsing is tolerant: the chat content is free text
// from which the first balanced JSON object is extracted.
type LLMService interface {
	// AnalyzeResume extracts a structured candidate profile from resume text.
	AnalyzeResume(ctx context.Context, text string) (*models.CandidateExtract, error)

	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns vectors for each text, falling back to one call per
	// text when the batch request is refused or malformed.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// MatchCandidate scores a candidate against a job requirement, optionally
	// with enriched external context.
	MatchCandidate(ctx context.Context, candidate *models.Candidate, job *models.JobRequirement, enrichedContext string) (*models.MatchScores, error)

	// SelectEnrichmentSources asks the model which sources to consult. On
	// parse failure it returns [INTERNET_SEARCH] rather than an error.
	SelectEnrichmentSources(ctx context.Context, candidate *models.Candidate, job *models.JobRequirement) (*models.SourceSelection, error)

	// EmbeddingDimension reports the configured vector width.
	EmbeddingDimension() int
}

// FileParser extracts UTF-8 text from resume files. Format detection is by
// magic bytes, never by filename.
type FileParser interface {
	// Parse returns the extracted text for a single document.
	Parse(ctx context.Context, data []byte, filename string) (string, error)

	// DetectFormat identifies the container from magic bytes.
	DetectFormat(data []byte) models.FileFormat

	// ExpandArchive lists the supported entries of a ZIP archive.
	ExpandArchive(ctx context.Context, data []byte) ([]models.ArchiveEntry, error)
}

// ProfileFetcher enriches one external profile source.
type ProfileFetcher interface {
	Source() models.ProfileSource
	SupportsURL(url string) bool

	// Enrich populates the profile from the external source (or synthesises
	// it) and stamps status and fetch time.
	Enrich(ctx context.Context, profile *models.CandidateExternalProfile, candidate *models.Candidate) error
}

// EnrichmentService coordinates fetchers and the profile store.
type EnrichmentService interface {
	// EnrichSource creates or refreshes the profile for one source.
	EnrichSource(ctx context.Context, candidate *models.Candidate, source models.ProfileSource) (*models.CandidateExternalProfile, error)

	// RefreshStale re-fetches every stale SUCCESS profile of the candidate.
	RefreshStale(ctx context.Context, candidate *models.Candidate) error

	// EnsureBaseline guarantees a fresh INTERNET_SEARCH profile exists.
	EnsureBaseline(ctx context.Context, candidate *models.Candidate) error

	// SuccessfulProfiles returns the candidate's SUCCESS profiles.
	SuccessfulProfiles(ctx context.Context, candidateID string) ([]*models.CandidateExternalProfile, error)
}

// JobWorker processes one claimed queue job. Implementations heartbeat at
// step boundaries through the supplied lease.
type JobWorker interface {
	JobType() models.JobType
	Validate(job *models.QueueJob) error
	Execute(ctx context.Context, job *models.QueueJob, lease JobLease) error
}

// JobLease lets a worker keep its claim alive and observe cancellation
// between steps.
type JobLease interface {
	Heartbeat(ctx context.Context) error
	Cancelled(ctx context.Context) bool
}
