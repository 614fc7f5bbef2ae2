package workers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/aptus/internal/services/embeddings"
	"github.com/ternarybob/arbor"
)

type fakeParser struct {
	text     string
	parseErr error
	calls    int
}

func (p *fakeParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	p.calls++
	if p.parseErr != nil {
		return "", p.parseErr
	}
	return p.text, nil
}

func (p *fakeParser) DetectFormat(data []byte) models.FileFormat { return models.FormatPDF }

func (p *fakeParser) ExpandArchive(ctx context.Context, data []byte) ([]models.ArchiveEntry, error) {
	return nil, nil
}

type workerLLM struct {
	extract    *models.CandidateExtract
	analyzeErr error
	analyzed   int
}

func (l *workerLLM) AnalyzeResume(ctx context.Context, text string) (*models.CandidateExtract, error) {
	l.analyzed++
	if l.analyzeErr != nil {
		return nil, l.analyzeErr
	}
	return l.extract, nil
}

func (l *workerLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (l *workerLLM) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2}
	}
	return vectors, nil
}

func (l *workerLLM) MatchCandidate(ctx context.Context, candidate *models.Candidate, job *models.JobRequirement, enrichedContext string) (*models.MatchScores, error) {
	panic("not used")
}

func (l *workerLLM) SelectEnrichmentSources(ctx context.Context, candidate *models.Candidate, job *models.JobRequirement) (*models.SourceSelection, error) {
	panic("not used")
}

func (l *workerLLM) EmbeddingDimension() int { return 2 }

type workerCandidateStore struct {
	upserted *models.Candidate
}

func (s *workerCandidateStore) UpsertByEmail(ctx context.Context, candidate *models.Candidate) (string, error) {
	s.upserted = candidate
	return "cand_1", nil
}

func (s *workerCandidateStore) Get(ctx context.Context, id string) (*models.Candidate, error) {
	return nil, common.ErrNotFound
}

func (s *workerCandidateStore) GetByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	return nil, common.ErrNotFound
}

func (s *workerCandidateStore) List(ctx context.Context, limit, offset int) ([]*models.Candidate, error) {
	return nil, nil
}

func (s *workerCandidateStore) Count(ctx context.Context) (int, error)    { return 0, nil }
func (s *workerCandidateStore) Delete(ctx context.Context, id string) error { return nil }

type workerEmbeddingStore struct {
	stored  int
	deletes int
}

func (s *workerEmbeddingStore) StoreBatch(ctx context.Context, rows []*models.ResumeEmbedding) error {
	s.stored += len(rows)
	return nil
}

func (s *workerEmbeddingStore) DeleteByCandidate(ctx context.Context, candidateID string) error {
	s.deletes++
	return nil
}

func (s *workerEmbeddingStore) GetByCandidate(ctx context.Context, candidateID string) ([]*models.ResumeEmbedding, error) {
	return nil, nil
}

func (s *workerEmbeddingStore) CountByCandidate(ctx context.Context, candidateID string) (int, error) {
	return s.stored, nil
}

func (s *workerEmbeddingStore) SearchSimilar(ctx context.Context, query []float32, limit int) ([]*models.EmbeddingMatch, error) {
	return nil, nil
}

type memTrackerStore struct {
	mu       sync.Mutex
	statuses []models.TrackerStatus
	outcomes []bool
}

func (s *memTrackerStore) Create(ctx context.Context, tracker *models.ProcessTracker) error {
	if tracker.ID == "" {
		tracker.ID = common.NewTrackerID()
	}
	return nil
}

func (s *memTrackerStore) Get(ctx context.Context, id string) (*models.ProcessTracker, error) {
	return nil, common.ErrNotFound
}

func (s *memTrackerStore) List(ctx context.Context, limit int) ([]*models.ProcessTracker, error) {
	return nil, nil
}

func (s *memTrackerStore) UpdateStatus(ctx context.Context, id string, status models.TrackerStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *memTrackerStore) RecordFileOutcome(ctx context.Context, id string, succeeded bool, message string, now time.Time) (*models.ProcessTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, succeeded)
	return &models.ProcessTracker{ID: id}, nil
}

// countingLease cancels once checks exceed cancelAfter, or immediately when
// cancelNow is set.
type countingLease struct {
	heartbeats  int
	checks      int
	cancelAfter int // 0 means never
	cancelNow   bool
}

func (l *countingLease) Heartbeat(ctx context.Context) error {
	l.heartbeats++
	return nil
}

func (l *countingLease) Cancelled(ctx context.Context) bool {
	l.checks++
	if l.cancelNow {
		return true
	}
	return l.cancelAfter > 0 && l.checks > l.cancelAfter
}

func defaultExtract() *models.CandidateExtract {
	years := 8
	return &models.CandidateExtract{
		Name:              "Jane Doe",
		Email:             "Jane.Doe@Example.COM",
		Mobile:            "+61 400 000 000",
		ExperienceSummary: "Backend engineer",
		Skills:            "Go, SQL",
		YearsOfExperience: models.FlexInt{Value: &years},
	}
}

func newTestWorker(parser *fakeParser, llm *workerLLM) (*ResumeWorker, *workerCandidateStore, *workerEmbeddingStore, *memTrackerStore) {
	candidates := &workerCandidateStore{}
	embStore := &workerEmbeddingStore{}
	trackers := &memTrackerStore{}
	embSvc := embeddings.NewService(llm, embStore, &common.EmbeddingsConfig{ChunkSize: 1000, ChunkOverlap: 200, BatchSize: 10}, arbor.NewLogger())
	worker := NewResumeWorker(parser, llm, candidates, embSvc, trackers, arbor.NewLogger())
	return worker, candidates, embStore, trackers
}

func TestProcessFile(t *testing.T) {
	parser := &fakeParser{text: "Jane Doe resume text with plenty of experience."}
	llm := &workerLLM{extract: defaultExtract()}
	worker, candidates, embStore, trackers := newTestWorker(parser, llm)

	lease := &countingLease{}
	err := worker.ProcessFile(context.Background(), []byte("pdf bytes"), "jane.pdf", "trk_1", lease)
	require.NoError(t, err)

	require.NotNil(t, candidates.upserted)
	assert.Equal(t, "Jane Doe", candidates.upserted.Name)
	assert.Equal(t, "jane.doe@example.com", candidates.upserted.Email)
	assert.Equal(t, "jane.pdf", candidates.upserted.ResumeFilename)
	assert.Equal(t, parser.text, candidates.upserted.ResumeContent)
	assert.Equal(t, "Go, SQL", candidates.upserted.Skills)
	require.NotNil(t, candidates.upserted.YearsOfExperience)
	assert.Equal(t, 8, *candidates.upserted.YearsOfExperience)

	assert.Equal(t, 1, embStore.stored)
	assert.Equal(t, 1, embStore.deletes)
	assert.Positive(t, lease.heartbeats)

	assert.Equal(t, []models.TrackerStatus{
		models.TrackerStatusResumeAnalyzed,
		models.TrackerStatusEmbedGenerated,
	}, trackers.statuses)
	assert.Equal(t, []bool{true}, trackers.outcomes)
}

func TestProcessFile_NoTracker(t *testing.T) {
	parser := &fakeParser{text: "resume"}
	llm := &workerLLM{extract: defaultExtract()}
	worker, _, _, trackers := newTestWorker(parser, llm)

	err := worker.ProcessFile(context.Background(), []byte("pdf"), "jane.pdf", "", &countingLease{})
	require.NoError(t, err)
	assert.Empty(t, trackers.statuses)
	assert.Empty(t, trackers.outcomes)
}

func TestProcessFile_ParseFailure(t *testing.T) {
	parser := &fakeParser{parseErr: fmt.Errorf("%w: corrupt file", common.ErrInvalidInput)}
	llm := &workerLLM{extract: defaultExtract()}
	worker, _, _, trackers := newTestWorker(parser, llm)

	err := worker.ProcessFile(context.Background(), []byte("junk"), "bad.pdf", "trk_1", &countingLease{})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Zero(t, llm.analyzed)
	// Failure outcomes belong to the caller, which knows terminality
	assert.Empty(t, trackers.outcomes)
}

func TestProcessFile_AnalysisFailurePropagates(t *testing.T) {
	parser := &fakeParser{text: "resume"}
	llm := &workerLLM{analyzeErr: fmt.Errorf("chat: %w", common.ErrLLMUnavailable)}
	worker, candidates, _, _ := newTestWorker(parser, llm)

	err := worker.ProcessFile(context.Background(), []byte("pdf"), "jane.pdf", "trk_1", &countingLease{})
	require.Error(t, err)
	assert.True(t, common.IsRetryable(err))
	assert.Nil(t, candidates.upserted)
}

func TestProcessFile_CancelledBeforeStart(t *testing.T) {
	parser := &fakeParser{text: "resume"}
	llm := &workerLLM{extract: defaultExtract()}
	worker, _, _, _ := newTestWorker(parser, llm)

	err := worker.ProcessFile(context.Background(), []byte("pdf"), "jane.pdf", "trk_1", &countingLease{cancelNow: true})
	require.ErrorIs(t, err, common.ErrJobCancelled)
	assert.Zero(t, parser.calls)
}

func TestProcessFile_CancelledMidway(t *testing.T) {
	parser := &fakeParser{text: "resume"}
	llm := &workerLLM{extract: defaultExtract()}
	worker, candidates, _, _ := newTestWorker(parser, llm)

	// First check passes, second observes the cancel: parse runs, analysis
	// does not complete the pipeline
	lease := &countingLease{cancelAfter: 1}
	err := worker.ProcessFile(context.Background(), []byte("pdf"), "jane.pdf", "trk_1", lease)
	require.ErrorIs(t, err, common.ErrJobCancelled)
	assert.Equal(t, 1, parser.calls)
	assert.Nil(t, candidates.upserted)
	assert.False(t, common.IsRetryable(err))
}

func TestValidate(t *testing.T) {
	worker, _, _, _ := newTestWorker(&fakeParser{}, &workerLLM{})

	err := worker.Validate(&models.QueueJob{ID: "job_1"})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	err = worker.Validate(&models.QueueJob{ID: "job_1", FileData: []byte("pdf")})
	require.NoError(t, err)
}

func TestExecute_UsesJobMetadata(t *testing.T) {
	parser := &fakeParser{text: "resume"}
	llm := &workerLLM{extract: defaultExtract()}
	worker, _, _, trackers := newTestWorker(parser, llm)

	job := &models.QueueJob{
		ID:       "job_1",
		FileData: []byte("pdf"),
		Filename: "jane.pdf",
		Metadata: map[string]interface{}{"tracker_id": "trk_9"},
	}
	err := worker.Execute(context.Background(), job, NoopLease{})
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, trackers.outcomes)
}

func TestRecordFailure(t *testing.T) {
	worker, _, _, trackers := newTestWorker(&fakeParser{}, &workerLLM{})

	worker.RecordFailure(context.Background(), "trk_1", "bad file")
	assert.Equal(t, []bool{false}, trackers.outcomes)

	// Blank tracker is a no-op
	worker.RecordFailure(context.Background(), "", "bad file")
	assert.Len(t, trackers.outcomes, 1)
}
