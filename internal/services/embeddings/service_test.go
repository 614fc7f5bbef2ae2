package embeddings

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) AnalyzeResume(ctx context.Context, text string) (*models.CandidateExtract, error) {
	panic("not used")
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) MatchCandidate(ctx context.Context, candidate *models.Candidate, job *models.JobRequirement, enrichedContext string) (*models.MatchScores, error) {
	panic("not used")
}

func (f *fakeEmbedder) SelectEnrichmentSources(ctx context.Context, candidate *models.Candidate, job *models.JobRequirement) (*models.SourceSelection, error) {
	panic("not used")
}

func (f *fakeEmbedder) EmbeddingDimension() int { return 3 }

type fakeEmbeddingStore struct {
	rows    []*models.ResumeEmbedding
	deletes int
}

func (f *fakeEmbeddingStore) StoreBatch(ctx context.Context, embeddings []*models.ResumeEmbedding) error {
	f.rows = append(f.rows, embeddings...)
	return nil
}

func (f *fakeEmbeddingStore) DeleteByCandidate(ctx context.Context, candidateID string) error {
	f.deletes++
	f.rows = nil
	return nil
}

func (f *fakeEmbeddingStore) GetByCandidate(ctx context.Context, candidateID string) ([]*models.ResumeEmbedding, error) {
	return f.rows, nil
}

func (f *fakeEmbeddingStore) CountByCandidate(ctx context.Context, candidateID string) (int, error) {
	return len(f.rows), nil
}

func (f *fakeEmbeddingStore) SearchSimilar(ctx context.Context, query []float32, limit int) ([]*models.EmbeddingMatch, error) {
	return nil, nil
}

func TestEmbedAndPersist(t *testing.T) {
	llm := &fakeEmbedder{}
	store := &fakeEmbeddingStore{}
	svc := NewService(llm, store, &common.EmbeddingsConfig{ChunkSize: 100, ChunkOverlap: 20, BatchSize: 2}, arbor.NewLogger())

	text := strings.Repeat("resume text ", 40) // ~480 chars, 6 chunks at step 80
	heartbeats := 0
	count, err := svc.EmbedAndPersist(context.Background(), "cand_1", text, func(ctx context.Context) error {
		heartbeats++
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, len(store.rows), count)
	assert.Equal(t, 1, store.deletes)
	assert.Greater(t, heartbeats, 0)

	// Chunk indexes are dense and 0-based
	for i, row := range store.rows {
		assert.Equal(t, i, row.ChunkIndex)
		assert.Equal(t, "cand_1", row.CandidateID)
		assert.NotEmpty(t, row.Embedding)
	}
}

func TestEmbedAndPersist_ClearsOrphansFirst(t *testing.T) {
	llm := &fakeEmbedder{}
	store := &fakeEmbeddingStore{rows: []*models.ResumeEmbedding{{ID: "stale"}}}
	svc := NewService(llm, store, &common.EmbeddingsConfig{ChunkSize: 1000, ChunkOverlap: 200, BatchSize: 10}, arbor.NewLogger())

	_, err := svc.EmbedAndPersist(context.Background(), "cand_1", "short", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, store.deletes)
	require.Len(t, store.rows, 1)
	assert.Equal(t, "short", store.rows[0].ChunkText)
}

func TestEmbedAndPersist_EmptyText(t *testing.T) {
	llm := &fakeEmbedder{}
	store := &fakeEmbeddingStore{}
	svc := NewService(llm, store, &common.EmbeddingsConfig{ChunkSize: 1000, ChunkOverlap: 200, BatchSize: 10}, arbor.NewLogger())

	count, err := svc.EmbedAndPersist(context.Background(), "cand_1", "", nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, llm.calls)
}
