package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

func setupEmbeddings(t *testing.T) *EmbeddingStorage {
	t.Helper()
	return NewEmbeddingStorage(setupTestDB(t), arbor.NewLogger()).(*EmbeddingStorage)
}

func chunk(candidateID string, index int, text string, vec []float32) *models.ResumeEmbedding {
	return &models.ResumeEmbedding{
		CandidateID: candidateID,
		ChunkText:   text,
		Embedding:   vec,
		ChunkIndex:  index,
	}
}

func TestStoreBatch_RoundTripsVectors(t *testing.T) {
	store := setupEmbeddings(t)
	ctx := context.Background()

	require.NoError(t, store.StoreBatch(ctx, []*models.ResumeEmbedding{
		chunk("cand_1", 1, "second chunk", []float32{0.5, -0.25, 1.5}),
		chunk("cand_1", 0, "first chunk", []float32{1, 2, 3}),
	}))

	got, err := store.GetByCandidate(ctx, "cand_1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ChunkIndex)
	assert.Equal(t, "first chunk", got[0].ChunkText)
	assert.Equal(t, []float32{1, 2, 3}, got[0].Embedding)
	assert.Equal(t, []float32{0.5, -0.25, 1.5}, got[1].Embedding)
}

func TestStoreBatch_UpsertsByChunkIndex(t *testing.T) {
	store := setupEmbeddings(t)
	ctx := context.Background()

	require.NoError(t, store.StoreBatch(ctx, []*models.ResumeEmbedding{
		chunk("cand_1", 0, "original", []float32{1, 0}),
	}))
	require.NoError(t, store.StoreBatch(ctx, []*models.ResumeEmbedding{
		chunk("cand_1", 0, "regenerated", []float32{0, 1}),
	}))

	count, err := store.CountByCandidate(ctx, "cand_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetByCandidate(ctx, "cand_1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "regenerated", got[0].ChunkText)
	assert.Equal(t, []float32{0, 1}, got[0].Embedding)
}

func TestSearchSimilar_RanksByCosine(t *testing.T) {
	store := setupEmbeddings(t)
	ctx := context.Background()

	require.NoError(t, store.StoreBatch(ctx, []*models.ResumeEmbedding{
		chunk("cand_1", 0, "go services", []float32{1, 0}),
		chunk("cand_2", 0, "frontend react", []float32{0, 1}),
		chunk("cand_3", 0, "go and some react", []float32{0.9, 0.4}),
	}))

	matches, err := store.SearchSimilar(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "cand_1", matches[0].Embedding.CandidateID)
	assert.Equal(t, "cand_3", matches[1].Embedding.CandidateID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
}

func TestSearchSimilar_SkipsMismatchedDimensions(t *testing.T) {
	store := setupEmbeddings(t)
	ctx := context.Background()

	require.NoError(t, store.StoreBatch(ctx, []*models.ResumeEmbedding{
		chunk("cand_1", 0, "two dims", []float32{1, 0}),
		chunk("cand_2", 0, "three dims", []float32{1, 0, 0}),
	}))

	matches, err := store.SearchSimilar(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "cand_1", matches[0].Embedding.CandidateID)
}

func TestDeleteByCandidate(t *testing.T) {
	store := setupEmbeddings(t)
	ctx := context.Background()

	require.NoError(t, store.StoreBatch(ctx, []*models.ResumeEmbedding{
		chunk("cand_1", 0, "a", []float32{1, 0}),
		chunk("cand_1", 1, "b", []float32{0, 1}),
		chunk("cand_2", 0, "c", []float32{1, 1}),
	}))

	require.NoError(t, store.DeleteByCandidate(ctx, "cand_1"))

	count, err := store.CountByCandidate(ctx, "cand_1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.CountByCandidate(ctx, "cand_2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
