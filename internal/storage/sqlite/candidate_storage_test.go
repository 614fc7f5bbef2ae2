package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

type candidateFixtures struct {
	candidates *CandidateStorage
	embeddings *EmbeddingStorage
	profiles   *ProfileStorage
	matches    *MatchStorage
}

func setupCandidateFixtures(t *testing.T) candidateFixtures {
	t.Helper()
	db := setupTestDB(t)
	logger := arbor.NewLogger()
	return candidateFixtures{
		candidates: NewCandidateStorage(db, logger).(*CandidateStorage),
		embeddings: NewEmbeddingStorage(db, logger).(*EmbeddingStorage),
		profiles:   NewProfileStorage(db, logger).(*ProfileStorage),
		matches:    NewMatchStorage(db, logger).(*MatchStorage),
	}
}

func testCandidate(name, email string) *models.Candidate {
	years := 8
	return &models.Candidate{
		Name:              name,
		Email:             email,
		Mobile:            "+61 400 000 000",
		ResumeFilename:    "resume.pdf",
		ResumeContent:     "Senior engineer with Go and Postgres",
		ResumeFile:        []byte("%PDF-1.4"),
		ExperienceSummary: "8 years building backend services",
		Skills:            "Go, Postgres, Kubernetes",
		YearsOfExperience: &years,
	}
}

func TestUpsertByEmail_InsertAndUpdate(t *testing.T) {
	f := setupCandidateFixtures(t)
	ctx := context.Background()

	id, err := f.candidates.UpsertByEmail(ctx, testCandidate("Jane Doe", "Jane.Doe@Example.COM"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "cand_"))

	got, err := f.candidates.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", got.Email)
	firstCreated := got.CreatedAt

	// Re-uploaded resume overwrites extraction fields, keeps identity
	updated := testCandidate("Jane Doe", "jane.doe@example.com")
	updated.Skills = "Go, Rust"
	updated.ResumeFilename = "resume-v2.pdf"
	id2, err := f.candidates.UpsertByEmail(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	got, err = f.candidates.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Go, Rust", got.Skills)
	assert.Equal(t, "resume-v2.pdf", got.ResumeFilename)
	assert.Equal(t, firstCreated.Unix(), got.CreatedAt.Unix())

	count, err := f.candidates.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertByEmail_NameMismatchConflicts(t *testing.T) {
	f := setupCandidateFixtures(t)
	ctx := context.Background()

	_, err := f.candidates.UpsertByEmail(ctx, testCandidate("Jane Doe", "shared@example.com"))
	require.NoError(t, err)

	_, err = f.candidates.UpsertByEmail(ctx, testCandidate("Robert Smith", "shared@example.com"))
	require.ErrorIs(t, err, common.ErrStorageConflict)
}

func TestUpsertByEmail_NameVariantsAgree(t *testing.T) {
	f := setupCandidateFixtures(t)
	ctx := context.Background()

	id, err := f.candidates.UpsertByEmail(ctx, testCandidate("Jane Doe", "jd@example.com"))
	require.NoError(t, err)

	// Abbreviated first name shares the surname, so no conflict
	id2, err := f.candidates.UpsertByEmail(ctx, testCandidate("J. Doe", "jd@example.com"))
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestUpsertByEmail_NoEmailKeyedByNameAndFilename(t *testing.T) {
	f := setupCandidateFixtures(t)
	ctx := context.Background()

	first := testCandidate("Jane Doe", "")
	id, err := f.candidates.UpsertByEmail(ctx, first)
	require.NoError(t, err)

	// Same name and filename is the same person
	again := testCandidate("Jane Doe", "")
	id2, err := f.candidates.UpsertByEmail(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	// Different filename is a new row
	other := testCandidate("Jane Doe", "")
	other.ResumeFilename = "different.pdf"
	id3, err := f.candidates.UpsertByEmail(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, id, id3)
}

func TestCandidateDelete_Cascades(t *testing.T) {
	f := setupCandidateFixtures(t)
	ctx := context.Background()

	id, err := f.candidates.UpsertByEmail(ctx, testCandidate("Jane Doe", "jane@example.com"))
	require.NoError(t, err)

	require.NoError(t, f.embeddings.StoreBatch(ctx, []*models.ResumeEmbedding{
		{CandidateID: id, ChunkText: "chunk", Embedding: []float32{1, 0}, ChunkIndex: 0},
	}))
	now := time.Now().UTC()
	require.NoError(t, f.profiles.Upsert(ctx, &models.CandidateExternalProfile{
		CandidateID:   id,
		Source:        models.SourceGitHub,
		Status:        models.ProfileStatusSuccess,
		LastFetchedAt: &now,
	}))
	require.NoError(t, f.matches.Upsert(ctx, &models.CandidateMatch{
		CandidateID:      id,
		JobRequirementID: "req_1",
		MatchScore:       80,
	}))

	require.NoError(t, f.candidates.Delete(ctx, id))

	_, err = f.candidates.Get(ctx, id)
	require.ErrorIs(t, err, common.ErrNotFound)

	count, err := f.embeddings.CountByCandidate(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, count)

	profiles, err := f.profiles.ListByCandidate(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, profiles)

	matches, err := f.matches.ListByCandidate(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, matches)

	err = f.candidates.Delete(ctx, id)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCandidateList_NewestFirst(t *testing.T) {
	f := setupCandidateFixtures(t)
	ctx := context.Background()

	old := testCandidate("Old Hand", "old@example.com")
	old.CreatedAt = time.Now().UTC().Add(-time.Hour)
	_, err := f.candidates.UpsertByEmail(ctx, old)
	require.NoError(t, err)

	recent := testCandidate("New Face", "new@example.com")
	_, err = f.candidates.UpsertByEmail(ctx, recent)
	require.NoError(t, err)

	listed, err := f.candidates.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "New Face", listed[0].Name)

	page, err := f.candidates.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Old Hand", page[0].Name)
}
