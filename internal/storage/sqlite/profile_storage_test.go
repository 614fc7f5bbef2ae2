package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

func setupProfiles(t *testing.T) *ProfileStorage {
	t.Helper()
	return NewProfileStorage(setupTestDB(t), arbor.NewLogger()).(*ProfileStorage)
}

func TestProfileUpsert_InsertAndGet(t *testing.T) {
	profiles := setupProfiles(t)
	ctx := context.Background()
	now := time.Now().UTC()

	followers := 120
	repos := 34
	profile := &models.CandidateExternalProfile{
		CandidateID:     "cand_1",
		Source:          models.SourceGitHub,
		ProfileURL:      "https://github.com/janedoe",
		DisplayName:     "Jane Doe",
		Bio:             "Backend engineer",
		EnrichedSummary: "Active Go contributor",
		Status:          models.ProfileStatusSuccess,
		LastFetchedAt:   &now,
		FollowersCount:  &followers,
		PublicRepos:     &repos,
		Location:        "Sydney",
	}
	require.NoError(t, profiles.Upsert(ctx, profile))
	require.NotEmpty(t, profile.ID)

	got, err := profiles.Get(ctx, "cand_1", models.SourceGitHub)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, got.ID)
	assert.Equal(t, "https://github.com/janedoe", got.ProfileURL)
	assert.Equal(t, models.ProfileStatusSuccess, got.Status)
	require.NotNil(t, got.FollowersCount)
	assert.Equal(t, 120, *got.FollowersCount)
	require.NotNil(t, got.LastFetchedAt)
}

func TestProfileUpsert_RefetchKeepsOriginalID(t *testing.T) {
	profiles := setupProfiles(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := &models.CandidateExternalProfile{
		CandidateID:   "cand_1",
		Source:        models.SourceGitHub,
		Status:        models.ProfileStatusSuccess,
		Bio:           "original bio",
		LastFetchedAt: &now,
	}
	require.NoError(t, profiles.Upsert(ctx, first))

	later := now.Add(time.Hour)
	refetch := &models.CandidateExternalProfile{
		CandidateID:   "cand_1",
		Source:        models.SourceGitHub,
		Status:        models.ProfileStatusFailed,
		Bio:           "refetched bio",
		ErrorMessage:  "rate limited",
		LastFetchedAt: &later,
	}
	require.NoError(t, profiles.Upsert(ctx, refetch))

	got, err := profiles.Get(ctx, "cand_1", models.SourceGitHub)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, models.ProfileStatusFailed, got.Status)
	assert.Equal(t, "refetched bio", got.Bio)
	assert.Equal(t, "rate limited", got.ErrorMessage)
}

func TestProfileUpsert_SourcesAreIndependent(t *testing.T) {
	profiles := setupProfiles(t)
	ctx := context.Background()

	require.NoError(t, profiles.Upsert(ctx, &models.CandidateExternalProfile{
		CandidateID: "cand_1",
		Source:      models.SourceGitHub,
		Status:      models.ProfileStatusSuccess,
	}))
	require.NoError(t, profiles.Upsert(ctx, &models.CandidateExternalProfile{
		CandidateID: "cand_1",
		Source:      models.SourceLinkedIn,
		Status:      models.ProfileStatusNotFound,
	}))

	listed, err := profiles.ListByCandidate(ctx, "cand_1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, models.SourceGitHub, listed[0].Source)
	assert.Equal(t, models.SourceLinkedIn, listed[1].Source)
}

func TestProfileGet_Missing(t *testing.T) {
	profiles := setupProfiles(t)

	_, err := profiles.Get(context.Background(), "cand_x", models.SourceTwitter)
	require.ErrorIs(t, err, common.ErrNotFound)
}
