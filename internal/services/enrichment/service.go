package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// Service coordinates the fetcher registry and the profile store. Fetchers
// are keyed by source; unknown sources are an error, not a panic.
type Service struct {
	fetchers map[models.ProfileSource]interfaces.ProfileFetcher
	storage  interfaces.ProfileStorage
	ttl      time.Duration
	logger   arbor.ILogger
}

var _ interfaces.EnrichmentService = (*Service)(nil)

// NewService creates the enrichment coordinator with the given fetchers.
func NewService(storage interfaces.ProfileStorage, ttl time.Duration, logger arbor.ILogger, fetchers ...interfaces.ProfileFetcher) *Service {
	registry := make(map[models.ProfileSource]interfaces.ProfileFetcher, len(fetchers))
	for _, f := range fetchers {
		registry[f.Source()] = f
	}
	return &Service{
		fetchers: registry,
		storage:  storage,
		ttl:      ttl,
		logger:   logger,
	}
}

// EnrichSource creates or refreshes the profile for one source. The profile
// row is upserted regardless of fetch outcome so failures are visible.
func (s *Service) EnrichSource(ctx context.Context, candidate *models.Candidate, source models.ProfileSource) (*models.CandidateExternalProfile, error) {
	fetcher, ok := s.fetchers[source]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for source %s", source)
	}

	profile, err := s.storage.Get(ctx, candidate.ID, source)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		profile = &models.CandidateExternalProfile{
			CandidateID: candidate.ID,
			Source:      source,
			Status:      models.ProfileStatusPending,
		}
	}

	fetchErr := fetcher.Enrich(ctx, profile, candidate)
	if fetchErr != nil {
		s.logger.Warn().
			Err(fetchErr).
			Str("candidate_id", candidate.ID).
			Str("source", string(source)).
			Msg("Profile fetch failed")
	}

	if err := s.storage.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to persist profile: %w", err)
	}
	return profile, fetchErr
}

// RefreshStale re-fetches every stale SUCCESS profile of the candidate.
// Individual fetch failures are recorded on the profile and do not stop the
// remaining refreshes.
func (s *Service) RefreshStale(ctx context.Context, candidate *models.Candidate) error {
	profiles, err := s.storage.ListByCandidate(ctx, candidate.ID)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	now := time.Now().UTC()
	for _, profile := range profiles {
		if !profile.IsStale(s.ttl, now) {
			continue
		}
		s.logger.Debug().
			Str("candidate_id", candidate.ID).
			Str("source", string(profile.Source)).
			Msg("Refreshing stale profile")
		if _, err := s.EnrichSource(ctx, candidate, profile.Source); err != nil {
			s.logger.Warn().Err(err).Str("source", string(profile.Source)).Msg("Stale refresh failed")
		}
	}
	return nil
}

// EnsureBaseline guarantees a fresh INTERNET_SEARCH profile exists. The
// search fetcher synthesises when keyless, so this cannot leave the
// candidate without a baseline.
func (s *Service) EnsureBaseline(ctx context.Context, candidate *models.Candidate) error {
	profile, err := s.storage.Get(ctx, candidate.ID, models.SourceInternetSearch)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to load baseline profile: %w", err)
	}

	now := time.Now().UTC()
	if profile != nil && profile.Status == models.ProfileStatusSuccess && !profile.IsStale(s.ttl, now) {
		return nil
	}

	_, err = s.EnrichSource(ctx, candidate, models.SourceInternetSearch)
	return err
}

// SuccessfulProfiles returns the candidate's SUCCESS profiles.
func (s *Service) SuccessfulProfiles(ctx context.Context, candidateID string) ([]*models.CandidateExternalProfile, error) {
	profiles, err := s.storage.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	successful := []*models.CandidateExternalProfile{}
	for _, profile := range profiles {
		if profile.Status == models.ProfileStatusSuccess {
			successful = append(successful, profile)
		}
	}
	return successful, nil
}
