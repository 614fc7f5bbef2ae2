package sqlite

import (
	"context"
	"database/sql"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
)

// ProfileStorage implements SQLite storage for external enrichment profiles
type ProfileStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewProfileStorage creates a new profile storage instance
func NewProfileStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.ProfileStorage {
	return &ProfileStorage{
		db:     db,
		logger: logger,
	}
}

const profileColumns = `id, candidate_id, source, profile_url, display_name, bio, enriched_summary,
	status, last_fetched_at, error_message, followers_count, public_repos, location, created_at, updated_at`

// Upsert writes the profile keyed on (candidate_id, source)
func (s *ProfileStorage) Upsert(ctx context.Context, profile *models.CandidateExternalProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile.ID == "" {
		profile.ID = common.NewProfileID()
	}
	now := timeNow()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO candidate_external_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(candidate_id, source) DO UPDATE SET
			profile_url = excluded.profile_url,
			display_name = excluded.display_name,
			bio = excluded.bio,
			enriched_summary = excluded.enriched_summary,
			status = excluded.status,
			last_fetched_at = excluded.last_fetched_at,
			error_message = excluded.error_message,
			followers_count = excluded.followers_count,
			public_repos = excluded.public_repos,
			location = excluded.location,
			updated_at = excluded.updated_at
	`,
		profile.ID,
		profile.CandidateID,
		string(profile.Source),
		nullString(profile.ProfileURL),
		nullString(profile.DisplayName),
		nullString(profile.Bio),
		nullString(profile.EnrichedSummary),
		string(profile.Status),
		nullTime(profile.LastFetchedAt),
		nullString(profile.ErrorMessage),
		nullInt(profile.FollowersCount),
		nullInt(profile.PublicRepos),
		nullString(profile.Location),
		profile.CreatedAt.Unix(),
		profile.UpdatedAt.Unix(),
	)
	if err != nil {
		return common.WrapStorageErr("upsert profile", err)
	}

	s.logger.Debug().
		Str("candidate_id", profile.CandidateID).
		Str("source", string(profile.Source)).
		Str("status", string(profile.Status)).
		Msg("External profile upserted")
	return nil
}

// Get retrieves the profile for one (candidate, source) pair
func (s *ProfileStorage) Get(ctx context.Context, candidateID string, source models.ProfileSource) (*models.CandidateExternalProfile, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM candidate_external_profiles WHERE candidate_id = ? AND source = ?`,
		candidateID, string(source))
	return scanProfile(row)
}

// ListByCandidate returns all of a candidate's profiles
func (s *ProfileStorage) ListByCandidate(ctx context.Context, candidateID string) ([]*models.CandidateExternalProfile, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM candidate_external_profiles WHERE candidate_id = ? ORDER BY source`,
		candidateID)
	if err != nil {
		return nil, common.WrapStorageErr("list profiles", err)
	}
	defer rows.Close()

	profiles := []*models.CandidateExternalProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(row rowScanner) (*models.CandidateExternalProfile, error) {
	var p models.CandidateExternalProfile
	var source, status string
	var url, displayName, bio, summary, errMsg, location sql.NullString
	var lastFetched sql.NullInt64
	var followers, repos sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&p.ID, &p.CandidateID, &source, &url, &displayName, &bio, &summary,
		&status, &lastFetched, &errMsg, &followers, &repos, &location, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapStorageErr("scan profile", err)
	}

	p.Source = models.ProfileSource(source)
	p.Status = models.ProfileStatus(status)
	p.ProfileURL = url.String
	p.DisplayName = displayName.String
	p.Bio = bio.String
	p.EnrichedSummary = summary.String
	p.ErrorMessage = errMsg.String
	p.Location = location.String
	p.LastFetchedAt = timePtr(lastFetched)
	p.FollowersCount = intPtr(followers)
	p.PublicRepos = intPtr(repos)
	p.CreatedAt = unixToTime(createdAt)
	p.UpdatedAt = unixToTime(updatedAt)
	return &p, nil
}
