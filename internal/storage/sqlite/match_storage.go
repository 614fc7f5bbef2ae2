package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
)

// MatchStorage implements SQLite storage for candidate matches
type MatchStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewMatchStorage creates a new match storage instance
func NewMatchStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.MatchStorage {
	return &MatchStorage{
		db:     db,
		logger: logger,
	}
}

const matchColumns = `id, candidate_id, job_requirement_id, match_score, skills_score, experience_score,
	education_score, domain_score, match_explanation, is_shortlisted, is_selected, recruiter_notes,
	created_at, updated_at`

// Upsert writes the match keyed on (candidate_id, job_requirement_id).
// A re-match overwrites the scores and explanation; is_selected and
// recruiter_notes are recruiter decisions and survive the conflict.
func (s *MatchStorage) Upsert(ctx context.Context, match *models.CandidateMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if match.ID == "" {
		match.ID = common.NewMatchID()
	}
	now := timeNow()
	if match.CreatedAt.IsZero() {
		match.CreatedAt = now
	}
	match.UpdatedAt = now

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO candidate_matches (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(candidate_id, job_requirement_id) DO UPDATE SET
			match_score = excluded.match_score,
			skills_score = excluded.skills_score,
			experience_score = excluded.experience_score,
			education_score = excluded.education_score,
			domain_score = excluded.domain_score,
			match_explanation = excluded.match_explanation,
			is_shortlisted = excluded.is_shortlisted,
			updated_at = excluded.updated_at
	`,
		match.ID,
		match.CandidateID,
		match.JobRequirementID,
		match.MatchScore,
		match.SkillsScore,
		match.ExperienceScore,
		match.EducationScore,
		match.DomainScore,
		nullString(match.MatchExplanation),
		boolToInt(match.IsShortlisted),
		boolToInt(match.IsSelected),
		nullString(match.RecruiterNotes),
		match.CreatedAt.Unix(),
		match.UpdatedAt.Unix(),
	)
	if err != nil {
		return common.WrapStorageErr("upsert match", err)
	}

	s.logger.Debug().
		Str("candidate_id", match.CandidateID).
		Str("job_requirement_id", match.JobRequirementID).
		Float64("score", match.MatchScore).
		Msg("Match upserted")
	return nil
}

// Get retrieves the match for one (candidate, job) pair
func (s *MatchStorage) Get(ctx context.Context, candidateID, jobRequirementID string) (*models.CandidateMatch, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM candidate_matches WHERE candidate_id = ? AND job_requirement_id = ?`,
		candidateID, jobRequirementID)
	return scanMatch(row)
}

// ListByJob returns matches for a job, best score first
func (s *MatchStorage) ListByJob(ctx context.Context, jobRequirementID string) ([]*models.CandidateMatch, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM candidate_matches WHERE job_requirement_id = ? ORDER BY match_score DESC`,
		jobRequirementID)
	if err != nil {
		return nil, common.WrapStorageErr("list matches by job", err)
	}
	defer rows.Close()
	return scanMatches(rows)
}

// ListByCandidate returns a candidate's matches, newest first
func (s *MatchStorage) ListByCandidate(ctx context.Context, candidateID string) ([]*models.CandidateMatch, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM candidate_matches WHERE candidate_id = ? ORDER BY updated_at DESC`,
		candidateID)
	if err != nil {
		return nil, common.WrapStorageErr("list matches by candidate", err)
	}
	defer rows.Close()
	return scanMatches(rows)
}

// SetSelected records a recruiter decision on a match
func (s *MatchStorage) SetSelected(ctx context.Context, id string, selected bool, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx,
		`UPDATE candidate_matches SET is_selected = ?, recruiter_notes = ?, updated_at = ? WHERE id = ?`,
		boolToInt(selected), nullString(notes), timeNow().Unix(), id)
	if err != nil {
		return common.WrapStorageErr("set match selected", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("match %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanMatches(rows *sql.Rows) ([]*models.CandidateMatch, error) {
	matches := []*models.CandidateMatch{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func scanMatch(row rowScanner) (*models.CandidateMatch, error) {
	var m models.CandidateMatch
	var explanation, notes sql.NullString
	var shortlisted, selected int
	var createdAt, updatedAt int64

	err := row.Scan(&m.ID, &m.CandidateID, &m.JobRequirementID, &m.MatchScore, &m.SkillsScore,
		&m.ExperienceScore, &m.EducationScore, &m.DomainScore, &explanation,
		&shortlisted, &selected, &notes, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapStorageErr("scan match", err)
	}

	m.MatchExplanation = explanation.String
	m.RecruiterNotes = notes.String
	m.IsShortlisted = shortlisted != 0
	m.IsSelected = selected != 0
	m.CreatedAt = unixToTime(createdAt)
	m.UpdatedAt = unixToTime(updatedAt)
	return &m, nil
}
