package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
)

// CandidateStorage implements SQLite storage for candidates
type CandidateStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewCandidateStorage creates a new candidate storage instance
func NewCandidateStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.CandidateStorage {
	return &CandidateStorage{
		db:     db,
		logger: logger,
	}
}

const candidateColumns = `id, name, email, mobile, resume_filename, resume_content, resume_file,
	experience_summary, skills, domain_knowledge, academic_background, years_of_experience, created_at`

// UpsertByEmail inserts the candidate, or overwrites the resume fields of
// the existing row when the email is already present and the names agree.
// When the stored name differs significantly the conflict is surfaced as
// ErrStorageConflict. Candidates without email are keyed on
// (name, resume_filename) instead.
func (s *CandidateStorage) UpsertByEmail(ctx context.Context, candidate *models.Candidate) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := models.NormalizeEmail(candidate.Email)
	candidate.Email = email

	var existing *models.Candidate
	var err error
	if email != "" {
		existing, err = s.getByEmailLocked(ctx, email)
	} else {
		existing, err = s.getByNameAndFilenameLocked(ctx, candidate.Name, candidate.ResumeFilename)
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return "", err
	}

	if existing != nil {
		if email != "" && !namesAgree(existing.Name, candidate.Name) {
			return "", fmt.Errorf("candidate email %s already belongs to %q, refusing to overwrite with %q: %w",
				email, existing.Name, candidate.Name, common.ErrStorageConflict)
		}
		if err := s.updateResumeFieldsLocked(ctx, existing.ID, candidate); err != nil {
			return "", err
		}
		s.logger.Debug().Str("candidate_id", existing.ID).Str("email", email).Msg("Candidate updated by upsert")
		return existing.ID, nil
	}

	if candidate.ID == "" {
		candidate.ID = common.NewCandidateID()
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = timeNow()
	}

	query := `
		INSERT INTO candidates (` + candidateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.db.ExecContext(ctx, query,
		candidate.ID,
		candidate.Name,
		nullString(email),
		nullString(candidate.Mobile),
		nullString(candidate.ResumeFilename),
		nullString(candidate.ResumeContent),
		candidate.ResumeFile,
		nullString(candidate.ExperienceSummary),
		nullString(candidate.Skills),
		nullString(candidate.DomainKnowledge),
		nullString(candidate.AcademicBackground),
		nullInt(candidate.YearsOfExperience),
		candidate.CreatedAt.Unix(),
	)
	if err != nil {
		return "", common.WrapStorageErr("insert candidate", err)
	}

	s.logger.Debug().Str("candidate_id", candidate.ID).Str("email", email).Msg("Candidate created")
	return candidate.ID, nil
}

// updateResumeFieldsLocked overwrites the fields a re-processed resume may
// change. created_at and id are preserved.
func (s *CandidateStorage) updateResumeFieldsLocked(ctx context.Context, id string, candidate *models.Candidate) error {
	query := `
		UPDATE candidates SET
			name = ?,
			mobile = ?,
			resume_filename = ?,
			resume_content = ?,
			resume_file = ?,
			experience_summary = ?,
			skills = ?,
			domain_knowledge = ?,
			academic_background = ?,
			years_of_experience = ?
		WHERE id = ?
	`
	_, err := s.db.db.ExecContext(ctx, query,
		candidate.Name,
		nullString(candidate.Mobile),
		nullString(candidate.ResumeFilename),
		nullString(candidate.ResumeContent),
		candidate.ResumeFile,
		nullString(candidate.ExperienceSummary),
		nullString(candidate.Skills),
		nullString(candidate.DomainKnowledge),
		nullString(candidate.AcademicBackground),
		nullInt(candidate.YearsOfExperience),
		id,
	)
	if err != nil {
		return common.WrapStorageErr("update candidate", err)
	}
	return nil
}

// Get retrieves a candidate by ID
func (s *CandidateStorage) Get(ctx context.Context, id string) (*models.Candidate, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	return scanCandidate(row)
}

// GetByEmail retrieves a candidate by normalized email
func (s *CandidateStorage) GetByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	return s.getByEmailLocked(ctx, models.NormalizeEmail(email))
}

func (s *CandidateStorage) getByEmailLocked(ctx context.Context, email string) (*models.Candidate, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE email = ?`, email)
	return scanCandidate(row)
}

func (s *CandidateStorage) getByNameAndFilenameLocked(ctx context.Context, name, filename string) (*models.Candidate, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE email IS NULL AND name = ? AND resume_filename = ?`,
		name, filename)
	return scanCandidate(row)
}

// List returns candidates ordered by creation time, newest first
func (s *CandidateStorage) List(ctx context.Context, limit, offset int) ([]*models.Candidate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, common.WrapStorageErr("list candidates", err)
	}
	defer rows.Close()

	candidates := []*models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// Count returns the total number of candidates
func (s *CandidateStorage) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM candidates`).Scan(&count); err != nil {
		return 0, common.WrapStorageErr("count candidates", err)
	}
	return count, nil
}

// Delete removes the candidate and cascades to embeddings, external
// profiles, and matches in a single transaction.
func (s *CandidateStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return common.WrapStorageErr("begin delete candidate", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE id = ?`, id)
	if err != nil {
		return common.WrapStorageErr("delete candidate", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("candidate %s: %w", id, common.ErrNotFound)
	}

	for _, stmt := range []string{
		`DELETE FROM resume_embeddings WHERE candidate_id = ?`,
		`DELETE FROM candidate_external_profiles WHERE candidate_id = ?`,
		`DELETE FROM candidate_matches WHERE candidate_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return common.WrapStorageErr("cascade delete candidate", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.WrapStorageErr("commit delete candidate", err)
	}

	s.logger.Info().Str("candidate_id", id).Msg("Candidate deleted with embeddings, profiles, and matches")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var c models.Candidate
	var email, mobile, filename, content, summary, skills, domain, academic sql.NullString
	var years sql.NullInt64
	var createdAt int64

	err := row.Scan(&c.ID, &c.Name, &email, &mobile, &filename, &content, &c.ResumeFile,
		&summary, &skills, &domain, &academic, &years, &createdAt)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapStorageErr("scan candidate", err)
	}

	c.Email = email.String
	c.Mobile = mobile.String
	c.ResumeFilename = filename.String
	c.ResumeContent = content.String
	c.ExperienceSummary = summary.String
	c.Skills = skills.String
	c.DomainKnowledge = domain.String
	c.AcademicBackground = academic.String
	c.YearsOfExperience = intPtr(years)
	c.CreatedAt = unixToTime(createdAt)
	return &c, nil
}

// namesAgree compares two candidate names loosely: case-insensitive, and
// either equal or one containing the other (handles "J. Doe" vs "Jane Doe"
// style variations poorly enough that only clear mismatches conflict).
func namesAgree(a, b string) bool {
	na := strings.ToLower(strings.TrimSpace(a))
	nb := strings.ToLower(strings.TrimSpace(b))
	if na == "" || nb == "" || na == nb {
		return true
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	// Same surname is close enough for a re-uploaded resume
	fa := strings.Fields(na)
	fb := strings.Fields(nb)
	if len(fa) > 0 && len(fb) > 0 && fa[len(fa)-1] == fb[len(fb)-1] {
		return true
	}
	return false
}
