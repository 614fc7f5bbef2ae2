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

// JobRequirementStorage implements SQLite storage for job requirements
type JobRequirementStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobRequirementStorage creates a new job requirement storage instance
func NewJobRequirementStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.JobRequirementStorage {
	return &JobRequirementStorage{
		db:     db,
		logger: logger,
	}
}

const jobRequirementColumns = `id, title, description, required_skills, min_experience, max_experience,
	required_education, domain, location, is_active, created_at, updated_at`

// Create inserts a new job requirement
func (s *JobRequirementStorage) Create(ctx context.Context, req *models.JobRequirement) error {
	if err := req.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = common.NewJobRequirementID()
	}
	now := timeNow()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO job_requirements (`+jobRequirementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID,
		req.Title,
		nullString(req.Description),
		nullString(req.RequiredSkills),
		nullInt(req.MinExperience),
		nullInt(req.MaxExperience),
		nullString(req.RequiredEducation),
		nullString(req.Domain),
		nullString(req.Location),
		boolToInt(req.IsActive),
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return common.WrapStorageErr("insert job requirement", err)
	}

	s.logger.Debug().Str("job_requirement_id", req.ID).Str("title", req.Title).Msg("Job requirement created")
	return nil
}

// Update overwrites a job requirement's mutable fields
func (s *JobRequirementStorage) Update(ctx context.Context, req *models.JobRequirement) error {
	if err := req.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req.UpdatedAt = timeNow()
	result, err := s.db.db.ExecContext(ctx, `
		UPDATE job_requirements SET
			title = ?, description = ?, required_skills = ?,
			min_experience = ?, max_experience = ?, required_education = ?,
			domain = ?, location = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`,
		req.Title,
		nullString(req.Description),
		nullString(req.RequiredSkills),
		nullInt(req.MinExperience),
		nullInt(req.MaxExperience),
		nullString(req.RequiredEducation),
		nullString(req.Domain),
		nullString(req.Location),
		boolToInt(req.IsActive),
		req.UpdatedAt.Unix(),
		req.ID,
	)
	if err != nil {
		return common.WrapStorageErr("update job requirement", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("job requirement %s: %w", req.ID, common.ErrNotFound)
	}
	return nil
}

// Get retrieves a job requirement by ID
func (s *JobRequirementStorage) Get(ctx context.Context, id string) (*models.JobRequirement, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+jobRequirementColumns+` FROM job_requirements WHERE id = ?`, id)
	return scanJobRequirement(row)
}

// List returns job requirements, optionally only active ones
func (s *JobRequirementStorage) List(ctx context.Context, activeOnly bool) ([]*models.JobRequirement, error) {
	query := `SELECT ` + jobRequirementColumns + ` FROM job_requirements`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, common.WrapStorageErr("list job requirements", err)
	}
	defer rows.Close()

	reqs := []*models.JobRequirement{}
	for rows.Next() {
		req, err := scanJobRequirement(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// SetActive toggles a job requirement without deleting it
func (s *JobRequirementStorage) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx,
		`UPDATE job_requirements SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), timeNow().Unix(), id)
	if err != nil {
		return common.WrapStorageErr("set job requirement active", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("job requirement %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanJobRequirement(row rowScanner) (*models.JobRequirement, error) {
	var req models.JobRequirement
	var description, skills, education, domain, location sql.NullString
	var minExp, maxExp sql.NullInt64
	var isActive int
	var createdAt, updatedAt int64

	err := row.Scan(&req.ID, &req.Title, &description, &skills, &minExp, &maxExp,
		&education, &domain, &location, &isActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapStorageErr("scan job requirement", err)
	}

	req.Description = description.String
	req.RequiredSkills = skills.String
	req.MinExperience = intPtr(minExp)
	req.MaxExperience = intPtr(maxExp)
	req.RequiredEducation = education.String
	req.Domain = domain.String
	req.Location = location.String
	req.IsActive = isActive != 0
	req.CreatedAt = unixToTime(createdAt)
	req.UpdatedAt = unixToTime(updatedAt)
	return &req, nil
}
