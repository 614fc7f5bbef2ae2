package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
)

// AuditStorage implements append-only SQLite storage for match run records
type AuditStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewAuditStorage creates a new audit storage instance
func NewAuditStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.AuditStorage {
	return &AuditStorage{
		db:     db,
		logger: logger,
	}
}

const auditColumns = `id, job_requirement_id, job_title, status, total_candidates, successful_matches,
	shortlisted_count, average_match_score, highest_match_score, estimated_tokens_used, duration_ms,
	initiated_by, initiated_at, completed_at, match_summaries, error_message`

// Create inserts the initial RUNNING audit row
func (s *AuditStorage) Create(ctx context.Context, audit *models.MatchAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if audit.ID == "" {
		audit.ID = common.NewAuditID()
	}
	if audit.Status == "" {
		audit.Status = models.AuditStatusRunning
	}
	if audit.InitiatedAt.IsZero() {
		audit.InitiatedAt = timeNow()
	}

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO match_audits (id, job_requirement_id, job_title, status, total_candidates, initiated_by, initiated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		audit.ID,
		audit.JobRequirementID,
		nullString(audit.JobTitle),
		string(audit.Status),
		audit.TotalCandidates,
		nullString(audit.InitiatedBy),
		audit.InitiatedAt.Unix(),
	)
	if err != nil {
		return common.WrapStorageErr("insert audit", err)
	}
	return nil
}

// Finalize patches the audit row with the run outcome and summary metrics
func (s *AuditStorage) Finalize(ctx context.Context, audit *models.MatchAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summariesJSON := "[]"
	if len(audit.MatchSummaries) > 0 {
		data, err := json.Marshal(audit.MatchSummaries)
		if err != nil {
			return fmt.Errorf("failed to serialize match summaries: %w", err)
		}
		summariesJSON = string(data)
	}

	result, err := s.db.db.ExecContext(ctx, `
		UPDATE match_audits SET
			status = ?, total_candidates = ?, successful_matches = ?, shortlisted_count = ?,
			average_match_score = ?, highest_match_score = ?, estimated_tokens_used = ?,
			duration_ms = ?, completed_at = ?, match_summaries = ?, error_message = ?
		WHERE id = ?
	`,
		string(audit.Status),
		audit.TotalCandidates,
		audit.SuccessfulMatches,
		audit.ShortlistedCount,
		audit.AverageMatchScore,
		audit.HighestMatchScore,
		audit.EstimatedTokensUsed,
		audit.DurationMs,
		nullTime(audit.CompletedAt),
		summariesJSON,
		nullString(audit.ErrorMessage),
		audit.ID,
	)
	if err != nil {
		return common.WrapStorageErr("finalize audit", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("audit %s: %w", audit.ID, common.ErrNotFound)
	}
	return nil
}

// Get retrieves an audit row by ID
func (s *AuditStorage) Get(ctx context.Context, id string) (*models.MatchAudit, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM match_audits WHERE id = ?`, id)
	return scanAudit(row)
}

// ListByJob returns audit runs for a job, newest first
func (s *AuditStorage) ListByJob(ctx context.Context, jobRequirementID string, limit int) ([]*models.MatchAudit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM match_audits WHERE job_requirement_id = ? ORDER BY initiated_at DESC LIMIT ?`,
		jobRequirementID, limit)
	if err != nil {
		return nil, common.WrapStorageErr("list audits", err)
	}
	defer rows.Close()

	audits := []*models.MatchAudit{}
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

func scanAudit(row rowScanner) (*models.MatchAudit, error) {
	var a models.MatchAudit
	var status string
	var jobTitle, initiatedBy, summariesJSON, errMsg sql.NullString
	var initiatedAt int64
	var completedAt sql.NullInt64

	err := row.Scan(&a.ID, &a.JobRequirementID, &jobTitle, &status, &a.TotalCandidates,
		&a.SuccessfulMatches, &a.ShortlistedCount, &a.AverageMatchScore, &a.HighestMatchScore,
		&a.EstimatedTokensUsed, &a.DurationMs, &initiatedBy, &initiatedAt, &completedAt,
		&summariesJSON, &errMsg)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapStorageErr("scan audit", err)
	}

	a.Status = models.MatchAuditStatus(status)
	a.JobTitle = jobTitle.String
	a.InitiatedBy = initiatedBy.String
	a.ErrorMessage = errMsg.String
	a.InitiatedAt = unixToTime(initiatedAt)
	a.CompletedAt = timePtr(completedAt)

	if summariesJSON.Valid && summariesJSON.String != "" && summariesJSON.String != "[]" {
		if err := json.Unmarshal([]byte(summariesJSON.String), &a.MatchSummaries); err != nil {
			return nil, fmt.Errorf("failed to parse match summaries: %w", err)
		}
	}

	return &a, nil
}
