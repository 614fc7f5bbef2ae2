package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
)

// TrackerStorage implements SQLite storage for upload progress trackers.
// Counter updates happen in SQL so readers always observe monotonically
// non-decreasing processed+failed totals.
type TrackerStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewTrackerStorage creates a new tracker storage instance
func NewTrackerStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.TrackerStorage {
	return &TrackerStorage{
		db:     db,
		logger: logger,
	}
}

const trackerColumns = `id, status, total_files, processed_files, failed_files, message,
	uploaded_filename, correlation_id, job_id, created_at, updated_at, completed_at`

// Create inserts a new tracker
func (s *TrackerStorage) Create(ctx context.Context, tracker *models.ProcessTracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tracker.ID == "" {
		tracker.ID = common.NewTrackerID()
	}
	if tracker.Status == "" {
		tracker.Status = models.TrackerStatusInitiated
	}
	now := timeNow()
	tracker.CreatedAt = now
	tracker.UpdatedAt = now

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO process_tracker (
			id, status, total_files, processed_files, failed_files, message,
			uploaded_filename, correlation_id, job_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tracker.ID,
		string(tracker.Status),
		tracker.TotalFiles,
		tracker.ProcessedFiles,
		tracker.FailedFiles,
		nullString(tracker.Message),
		nullString(tracker.UploadedFilename),
		nullString(tracker.CorrelationID),
		nullString(tracker.JobID),
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return common.WrapStorageErr("insert tracker", err)
	}

	s.logger.Debug().Str("tracker_id", tracker.ID).Int("total_files", tracker.TotalFiles).Msg("Tracker created")
	return nil
}

// Get retrieves a tracker by ID
func (s *TrackerStorage) Get(ctx context.Context, id string) (*models.ProcessTracker, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+trackerColumns+` FROM process_tracker WHERE id = ?`, id)
	return scanTracker(row)
}

// List returns recent trackers, newest first
func (s *TrackerStorage) List(ctx context.Context, limit int) ([]*models.ProcessTracker, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT `+trackerColumns+` FROM process_tracker ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, common.WrapStorageErr("list trackers", err)
	}
	defer rows.Close()

	trackers := []*models.ProcessTracker{}
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, err
		}
		trackers = append(trackers, t)
	}
	return trackers, rows.Err()
}

// UpdateStatus sets the phase and message without touching counters. A
// tracker already terminal is left alone.
func (s *TrackerStorage) UpdateStatus(ctx context.Context, id string, status models.TrackerStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx, `
		UPDATE process_tracker SET status = ?, message = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('COMPLETED', 'FAILED')
	`, string(status), nullString(message), timeNow().Unix(), id)
	if err != nil {
		return common.WrapStorageErr("update tracker status", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		// Either missing or already terminal; distinguish for the caller
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return fmt.Errorf("tracker %s: %w", id, common.ErrNotFound)
		}
	}
	return nil
}

// RecordFileOutcome increments processed_files or failed_files and flips
// the tracker terminal when every file is accounted for. The increment is a
// single SQL statement so the counters never regress, and the cap on
// total_files holds even under concurrent workers.
func (s *TrackerStorage) RecordFileOutcome(ctx context.Context, id string, succeeded bool, message string, now time.Time) (*models.ProcessTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	column := "failed_files"
	if succeeded {
		column = "processed_files"
	}

	result, err := s.db.db.ExecContext(ctx, `
		UPDATE process_tracker SET
			`+column+` = `+column+` + 1,
			message = ?,
			updated_at = ?
		WHERE id = ? AND processed_files + failed_files < total_files
	`, nullString(message), now.Unix(), id)
	if err != nil {
		return nil, common.WrapStorageErr("record file outcome", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		tracker, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("tracker %s: %w", id, common.ErrNotFound)
		}
		// All files already accounted for; nothing to record
		return tracker, nil
	}

	// Flip terminal when the last file lands: FAILED only when nothing
	// processed successfully
	_, err = s.db.db.ExecContext(ctx, `
		UPDATE process_tracker SET
			status = CASE WHEN processed_files > 0 THEN 'COMPLETED' ELSE 'FAILED' END,
			completed_at = ?,
			updated_at = ?
		WHERE id = ? AND processed_files + failed_files >= total_files AND status NOT IN ('COMPLETED', 'FAILED')
	`, now.Unix(), now.Unix(), id)
	if err != nil {
		return nil, common.WrapStorageErr("finalize tracker", err)
	}

	tracker, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("tracker_id", id).
		Int("processed", tracker.ProcessedFiles).
		Int("failed", tracker.FailedFiles).
		Int("total", tracker.TotalFiles).
		Str("status", string(tracker.Status)).
		Msg("Tracker file outcome recorded")
	return tracker, nil
}

func scanTracker(row rowScanner) (*models.ProcessTracker, error) {
	var t models.ProcessTracker
	var status string
	var message, filename, correlationID, jobID sql.NullString
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64

	err := row.Scan(&t.ID, &status, &t.TotalFiles, &t.ProcessedFiles, &t.FailedFiles,
		&message, &filename, &correlationID, &jobID, &createdAt, &updatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapStorageErr("scan tracker", err)
	}

	t.Status = models.TrackerStatus(status)
	t.Message = message.String
	t.UploadedFilename = filename.String
	t.CorrelationID = correlationID.String
	t.JobID = jobID.String
	t.CreatedAt = unixToTime(createdAt)
	t.UpdatedAt = unixToTime(updatedAt)
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}
