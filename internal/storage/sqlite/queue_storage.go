package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
)

// QueueStorage implements the durable job queue over SQLite. The claim uses
// a per-row conditional UPDATE matching the version column, so concurrent
// claimers never observe the same row even across processes.
type QueueStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewQueueStorage creates a new queue storage instance
func NewQueueStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.QueueStorage {
	return &QueueStorage{
		db:     db,
		logger: logger,
	}
}

const queueColumns = `id, job_type, correlation_id, status, priority, file_data, filename, metadata,
	retry_count, max_retries, error_message, error_stack_trace, created_at, scheduled_for,
	started_at, completed_at, updated_at, assigned_to, heartbeat_at, version`

// Create inserts a new PENDING job and returns its id.
func (s *QueueStorage) Create(ctx context.Context, job *models.QueueJob) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = common.NewQueueJobID()
	}
	now := timeNow()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.ScheduledFor.IsZero() {
		job.ScheduledFor = now
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = 3
	}
	job.Status = models.JobStatusPending
	job.UpdatedAt = now

	metadataJSON := "{}"
	if len(job.Metadata) > 0 {
		data, err := json.Marshal(job.Metadata)
		if err != nil {
			return "", fmt.Errorf("failed to serialize job metadata: %w", err)
		}
		metadataJSON = string(data)
	}

	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO job_queue (
			id, job_type, correlation_id, status, priority, file_data, filename, metadata,
			retry_count, max_retries, created_at, scheduled_for, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, 0)
	`,
		job.ID,
		string(job.JobType),
		nullString(job.CorrelationID),
		string(job.Status),
		job.Priority,
		job.FileData,
		nullString(job.Filename),
		metadataJSON,
		job.MaxRetries,
		job.CreatedAt.Unix(),
		job.ScheduledFor.Unix(),
		job.UpdatedAt.Unix(),
	)
	if err != nil {
		return "", common.WrapStorageErr("insert queue job", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("job_type", string(job.JobType)).
		Str("filename", job.Filename).
		Msg("Queue job created")
	return job.ID, nil
}

// ClaimBatch atomically claims up to limit due PENDING jobs for workerID,
// ordered priority DESC then created_at ASC. Each candidate row is taken
// with a conditional UPDATE matching its version; rows that lose the race
// are skipped, so no two claimers ever receive the same job.
func (s *QueueStorage) ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]*models.QueueJob, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, common.WrapStorageErr("begin claim", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, version FROM job_queue
		WHERE status = 'PENDING' AND scheduled_for <= ?
		ORDER BY priority DESC, created_at ASC
		LIMIT ?
	`, now.Unix(), limit)
	if err != nil {
		return nil, common.WrapStorageErr("select claimable", err)
	}

	type candidate struct {
		id      string
		version int64
	}
	candidates := []candidate{}
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.version); err != nil {
			rows.Close()
			return nil, common.WrapStorageErr("scan claimable", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, common.WrapStorageErr("iterate claimable", err)
	}

	claimedIDs := []string{}
	for _, c := range candidates {
		result, err := tx.ExecContext(ctx, `
			UPDATE job_queue SET
				status = 'PROCESSING',
				assigned_to = ?,
				started_at = ?,
				heartbeat_at = ?,
				updated_at = ?,
				version = version + 1
			WHERE id = ? AND status = 'PENDING' AND version = ?
		`, workerID, now.Unix(), now.Unix(), now.Unix(), c.id, c.version)
		if err != nil {
			return nil, common.WrapStorageErr("claim job", err)
		}
		if affected, _ := result.RowsAffected(); affected == 1 {
			claimedIDs = append(claimedIDs, c.id)
		}
	}

	claimed := make([]*models.QueueJob, 0, len(claimedIDs))
	for _, id := range claimedIDs {
		row := tx.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM job_queue WHERE id = ?`, id)
		job, err := scanQueueJob(row)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, job)
	}

	if err := tx.Commit(); err != nil {
		return nil, common.WrapStorageErr("commit claim", err)
	}

	if len(claimed) > 0 {
		s.logger.Debug().
			Str("worker_id", workerID).
			Int("claimed", len(claimed)).
			Msg("Claimed job batch")
	}
	return claimed, nil
}

// Heartbeat refreshes the lease. No effect unless the job is PROCESSING.
func (s *QueueStorage) Heartbeat(ctx context.Context, jobID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.db.ExecContext(ctx,
		`UPDATE job_queue SET heartbeat_at = ?, updated_at = ? WHERE id = ? AND status = 'PROCESSING'`,
		now.Unix(), now.Unix(), jobID)
	if err != nil {
		return common.WrapStorageErr("heartbeat", err)
	}
	return nil
}

// Complete marks a PROCESSING job COMPLETED.
func (s *QueueStorage) Complete(ctx context.Context, jobID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx, `
		UPDATE job_queue SET
			status = 'COMPLETED', completed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND status = 'PROCESSING'
	`, now.Unix(), now.Unix(), jobID)
	if err != nil {
		return common.WrapStorageErr("complete job", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("job %s is not PROCESSING: %w", jobID, common.ErrNotFound)
	}
	return nil
}

// FailRetryable increments retry_count and reschedules the job PENDING at
// scheduledFor with the worker assignment cleared.
func (s *QueueStorage) FailRetryable(ctx context.Context, jobID string, reason string, scheduledFor time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := timeNow()
	result, err := s.db.db.ExecContext(ctx, `
		UPDATE job_queue SET
			status = 'PENDING',
			retry_count = retry_count + 1,
			assigned_to = NULL,
			heartbeat_at = NULL,
			started_at = NULL,
			scheduled_for = ?,
			error_message = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND status = 'PROCESSING'
	`, scheduledFor.Unix(), reason, now.Unix(), jobID)
	if err != nil {
		return common.WrapStorageErr("fail retryable", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("job %s is not PROCESSING: %w", jobID, common.ErrNotFound)
	}

	s.logger.Warn().
		Str("job_id", jobID).
		Str("reason", reason).
		Str("rescheduled_for", scheduledFor.Format(time.RFC3339)).
		Msg("Job failed, rescheduled for retry")
	return nil
}

// FailTerminal marks the job FAILED and appends a dead-letter copy with the
// original payload, all in one transaction.
func (s *QueueStorage) FailTerminal(ctx context.Context, jobID string, reason string, stackTrace string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return common.WrapStorageErr("begin fail terminal", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM job_queue WHERE id = ?`, jobID)
	job, err := scanQueueJob(row)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE job_queue SET
			status = 'FAILED', completed_at = ?, error_message = ?, error_stack_trace = ?,
			updated_at = ?, version = version + 1
		WHERE id = ?
	`, now.Unix(), reason, nullString(stackTrace), now.Unix(), jobID)
	if err != nil {
		return common.WrapStorageErr("fail terminal", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_dead_letter_queue (id, original_job_id, job_type, failed_at, failure_reason, job_data, filename, retry_attempts, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`,
		common.NewDeadLetterID(),
		job.ID,
		string(job.JobType),
		now.Unix(),
		reason,
		job.FileData,
		nullString(job.Filename),
		job.RetryCount,
	)
	if err != nil {
		return common.WrapStorageErr("insert dead letter", err)
	}

	if err := tx.Commit(); err != nil {
		return common.WrapStorageErr("commit fail terminal", err)
	}

	s.logger.Error().
		Str("job_id", jobID).
		Str("reason", reason).
		Int("retry_count", job.RetryCount).
		Msg("Job failed terminally, dead-lettered")
	return nil
}

// Cancel requests cancellation. A PENDING job is cancelled immediately; a
// PROCESSING job has its cooperative flag set for the worker to observe.
func (s *QueueStorage) Cancel(ctx context.Context, jobID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx, `
		UPDATE job_queue SET
			status = 'CANCELLED', completed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND status = 'PENDING'
	`, now.Unix(), now.Unix(), jobID)
	if err != nil {
		return common.WrapStorageErr("cancel job", err)
	}
	if affected, _ := result.RowsAffected(); affected == 1 {
		s.logger.Info().Str("job_id", jobID).Msg("Pending job cancelled")
		return nil
	}

	result, err = s.db.db.ExecContext(ctx,
		`UPDATE job_queue SET cancel_requested = 1, updated_at = ? WHERE id = ? AND status = 'PROCESSING'`,
		now.Unix(), jobID)
	if err != nil {
		return common.WrapStorageErr("request cancel", err)
	}
	if affected, _ := result.RowsAffected(); affected == 1 {
		s.logger.Info().Str("job_id", jobID).Msg("Cancel requested for processing job")
		return nil
	}

	return fmt.Errorf("job %s is not PENDING or PROCESSING: %w", jobID, common.ErrNotFound)
}

// IsCancelled reports whether a cancel request was recorded for the job.
func (s *QueueStorage) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	var requested int
	var status string
	err := s.db.db.QueryRowContext(ctx,
		`SELECT cancel_requested, status FROM job_queue WHERE id = ?`, jobID).Scan(&requested, &status)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("job %s: %w", jobID, common.ErrNotFound)
	}
	if err != nil {
		return false, common.WrapStorageErr("check cancel", err)
	}
	return requested != 0 || status == string(models.JobStatusCancelled), nil
}

// MarkCancelled finalizes a PROCESSING job whose worker observed the cancel
// flag. Partial persistence is kept.
func (s *QueueStorage) MarkCancelled(ctx context.Context, jobID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx, `
		UPDATE job_queue SET
			status = 'CANCELLED', completed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND status = 'PROCESSING'
	`, now.Unix(), now.Unix(), jobID)
	if err != nil {
		return common.WrapStorageErr("mark cancelled", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("job %s is not PROCESSING: %w", jobID, common.ErrNotFound)
	}
	s.logger.Info().Str("job_id", jobID).Msg("Job cancelled by worker")
	return nil
}

// SweepStale recovers PROCESSING jobs whose heartbeat is older than the
// threshold: rescheduled when retries remain, dead-lettered otherwise.
func (s *QueueStorage) SweepStale(ctx context.Context, staleThreshold time.Duration, retryDelay time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-staleThreshold).Unix()

	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, retry_count, max_retries FROM job_queue
		WHERE status = 'PROCESSING' AND heartbeat_at IS NOT NULL AND heartbeat_at < ?
	`, cutoff)
	if err != nil {
		return 0, common.WrapStorageErr("select stale", err)
	}

	type staleJob struct {
		id                    string
		retryCount, maxRetries int
	}
	stale := []staleJob{}
	for rows.Next() {
		var j staleJob
		if err := rows.Scan(&j.id, &j.retryCount, &j.maxRetries); err != nil {
			rows.Close()
			return 0, common.WrapStorageErr("scan stale", err)
		}
		stale = append(stale, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, common.WrapStorageErr("iterate stale", err)
	}

	recovered := 0
	for _, j := range stale {
		if j.retryCount < j.maxRetries {
			err = s.FailRetryable(ctx, j.id, "stale lease: worker heartbeat expired", now.Add(retryDelay))
		} else {
			err = s.FailTerminal(ctx, j.id, "stale lease: worker heartbeat expired, retries exhausted", "", now)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", j.id).Msg("Failed to recover stale job")
			continue
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.Info().Int("recovered", recovered).Msg("Stale jobs recovered")
	}
	return recovered, nil
}

// Cleanup deletes terminal rows older than the retention window.
func (s *QueueStorage) Cleanup(ctx context.Context, retention time.Duration, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-retention).Unix()
	result, err := s.db.db.ExecContext(ctx, `
		DELETE FROM job_queue
		WHERE status IN ('COMPLETED', 'FAILED', 'CANCELLED') AND completed_at IS NOT NULL AND completed_at < ?
	`, cutoff)
	if err != nil {
		return 0, common.WrapStorageErr("cleanup queue", err)
	}
	affected, _ := result.RowsAffected()
	if affected > 0 {
		s.logger.Info().Int64("deleted", affected).Msg("Queue cleanup removed old terminal jobs")
	}
	return int(affected), nil
}

// Get retrieves a job by ID
func (s *QueueStorage) Get(ctx context.Context, jobID string) (*models.QueueJob, error) {
	row := s.db.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM job_queue WHERE id = ?`, jobID)
	return scanQueueJob(row)
}

// CountPending returns the PENDING backlog size for backpressure checks.
func (s *QueueStorage) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM job_queue WHERE status = 'PENDING'`).Scan(&count)
	if err != nil {
		return 0, common.WrapStorageErr("count pending", err)
	}
	return count, nil
}

// Stats aggregates queue counts by status and average processing duration.
func (s *QueueStorage) Stats(ctx context.Context) (*models.QueueStats, error) {
	stats := &models.QueueStats{}

	rows, err := s.db.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM job_queue GROUP BY status`)
	if err != nil {
		return nil, common.WrapStorageErr("queue stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, common.WrapStorageErr("scan queue stats", err)
		}
		switch models.JobStatus(status) {
		case models.JobStatusPending:
			stats.Pending = count
		case models.JobStatusProcessing:
			stats.Processing = count
		case models.JobStatusCompleted:
			stats.Completed = count
		case models.JobStatusFailed:
			stats.Failed = count
		case models.JobStatusCancelled:
			stats.Cancelled = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapStorageErr("queue stats", err)
	}

	var avg sql.NullFloat64
	err = s.db.db.QueryRowContext(ctx, `
		SELECT AVG(completed_at - started_at) FROM job_queue
		WHERE status = 'COMPLETED' AND started_at IS NOT NULL AND completed_at IS NOT NULL
	`).Scan(&avg)
	if err != nil {
		return nil, common.WrapStorageErr("queue avg duration", err)
	}
	stats.AvgProcessingSeconds = avg.Float64

	err = s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM job_dead_letter_queue WHERE resolved = 0`).Scan(&stats.DeadLetters)
	if err != nil {
		return nil, common.WrapStorageErr("dead letter count", err)
	}

	return stats, nil
}

// ListDeadLetters returns unresolved dead letters, newest first.
func (s *QueueStorage) ListDeadLetters(ctx context.Context, limit int) ([]*models.DeadLetterJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, original_job_id, job_type, failed_at, failure_reason, job_data, filename, retry_attempts, resolved
		FROM job_dead_letter_queue
		WHERE resolved = 0
		ORDER BY failed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, common.WrapStorageErr("list dead letters", err)
	}
	defer rows.Close()

	letters := []*models.DeadLetterJob{}
	for rows.Next() {
		var d models.DeadLetterJob
		var jobType string
		var reason, filename sql.NullString
		var failedAt int64
		var resolved int
		if err := rows.Scan(&d.ID, &d.OriginalJobID, &jobType, &failedAt, &reason, &d.JobData, &filename, &d.RetryAttempts, &resolved); err != nil {
			return nil, common.WrapStorageErr("scan dead letter", err)
		}
		d.JobType = models.JobType(jobType)
		d.FailedAt = unixToTime(failedAt)
		d.FailureReason = reason.String
		d.Filename = filename.String
		d.Resolved = resolved != 0
		letters = append(letters, &d)
	}
	return letters, rows.Err()
}

// ResolveDeadLetter marks a dead letter as handled.
func (s *QueueStorage) ResolveDeadLetter(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx,
		`UPDATE job_dead_letter_queue SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return common.WrapStorageErr("resolve dead letter", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("dead letter %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanQueueJob(row rowScanner) (*models.QueueJob, error) {
	var job models.QueueJob
	var jobType, status string
	var correlationID, filename, errMsg, stackTrace, assignedTo sql.NullString
	var metadataJSON sql.NullString
	var createdAt, scheduledFor, updatedAt int64
	var startedAt, completedAt, heartbeatAt sql.NullInt64

	err := row.Scan(&job.ID, &jobType, &correlationID, &status, &job.Priority, &job.FileData,
		&filename, &metadataJSON, &job.RetryCount, &job.MaxRetries, &errMsg, &stackTrace,
		&createdAt, &scheduledFor, &startedAt, &completedAt, &updatedAt, &assignedTo,
		&heartbeatAt, &job.Version)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapStorageErr("scan queue job", err)
	}

	job.JobType = models.JobType(jobType)
	job.Status = models.JobStatus(status)
	job.CorrelationID = correlationID.String
	job.Filename = filename.String
	job.ErrorMessage = errMsg.String
	job.ErrorStackTrace = stackTrace.String
	job.AssignedTo = assignedTo.String
	job.CreatedAt = unixToTime(createdAt)
	job.ScheduledFor = unixToTime(scheduledFor)
	job.UpdatedAt = unixToTime(updatedAt)
	job.StartedAt = timePtr(startedAt)
	job.CompletedAt = timePtr(completedAt)
	job.HeartbeatAt = timePtr(heartbeatAt)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "{}" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse job metadata: %w", err)
		}
	}

	return &job, nil
}
