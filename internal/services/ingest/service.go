package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/aptus/internal/workers"
	"github.com/ternarybob/arbor"
)

// inlineTimeout bounds one background inline run. Generous: a large archive
// can hold many resumes, each with its own LLM round trips.
const inlineTimeout = 30 * time.Minute

// ResumePipeline processes one resume document end to end. Satisfied by the
// queue worker so both upload paths share one implementation.
type ResumePipeline interface {
	ProcessFile(ctx context.Context, data []byte, filename, trackerID string, lease interfaces.JobLease) error
	RecordFailure(ctx context.Context, trackerID, message string)
}

// Service accepts resume uploads and routes them to processing. With the
// scheduler enabled each file becomes a durable queue job; otherwise the
// pipeline runs in-process on a background goroutine. Both paths report
// progress through the same tracker.
type Service struct {
	parser   interfaces.FileParser
	trackers interfaces.TrackerStorage
	queue    interfaces.QueueStorage
	pipeline ResumePipeline
	schedCfg *common.SchedulerConfig
	queueCfg *common.QueueConfig
	upload   *common.UploadConfig
	logger   arbor.ILogger
}

// NewService creates the upload ingest service
func NewService(
	parser interfaces.FileParser,
	trackers interfaces.TrackerStorage,
	queue interfaces.QueueStorage,
	pipeline ResumePipeline,
	schedCfg *common.SchedulerConfig,
	queueCfg *common.QueueConfig,
	upload *common.UploadConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		parser:   parser,
		trackers: trackers,
		queue:    queue,
		pipeline: pipeline,
		schedCfg: schedCfg,
		queueCfg: queueCfg,
		upload:   upload,
		logger:   logger,
	}
}

// UploadResult reports where an accepted upload went.
type UploadResult struct {
	TrackerID     string   `json:"tracker_id"`
	CorrelationID string   `json:"correlation_id"`
	TotalFiles    int      `json:"total_files"`
	Queued        bool     `json:"queued"`
	JobIDs        []string `json:"job_ids,omitempty"`
}

// Upload validates the file, creates a tracker sized to the number of
// documents, and routes processing. ZIP archives are expanded so each
// contained resume is tracked and processed independently.
func (s *Service) Upload(ctx context.Context, data []byte, filename string) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", common.ErrInvalidInput)
	}
	if int64(len(data)) > s.upload.MaxFileSizeBytes() {
		return nil, fmt.Errorf("%w: %s exceeds the %dMB upload limit",
			common.ErrInvalidInput, filename, s.upload.MaxFileSizeBytes()/(1024*1024))
	}
	if !s.upload.IsAllowedExtension(filename) {
		return nil, fmt.Errorf("%w: unsupported file extension on %s", common.ErrInvalidInput, filename)
	}

	entries, err := s.expand(ctx, data, filename)
	if err != nil {
		return nil, err
	}

	if s.schedCfg.Enabled {
		return s.enqueue(ctx, entries, filename)
	}
	return s.processInline(ctx, entries, filename)
}

// expand resolves the upload into individual documents. Detection is by
// magic bytes; a renamed archive is still expanded.
func (s *Service) expand(ctx context.Context, data []byte, filename string) ([]models.ArchiveEntry, error) {
	if s.parser.DetectFormat(data) != models.FormatZIP {
		return []models.ArchiveEntry{{Filename: filename, Data: data}}, nil
	}

	entries, err := s.parser.ExpandArchive(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to expand archive %s: %v", common.ErrInvalidInput, filename, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: archive %s contains no supported documents", common.ErrInvalidInput, filename)
	}
	return entries, nil
}

func (s *Service) enqueue(ctx context.Context, entries []models.ArchiveEntry, filename string) (*UploadResult, error) {
	// Backpressure before any row is written
	if limit := s.queueCfg.MaxPending; limit > 0 {
		pending, err := s.queue.CountPending(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check queue depth: %w", err)
		}
		if pending+int64(len(entries)) > int64(limit) {
			return nil, fmt.Errorf("%w: %d jobs pending, limit %d", common.ErrQueueSaturated, pending, limit)
		}
	}

	correlationID := common.NewCorrelationID()
	tracker := &models.ProcessTracker{
		Status:           models.TrackerStatusInitiated,
		TotalFiles:       len(entries),
		Message:          fmt.Sprintf("Queued %d file(s) from %s", len(entries), filename),
		UploadedFilename: filename,
		CorrelationID:    correlationID,
	}
	if err := s.trackers.Create(ctx, tracker); err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}

	jobIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		job := &models.QueueJob{
			JobType:       models.JobTypeResumeProcessing,
			CorrelationID: correlationID,
			FileData:      entry.Data,
			Filename:      entry.Filename,
			Metadata:      map[string]interface{}{"tracker_id": tracker.ID},
			MaxRetries:    s.queueCfg.MaxRetries,
		}
		jobID, err := s.queue.Create(ctx, job)
		if err != nil {
			// The tracker still expects this file; account for it so the
			// batch can terminate
			s.logger.Error().Err(err).Str("filename", entry.Filename).Msg("Failed to enqueue file")
			s.pipeline.RecordFailure(ctx, tracker.ID, fmt.Sprintf("Failed to enqueue %s", entry.Filename))
			continue
		}
		jobIDs = append(jobIDs, jobID)
	}
	if len(jobIDs) == 0 {
		return nil, fmt.Errorf("failed to enqueue any file from %s", filename)
	}

	s.logger.Info().
		Str("tracker_id", tracker.ID).
		Str("correlation_id", correlationID).
		Int("jobs", len(jobIDs)).
		Msg("Upload queued for processing")
	return &UploadResult{
		TrackerID:     tracker.ID,
		CorrelationID: correlationID,
		TotalFiles:    len(entries),
		Queued:        true,
		JobIDs:        jobIDs,
	}, nil
}

// processInline runs the pipeline on a background goroutine so the upload
// request returns immediately, same as the queued path. Failures surface
// only through the tracker.
func (s *Service) processInline(ctx context.Context, entries []models.ArchiveEntry, filename string) (*UploadResult, error) {
	correlationID := common.NewCorrelationID()
	tracker := &models.ProcessTracker{
		Status:           models.TrackerStatusInitiated,
		TotalFiles:       len(entries),
		Message:          fmt.Sprintf("Processing %d file(s) from %s", len(entries), filename),
		UploadedFilename: filename,
		CorrelationID:    correlationID,
	}
	if err := s.trackers.Create(ctx, tracker); err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), inlineTimeout)
		defer cancel()

		for _, entry := range entries {
			if err := s.pipeline.ProcessFile(runCtx, entry.Data, entry.Filename, tracker.ID, workers.NoopLease{}); err != nil {
				s.logger.Warn().Err(err).
					Str("tracker_id", tracker.ID).
					Str("filename", entry.Filename).
					Msg("Inline resume processing failed")
				s.pipeline.RecordFailure(runCtx, tracker.ID, fmt.Sprintf("Failed to process %s: %v", entry.Filename, err))
			}
		}
	}()

	s.logger.Info().
		Str("tracker_id", tracker.ID).
		Str("correlation_id", correlationID).
		Int("files", len(entries)).
		Msg("Upload accepted for inline processing")
	return &UploadResult{
		TrackerID:     tracker.ID,
		CorrelationID: correlationID,
		TotalFiles:    len(entries),
		Queued:        false,
	}, nil
}
