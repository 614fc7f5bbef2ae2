package workers

import (
	"context"
	"time"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// CleanupWorker handles CLEANUP jobs by deleting terminal queue rows older
// than the retention window. The scheduler normally runs cleanup on a cron,
// but a queued job lets an operator trigger it on demand.
type CleanupWorker struct {
	queue     interfaces.QueueStorage
	retention time.Duration
	logger    arbor.ILogger
}

var _ interfaces.JobWorker = (*CleanupWorker)(nil)

// NewCleanupWorker creates the queue cleanup worker
func NewCleanupWorker(queue interfaces.QueueStorage, schedCfg *common.SchedulerConfig, logger arbor.ILogger) *CleanupWorker {
	days := schedCfg.RetentionDays
	if days <= 0 {
		days = 30
	}
	return &CleanupWorker{
		queue:     queue,
		retention: time.Duration(days) * 24 * time.Hour,
		logger:    logger,
	}
}

func (w *CleanupWorker) JobType() models.JobType {
	return models.JobTypeCleanup
}

func (w *CleanupWorker) Validate(job *models.QueueJob) error { return nil }

func (w *CleanupWorker) Execute(ctx context.Context, job *models.QueueJob, lease interfaces.JobLease) error {
	deleted, err := w.queue.Cleanup(ctx, w.retention, timeNow())
	if err != nil {
		return err
	}
	w.logger.Info().Int("deleted", deleted).Msg("Cleanup job removed old terminal rows")
	return nil
}

func timeNow() time.Time {
	return time.Now().UTC()
}
