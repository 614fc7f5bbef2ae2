package scheduler

import (
	"context"
	"time"

	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// queueLease binds a claimed job to the queue row backing it. Heartbeats
// refresh the lease; Cancelled reads the cooperative cancel flag.
type queueLease struct {
	queue  interfaces.QueueStorage
	jobID  string
	logger arbor.ILogger
}

var _ interfaces.JobLease = (*queueLease)(nil)

func (l *queueLease) Heartbeat(ctx context.Context) error {
	return l.queue.Heartbeat(ctx, l.jobID, time.Now().UTC())
}

func (l *queueLease) Cancelled(ctx context.Context) bool {
	cancelled, err := l.queue.IsCancelled(ctx, l.jobID)
	if err != nil {
		l.logger.Warn().Err(err).Str("job_id", l.jobID).Msg("Cancel check failed")
		return false
	}
	return cancelled
}
