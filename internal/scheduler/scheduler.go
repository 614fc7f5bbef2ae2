package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// failureRecorder is implemented by workers that report terminal file
// failures to a progress tracker.
type failureRecorder interface {
	RecordFailure(ctx context.Context, trackerID, message string)
}

// Scheduler drives the durable queue: a poll loop claims due PENDING jobs
// and dispatches them to a bounded worker pool, a sweep ticker recovers jobs
// whose worker died, and a cron entry purges old terminal rows. One
// scheduler instance runs per process; claim atomicity makes multiple
// processes safe.
type Scheduler struct {
	queue    interfaces.QueueStorage
	workers  map[models.JobType]interfaces.JobWorker
	schedCfg *common.SchedulerConfig
	queueCfg *common.QueueConfig
	logger   arbor.ILogger

	workerID string
	cron     *cron.Cron
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	pool     chan struct{}
	running  bool
	mu       sync.Mutex

	// Rolling counters since the last metrics flush
	processed int64
	failed    int64
	retried   int64
	cancelled int64
}

// New creates a scheduler with no workers registered.
func New(queue interfaces.QueueStorage, schedCfg *common.SchedulerConfig, queueCfg *common.QueueConfig, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		queue:    queue,
		workers:  make(map[models.JobType]interfaces.JobWorker),
		schedCfg: schedCfg,
		queueCfg: queueCfg,
		logger:   logger,
		workerID: common.NewWorkerID(),
	}
}

// Register adds a worker for its job type. Not safe after Start.
func (s *Scheduler) Register(worker interfaces.JobWorker) {
	s.workers[worker.JobType()] = worker
}

// Start launches the poll loop, the stale sweep, the metrics flush, and the
// cleanup cron. Returns an error when the cron expression cannot be parsed;
// config validation makes that unreachable in practice.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	poolSize := s.schedCfg.WorkerCount
	if poolSize <= 0 {
		poolSize = 5
	}
	s.pool = make(chan struct{}, poolSize)

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedCfg.CleanupCron, func() { s.runCleanup(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid cleanup cron %q: %w", s.schedCfg.CleanupCron, err)
	}
	s.cron.Start()

	s.wg.Add(3)
	go s.pollLoop(ctx)
	go s.sweepLoop(ctx)
	go s.metricsLoop(ctx)

	s.running = true
	s.logger.Info().
		Str("worker_id", s.workerID).
		Str("poll_interval", s.schedCfg.PollIntervalDuration().String()).
		Int("batch_size", s.batchSize()).
		Int("worker_pool", poolSize).
		Msg("Scheduler started")
	return nil
}

// Stop halts pickup and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()
	s.wg.Wait()
	s.logger.Info().Str("worker_id", s.workerID).Msg("Scheduler stopped")
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.schedCfg.PollIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pickup(ctx)
		}
	}
}

// pickup claims at most as many jobs as the pool has free slots, so a
// claimed row never sits unheartbeated waiting for capacity. A saturated
// pool claims nothing this tick.
func (s *Scheduler) pickup(ctx context.Context) {
	free := cap(s.pool) - len(s.pool)
	if free <= 0 {
		return
	}
	limit := s.batchSize()
	if limit > free {
		limit = free
	}

	jobs, err := s.queue.ClaimBatch(ctx, s.workerID, limit, time.Now().UTC())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Claim batch failed")
		return
	}

	for _, job := range jobs {
		// Never blocks: only this loop fills the pool and the claim was
		// capped at the free slots observed above
		s.pool <- struct{}{}
		s.wg.Add(1)
		go func(job *models.QueueJob) {
			defer s.wg.Done()
			defer func() { <-s.pool }()
			s.process(ctx, job)
		}(job)
	}
}

func (s *Scheduler) process(ctx context.Context, job *models.QueueJob) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("worker panic: %v", r)
			s.logger.Error().Str("job_id", job.ID).Str("reason", reason).Msg("Job worker panicked")
			s.fail(ctx, job, errors.New(reason), string(debug.Stack()))
		}
	}()

	worker, ok := s.workers[job.JobType]
	if !ok {
		s.terminal(ctx, job, nil, fmt.Sprintf("no worker registered for job type %s", job.JobType), "")
		return
	}

	if err := worker.Validate(job); err != nil {
		s.terminal(ctx, job, worker, err.Error(), "")
		return
	}

	lease := &queueLease{queue: s.queue, jobID: job.ID, logger: s.logger}
	err := worker.Execute(ctx, job, lease)
	now := time.Now().UTC()

	switch {
	case err == nil:
		if err := s.queue.Complete(ctx, job.ID, now); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark job completed")
			return
		}
		atomic.AddInt64(&s.processed, 1)

	case errors.Is(err, common.ErrJobCancelled):
		if err := s.queue.MarkCancelled(ctx, job.ID, now); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark job cancelled")
		}
		if recorder, ok := worker.(failureRecorder); ok {
			recorder.RecordFailure(ctx, job.TrackerID(), fmt.Sprintf("Cancelled while processing %s", job.Filename))
		}
		atomic.AddInt64(&s.cancelled, 1)
		s.logger.Info().Str("job_id", job.ID).Msg("Job cancelled by request")

	default:
		s.fail(ctx, job, err, "")
	}
}

// fail applies the retry decision: retryable errors with budget remaining
// reschedule, everything else dead-letters. Format errors are terminal for
// their attempt but still consume retry budget, so they reschedule until
// the budget runs out.
func (s *Scheduler) fail(ctx context.Context, job *models.QueueJob, execErr error, stack string) {
	reschedule := common.IsRetryable(execErr) || errors.Is(execErr, common.ErrLLMFormat)
	if reschedule && job.RetriesRemaining() {
		delay := s.retryDelay(job.RetryCount)
		if err := s.queue.FailRetryable(ctx, job.ID, execErr.Error(), time.Now().UTC().Add(delay)); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to reschedule job")
			return
		}
		atomic.AddInt64(&s.retried, 1)
		return
	}
	s.terminal(ctx, job, s.workers[job.JobType], execErr.Error(), stack)
}

func (s *Scheduler) terminal(ctx context.Context, job *models.QueueJob, worker interfaces.JobWorker, reason, stack string) {
	if err := s.queue.FailTerminal(ctx, job.ID, reason, stack, time.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to dead-letter job")
	}
	if recorder, ok := worker.(failureRecorder); ok {
		recorder.RecordFailure(ctx, job.TrackerID(), fmt.Sprintf("Failed to process %s: %s", job.Filename, reason))
	}
	atomic.AddInt64(&s.failed, 1)
}

// retryDelay applies optional exponential backoff on top of the base delay.
func (s *Scheduler) retryDelay(retryCount int) time.Duration {
	base := s.queueCfg.RetryDelayDuration()
	if !s.queueCfg.ExponentialBackoff {
		return base
	}
	delay := base
	for i := 0; i < retryCount && delay < 24*time.Hour; i++ {
		delay *= 2
	}
	return delay
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.schedCfg.StaleSweepIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recovered, err := s.queue.SweepStale(ctx,
				s.schedCfg.StaleThresholdDuration(),
				s.queueCfg.RetryDelayDuration(),
				time.Now().UTC())
			if err != nil {
				s.logger.Warn().Err(err).Msg("Stale sweep failed")
				continue
			}
			if recovered > 0 {
				s.logger.Info().Int("recovered", recovered).Msg("Stale sweep recovered abandoned jobs")
			}
		}
	}
}

func (s *Scheduler) metricsLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.schedCfg.MetricsIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flushMetrics(ctx)
		}
	}
}

func (s *Scheduler) flushMetrics(ctx context.Context) {
	processed := atomic.SwapInt64(&s.processed, 0)
	failed := atomic.SwapInt64(&s.failed, 0)
	retried := atomic.SwapInt64(&s.retried, 0)
	cancelled := atomic.SwapInt64(&s.cancelled, 0)

	event := s.logger.Info().
		Int64("processed", processed).
		Int64("failed", failed).
		Int64("retried", retried).
		Int64("cancelled", cancelled)

	if stats, err := s.queue.Stats(ctx); err == nil {
		event = event.
			Int64("pending", stats.Pending).
			Int64("processing", stats.Processing).
			Int64("dead_letters", stats.DeadLetters)
	}
	event.Msg("Queue metrics")
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	days := s.schedCfg.RetentionDays
	if days <= 0 {
		days = 30
	}
	deleted, err := s.queue.Cleanup(ctx, time.Duration(days)*24*time.Hour, time.Now().UTC())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled cleanup failed")
		return
	}
	s.logger.Info().Int("deleted", deleted).Msg("Scheduled cleanup completed")
}

func (s *Scheduler) batchSize() int {
	if s.schedCfg.BatchSize > 0 {
		return s.schedCfg.BatchSize
	}
	return 5
}
