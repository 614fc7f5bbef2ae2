package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

type routerParser struct {
	format  models.FileFormat
	entries []models.ArchiveEntry
	err     error
}

func (p *routerParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	return "", nil
}

func (p *routerParser) DetectFormat(data []byte) models.FileFormat { return p.format }

func (p *routerParser) ExpandArchive(ctx context.Context, data []byte) ([]models.ArchiveEntry, error) {
	return p.entries, p.err
}

type routerTrackerStore struct {
	mu       sync.Mutex
	trackers map[string]*models.ProcessTracker
}

func newRouterTrackerStore() *routerTrackerStore {
	return &routerTrackerStore{trackers: map[string]*models.ProcessTracker{}}
}

func (s *routerTrackerStore) Create(ctx context.Context, tracker *models.ProcessTracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tracker.ID == "" {
		tracker.ID = common.NewTrackerID()
	}
	copied := *tracker
	s.trackers[tracker.ID] = &copied
	return nil
}

func (s *routerTrackerStore) Get(ctx context.Context, id string) (*models.ProcessTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trackers[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, common.ErrNotFound
}

func (s *routerTrackerStore) List(ctx context.Context, limit int) ([]*models.ProcessTracker, error) {
	return nil, nil
}

func (s *routerTrackerStore) UpdateStatus(ctx context.Context, id string, status models.TrackerStatus, message string) error {
	return nil
}

func (s *routerTrackerStore) RecordFileOutcome(ctx context.Context, id string, succeeded bool, message string, now time.Time) (*models.ProcessTracker, error) {
	return &models.ProcessTracker{ID: id}, nil
}

// routerQueue implements only what the router touches.
type routerQueue struct {
	mu      sync.Mutex
	jobs    []*models.QueueJob
	pending int64
}

func (q *routerQueue) Create(ctx context.Context, job *models.QueueJob) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.ID == "" {
		job.ID = common.NewQueueJobID()
	}
	q.jobs = append(q.jobs, job)
	return job.ID, nil
}

func (q *routerQueue) CountPending(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending, nil
}

func (q *routerQueue) ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]*models.QueueJob, error) {
	panic("not used")
}
func (q *routerQueue) Heartbeat(ctx context.Context, jobID string, now time.Time) error {
	panic("not used")
}
func (q *routerQueue) Complete(ctx context.Context, jobID string, now time.Time) error {
	panic("not used")
}
func (q *routerQueue) FailRetryable(ctx context.Context, jobID string, reason string, scheduledFor time.Time) error {
	panic("not used")
}
func (q *routerQueue) FailTerminal(ctx context.Context, jobID string, reason string, stackTrace string, now time.Time) error {
	panic("not used")
}
func (q *routerQueue) Cancel(ctx context.Context, jobID string, now time.Time) error {
	panic("not used")
}
func (q *routerQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
	panic("not used")
}
func (q *routerQueue) MarkCancelled(ctx context.Context, jobID string, now time.Time) error {
	panic("not used")
}
func (q *routerQueue) SweepStale(ctx context.Context, staleThreshold time.Duration, retryDelay time.Duration, now time.Time) (int, error) {
	panic("not used")
}
func (q *routerQueue) Cleanup(ctx context.Context, retention time.Duration, now time.Time) (int, error) {
	panic("not used")
}
func (q *routerQueue) Get(ctx context.Context, jobID string) (*models.QueueJob, error) {
	panic("not used")
}
func (q *routerQueue) Stats(ctx context.Context) (*models.QueueStats, error) { panic("not used") }
func (q *routerQueue) ListDeadLetters(ctx context.Context, limit int) ([]*models.DeadLetterJob, error) {
	panic("not used")
}
func (q *routerQueue) ResolveDeadLetter(ctx context.Context, id string) error { panic("not used") }

type fakePipeline struct {
	mu        sync.Mutex
	processed []string
	failures  []string
	err       error
}

func (p *fakePipeline) ProcessFile(ctx context.Context, data []byte, filename, trackerID string, lease interfaces.JobLease) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, filename)
	return p.err
}

func (p *fakePipeline) RecordFailure(ctx context.Context, trackerID, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, message)
}

func (p *fakePipeline) processedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func newTestService(parser *routerParser, queue *routerQueue, pipeline *fakePipeline, schedulerEnabled bool) (*Service, *routerTrackerStore) {
	trackers := newRouterTrackerStore()
	svc := NewService(
		parser,
		trackers,
		queue,
		pipeline,
		&common.SchedulerConfig{Enabled: schedulerEnabled},
		&common.QueueConfig{MaxRetries: 3, MaxPending: 1000},
		&common.UploadConfig{AllowedExtensions: []string{".pdf", ".doc", ".docx", ".zip"}, MaxFileSizeMB: 1},
		arbor.NewLogger(),
	)
	return svc, trackers
}

func TestUpload_RejectsEmptyFile(t *testing.T) {
	svc, _ := newTestService(&routerParser{format: models.FormatPDF}, &routerQueue{}, &fakePipeline{}, true)

	_, err := svc.Upload(context.Background(), nil, "empty.pdf")
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	svc, _ := newTestService(&routerParser{format: models.FormatPDF}, &routerQueue{}, &fakePipeline{}, true)

	big := make([]byte, 2*1024*1024) // Limit is 1MB in the test config
	_, err := svc.Upload(context.Background(), big, "big.pdf")
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "upload limit")
}

func TestUpload_RejectsUnknownExtension(t *testing.T) {
	svc, _ := newTestService(&routerParser{format: models.FormatPDF}, &routerQueue{}, &fakePipeline{}, true)

	_, err := svc.Upload(context.Background(), []byte("data"), "resume.exe")
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestUpload_QueuesSingleFile(t *testing.T) {
	queue := &routerQueue{}
	svc, trackers := newTestService(&routerParser{format: models.FormatPDF}, queue, &fakePipeline{}, true)

	result, err := svc.Upload(context.Background(), []byte("pdf bytes"), "jane.pdf")
	require.NoError(t, err)

	assert.True(t, result.Queued)
	assert.Equal(t, 1, result.TotalFiles)
	require.Len(t, result.JobIDs, 1)

	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, models.JobTypeResumeProcessing, job.JobType)
	assert.Equal(t, "jane.pdf", job.Filename)
	assert.Equal(t, []byte("pdf bytes"), job.FileData)
	assert.Equal(t, 3, job.MaxRetries)
	assert.Equal(t, result.TrackerID, job.GetStringMetadata("tracker_id"))
	assert.Equal(t, result.CorrelationID, job.CorrelationID)

	tracker, err := trackers.Get(context.Background(), result.TrackerID)
	require.NoError(t, err)
	assert.Equal(t, 1, tracker.TotalFiles)
	assert.Equal(t, models.TrackerStatusInitiated, tracker.Status)
	assert.Equal(t, "jane.pdf", tracker.UploadedFilename)
}

func TestUpload_ExpandsArchive(t *testing.T) {
	parser := &routerParser{
		format: models.FormatZIP,
		entries: []models.ArchiveEntry{
			{Filename: "a.pdf", Data: []byte("a")},
			{Filename: "b.docx", Data: []byte("b")},
			{Filename: "c.pdf", Data: []byte("c")},
		},
	}
	queue := &routerQueue{}
	svc, trackers := newTestService(parser, queue, &fakePipeline{}, true)

	result, err := svc.Upload(context.Background(), []byte("zip bytes"), "resumes.zip")
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalFiles)
	require.Len(t, queue.jobs, 3)
	assert.Equal(t, "a.pdf", queue.jobs[0].Filename)

	// Every job reports to the same tracker and shares the correlation id
	for _, job := range queue.jobs {
		assert.Equal(t, result.TrackerID, job.GetStringMetadata("tracker_id"))
		assert.Equal(t, result.CorrelationID, job.CorrelationID)
	}

	tracker, err := trackers.Get(context.Background(), result.TrackerID)
	require.NoError(t, err)
	assert.Equal(t, 3, tracker.TotalFiles)
}

func TestUpload_RejectsEmptyArchive(t *testing.T) {
	parser := &routerParser{format: models.FormatZIP, entries: nil}
	svc, _ := newTestService(parser, &routerQueue{}, &fakePipeline{}, true)

	_, err := svc.Upload(context.Background(), []byte("zip"), "empty.zip")
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "no supported documents")
}

func TestUpload_CorruptArchive(t *testing.T) {
	parser := &routerParser{format: models.FormatZIP, err: fmt.Errorf("bad central directory")}
	svc, _ := newTestService(parser, &routerQueue{}, &fakePipeline{}, true)

	_, err := svc.Upload(context.Background(), []byte("zip"), "corrupt.zip")
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestUpload_Backpressure(t *testing.T) {
	queue := &routerQueue{pending: 999}
	parser := &routerParser{
		format: models.FormatZIP,
		entries: []models.ArchiveEntry{
			{Filename: "a.pdf", Data: []byte("a")},
			{Filename: "b.pdf", Data: []byte("b")},
		},
	}
	svc, trackers := newTestService(parser, queue, &fakePipeline{}, true)

	// 999 pending + 2 new exceeds the 1000 cap
	_, err := svc.Upload(context.Background(), []byte("zip"), "resumes.zip")
	require.ErrorIs(t, err, common.ErrQueueSaturated)
	assert.Empty(t, queue.jobs)
	assert.Empty(t, trackers.trackers)
}

func TestUpload_InlinePath(t *testing.T) {
	pipeline := &fakePipeline{}
	svc, trackers := newTestService(&routerParser{format: models.FormatPDF}, &routerQueue{}, pipeline, false)

	result, err := svc.Upload(context.Background(), []byte("pdf"), "jane.pdf")
	require.NoError(t, err)

	assert.False(t, result.Queued)
	assert.Empty(t, result.JobIDs)

	require.Eventually(t, func() bool { return pipeline.processedCount() == 1 }, time.Second, 10*time.Millisecond)

	_, err = trackers.Get(context.Background(), result.TrackerID)
	require.NoError(t, err)
}

func TestUpload_InlineArchive(t *testing.T) {
	parser := &routerParser{
		format: models.FormatZIP,
		entries: []models.ArchiveEntry{
			{Filename: "a.pdf", Data: []byte("a")},
			{Filename: "b.pdf", Data: []byte("b")},
		},
	}
	pipeline := &fakePipeline{}
	svc, _ := newTestService(parser, &routerQueue{}, pipeline, false)

	result, err := svc.Upload(context.Background(), []byte("zip"), "resumes.zip")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalFiles)

	require.Eventually(t, func() bool { return pipeline.processedCount() == 2 }, time.Second, 10*time.Millisecond)
}

func TestUpload_InlineFailureRecorded(t *testing.T) {
	pipeline := &fakePipeline{err: fmt.Errorf("parse: %w", common.ErrInvalidInput)}
	svc, _ := newTestService(&routerParser{format: models.FormatPDF}, &routerQueue{}, pipeline, false)

	_, err := svc.Upload(context.Background(), []byte("pdf"), "jane.pdf")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		pipeline.mu.Lock()
		defer pipeline.mu.Unlock()
		return len(pipeline.failures) == 1
	}, time.Second, 10*time.Millisecond)
}
