package audit

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// Service persists match run audits asynchronously. Writes are best-effort:
// a failed audit write logs a warning and is otherwise dropped, never
// surfacing to the match caller. The finish write for an audit id waits for
// its start write to land, so Finalize never races ahead of Create.
type Service struct {
	storage interfaces.AuditStorage
	config  *common.AuditConfig
	logger  arbor.ILogger

	mu      sync.Mutex
	started map[string]chan struct{}
}

// NewService creates the audit recorder
func NewService(storage interfaces.AuditStorage, config *common.AuditConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		config:  config,
		logger:  logger,
		started: make(map[string]chan struct{}),
	}
}

const writeTimeout = 10 * time.Second

// RecordStart appends the RUNNING audit row in the background.
func (s *Service) RecordStart(audit *models.MatchAudit) {
	snapshot := *audit

	done := make(chan struct{})
	s.mu.Lock()
	s.started[snapshot.ID] = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := s.storage.Create(ctx, &snapshot); err != nil {
			s.logger.Warn().Err(err).Str("audit_id", snapshot.ID).Msg("Failed to persist audit start")
		}
	}()
}

// RecordFinish patches the audit row with the run outcome in the background.
func (s *Service) RecordFinish(audit *models.MatchAudit) {
	snapshot := *audit

	s.mu.Lock()
	done := s.started[snapshot.ID]
	delete(s.started, snapshot.ID)
	s.mu.Unlock()

	go func() {
		// The row must exist before it can be finalized
		if done != nil {
			select {
			case <-done:
			case <-time.After(writeTimeout):
				s.logger.Warn().Str("audit_id", snapshot.ID).Msg("Timed out waiting for audit start write")
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := s.storage.Finalize(ctx, &snapshot); err != nil {
			s.logger.Warn().Err(err).Str("audit_id", snapshot.ID).Msg("Failed to persist audit outcome")
		}
	}()
}

// EstimatedTokens applies the per-candidate token heuristic, used when the
// LLM does not report usage.
func (s *Service) EstimatedTokens(candidateCount int) int {
	perCandidate := s.config.EstimatedTokensPerCandidate
	if perCandidate <= 0 {
		perCandidate = 1500
	}
	return candidateCount * perCandidate
}
