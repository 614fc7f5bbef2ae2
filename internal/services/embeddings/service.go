package embeddings

import (
	"context"
	"fmt"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/arbor"
)

// Service chunks resume text, embeds each chunk through the LLM gateway,
// and persists chunk+vector rows.
type Service struct {
	llm     interfaces.LLMService
	storage interfaces.EmbeddingStorage
	config  *common.EmbeddingsConfig
	logger  arbor.ILogger
}

// NewService creates the embedding pipeline
func NewService(llm interfaces.LLMService, storage interfaces.EmbeddingStorage, config *common.EmbeddingsConfig, logger arbor.ILogger) *Service {
	return &Service{
		llm:     llm,
		storage: storage,
		config:  config,
		logger:  logger,
	}
}

// EmbedAndPersist regenerates all embeddings for a candidate's resume text.
// Chunks from any prior attempt are deleted first so a retried job never
// leaves orphan rows. onBatch, when non-nil, runs after each persisted
// batch; workers use it to heartbeat their queue lease.
func (s *Service) EmbedAndPersist(ctx context.Context, candidateID, text string, onBatch func(ctx context.Context) error) (int, error) {
	if err := s.storage.DeleteByCandidate(ctx, candidateID); err != nil {
		return 0, fmt.Errorf("failed to clear prior embeddings: %w", err)
	}

	chunks := Chunk(text, s.config.ChunkSize, s.config.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	batchSize := s.config.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	stored := 0
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := s.llm.EmbedBatch(ctx, batch)
		if err != nil {
			return stored, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}

		rows := make([]*models.ResumeEmbedding, len(batch))
		for i, chunkText := range batch {
			rows[i] = &models.ResumeEmbedding{
				CandidateID: candidateID,
				ChunkText:   chunkText,
				Embedding:   vectors[i],
				ChunkIndex:  start + i,
			}
		}
		if err := s.storage.StoreBatch(ctx, rows); err != nil {
			return stored, fmt.Errorf("failed to persist chunks %d-%d: %w", start, end-1, err)
		}
		stored += len(rows)

		if onBatch != nil {
			if err := onBatch(ctx); err != nil {
				s.logger.Warn().Err(err).Str("candidate_id", candidateID).Msg("Batch callback failed")
			}
		}
	}

	s.logger.Debug().
		Str("candidate_id", candidateID).
		Int("chunks", stored).
		Msg("Resume embeddings persisted")
	return stored, nil
}
