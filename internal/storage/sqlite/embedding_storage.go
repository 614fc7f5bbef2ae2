package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
)

// EmbeddingStorage implements SQLite storage for resume chunk vectors.
// Vectors are stored as float32 BLOBs; similarity search is a cosine scan
// ranked in memory.
type EmbeddingStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewEmbeddingStorage creates a new embedding storage instance
func NewEmbeddingStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.EmbeddingStorage {
	return &EmbeddingStorage{
		db:     db,
		logger: logger,
	}
}

// StoreBatch persists a batch of chunk embeddings in one transaction.
func (s *EmbeddingStorage) StoreBatch(ctx context.Context, embeddings []*models.ResumeEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return common.WrapStorageErr("begin store embeddings", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO resume_embeddings (id, candidate_id, chunk_text, embedding, dimension, chunk_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(candidate_id, chunk_index) DO UPDATE SET
			chunk_text = excluded.chunk_text,
			embedding = excluded.embedding,
			dimension = excluded.dimension
	`)
	if err != nil {
		return common.WrapStorageErr("prepare store embeddings", err)
	}
	defer stmt.Close()

	now := timeNow().Unix()
	for _, emb := range embeddings {
		if emb.ID == "" {
			emb.ID = common.NewEmbeddingID()
		}
		if _, err := stmt.ExecContext(ctx,
			emb.ID,
			emb.CandidateID,
			emb.ChunkText,
			encodeVector(emb.Embedding),
			len(emb.Embedding),
			emb.ChunkIndex,
			now,
		); err != nil {
			return common.WrapStorageErr("insert embedding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return common.WrapStorageErr("commit store embeddings", err)
	}

	s.logger.Debug().
		Str("candidate_id", embeddings[0].CandidateID).
		Int("count", len(embeddings)).
		Msg("Embedding batch stored")
	return nil
}

// DeleteByCandidate removes all chunks for a candidate.
func (s *EmbeddingStorage) DeleteByCandidate(ctx context.Context, candidateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx,
		`DELETE FROM resume_embeddings WHERE candidate_id = ?`, candidateID)
	if err != nil {
		return common.WrapStorageErr("delete embeddings", err)
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		s.logger.Debug().Str("candidate_id", candidateID).Int64("deleted", affected).Msg("Orphan embeddings removed")
	}
	return nil
}

// GetByCandidate returns the candidate's chunks ordered by chunk index.
func (s *EmbeddingStorage) GetByCandidate(ctx context.Context, candidateID string) ([]*models.ResumeEmbedding, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, candidate_id, chunk_text, embedding, dimension, chunk_index, created_at
		FROM resume_embeddings
		WHERE candidate_id = ?
		ORDER BY chunk_index ASC
	`, candidateID)
	if err != nil {
		return nil, common.WrapStorageErr("get embeddings", err)
	}
	defer rows.Close()

	return scanEmbeddings(rows)
}

// CountByCandidate returns how many chunks a candidate has.
func (s *EmbeddingStorage) CountByCandidate(ctx context.Context, candidateID string) (int, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM resume_embeddings WHERE candidate_id = ?`, candidateID).Scan(&count)
	if err != nil {
		return 0, common.WrapStorageErr("count embeddings", err)
	}
	return count, nil
}

// SearchSimilar scans stored chunks and ranks them by cosine similarity to
// the query vector. Chunks with a different dimension are skipped.
func (s *EmbeddingStorage) SearchSimilar(ctx context.Context, query []float32, limit int) ([]*models.EmbeddingMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, candidate_id, chunk_text, embedding, dimension, chunk_index, created_at
		FROM resume_embeddings
	`)
	if err != nil {
		return nil, common.WrapStorageErr("search embeddings", err)
	}
	defer rows.Close()

	matches := []*models.EmbeddingMatch{}
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		if len(emb.Embedding) != len(query) {
			continue
		}
		matches = append(matches, &models.EmbeddingMatch{
			Embedding:  emb,
			Similarity: cosineSimilarity(query, emb.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapStorageErr("search embeddings", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func scanEmbeddings(rows *sql.Rows) ([]*models.ResumeEmbedding, error) {
	embeddings := []*models.ResumeEmbedding{}
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, emb)
	}
	return embeddings, rows.Err()
}

func scanEmbedding(row rowScanner) (*models.ResumeEmbedding, error) {
	var emb models.ResumeEmbedding
	var blob []byte
	var dimension int
	var createdAt int64

	err := row.Scan(&emb.ID, &emb.CandidateID, &emb.ChunkText, &blob, &dimension, &emb.ChunkIndex, &createdAt)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapStorageErr("scan embedding", err)
	}

	vec, err := decodeVector(blob, dimension)
	if err != nil {
		return nil, common.WrapStorageErr("decode embedding", err)
	}
	emb.Embedding = vec
	emb.CreatedAt = unixToTime(createdAt)
	return &emb, nil
}
