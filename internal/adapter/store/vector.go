package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/docuchat/docuchat/internal/domain"
)

// VectorStore handles pgvector-specific operations on document chunks.
type VectorStore struct {
	store     *PostgresStore
	dimension int
}

// NewVectorStore creates a vector store backed by the given Postgres store.
func NewVectorStore(store *PostgresStore, dimension int) *VectorStore {
	return &VectorStore{store: store, dimension: dimension}
}

// Dimension returns the configured embedding dimension.
func (v *VectorStore) Dimension() int {
	return v.dimension
}

// StoreBatch persists a batch of chunks with their vectors in one transaction.
func (v *VectorStore) StoreBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_id, user_id, document_name, chunk_index, content, token_count, language, vector)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		vectorStr := vectorToString(c.Vector)
		if _, err := stmt.ExecContext(ctx,
			c.DocumentID, c.UserID, c.DocumentName, c.ChunkIndex, c.Content, c.TokenCount, c.Language, vectorStr,
		); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	return tx.Commit()
}

// SearchSimilar performs a cosine similarity search over a user's chunks.
// Results below the similarity threshold are filtered out in SQL.
func (v *VectorStore) SearchSimilar(ctx context.Context, userID string, queryVector []float32, topK int, threshold float64) ([]domain.SimilarChunk, error) {
	vectorStr := vectorToString(queryVector)
	query := `SELECT c.id, c.document_id, c.user_id, c.document_name, c.chunk_index, c.content,
	                 c.token_count, COALESCE(c.language, ''), c.created_at,
	                 1 - (c.vector <=> $1::vector) AS similarity
	          FROM chunks c
	          WHERE c.user_id = $2
	            AND 1 - (c.vector <=> $1::vector) >= $3
	          ORDER BY c.vector <=> $1::vector
	          LIMIT $4`

	rows, err := v.store.db.QueryContext(ctx, query, vectorStr, userID, threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var results []domain.SimilarChunk
	for rows.Next() {
		var sc domain.SimilarChunk
		if err := rows.Scan(
			&sc.ID, &sc.DocumentID, &sc.UserID, &sc.DocumentName, &sc.ChunkIndex,
			&sc.Content, &sc.TokenCount, &sc.Language, &sc.CreatedAt, &sc.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan similar: %w", err)
		}
		results = append(results, sc)
	}
	return results, nil
}

// DeleteByDocument deletes all chunk vectors for a document, returning the count.
func (v *VectorStore) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := v.store.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks by document: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteByUser deletes all chunk vectors for a user, returning the count.
func (v *VectorStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := v.store.db.ExecContext(ctx, `DELETE FROM chunks WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks by user: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountVectors returns the total number of stored chunk vectors.
func (v *VectorStore) CountVectors(ctx context.Context) (int64, error) {
	var n int64
	if err := v.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return n, nil
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
