package domain

import "time"

// Chunk is a vectorized slice of an uploaded document stored in pgvector.
type Chunk struct {
	ID           string    `json:"id"            db:"id"`
	DocumentID   string    `json:"document_id"   db:"document_id"`
	UserID       string    `json:"user_id"       db:"user_id"`
	DocumentName string    `json:"document_name" db:"document_name"`
	ChunkIndex   int       `json:"chunk_index"   db:"chunk_index"`
	Content      string    `json:"text_chunk"    db:"content"`
	TokenCount   int       `json:"token_count"   db:"token_count"`
	Language     string    `json:"language"      db:"language"`
	Vector       []float32 `json:"-"             db:"vector"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
}

// SimilarChunk is returned by semantic search, including similarity score.
type SimilarChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// Source converts a search hit into a citable message source.
func (c SimilarChunk) Source() Source {
	return Source{
		DocumentID:   c.DocumentID,
		DocumentName: c.DocumentName,
		ChunkIndex:   c.ChunkIndex,
		TextChunk:    c.Content,
		Similarity:   c.Similarity,
	}
}
