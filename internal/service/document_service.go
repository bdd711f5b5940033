package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docuchat/docuchat/internal/adapter/extract"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/port"
)

// ChunkWriter persists vectorized chunks.
type ChunkWriter interface {
	StoreBatch(ctx context.Context, chunks []domain.Chunk) error
}

// DocumentService runs the upload pipeline: extract text, detect language,
// chunk, embed, and store.
type DocumentService struct {
	ai           port.AIProvider
	vectors      ChunkWriter
	chunkSize    int
	chunkOverlap int
	batchSize    int
}

// NewDocumentService creates a new document processing service.
func NewDocumentService(ai port.AIProvider, vectors ChunkWriter, chunkSize, chunkOverlap, batchSize int) *DocumentService {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &DocumentService{
		ai:           ai,
		vectors:      vectors,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		batchSize:    batchSize,
	}
}

// ProcessResult summarizes a completed pipeline run.
type ProcessResult struct {
	Language    string
	TotalChunks int
	TotalTokens int
}

// Process runs the full pipeline for one uploaded document. The progress
// callback receives (chunks stored so far, total chunks) after every batch
// and may be nil.
func (s *DocumentService) Process(ctx context.Context, doc *domain.Document, raw []byte, progress func(done, total int)) (*ProcessResult, error) {
	text, err := extract.Text(doc.Filename, raw)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, port.ErrEmptyDocument
	}

	language := detectLanguage(text)
	parts := chunkText(text, s.chunkSize, s.chunkOverlap)
	if len(parts) == 0 {
		return nil, port.ErrEmptyDocument
	}

	slog.Info("processing document",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"language", language,
		"chunks", len(parts),
	)

	totalTokens := 0
	done := 0

	for start := 0; start < len(parts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(parts) {
			end = len(parts)
		}
		batch := parts[start:end]

		vectors, err := s.ai.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(batch))
		}

		chunks := make([]domain.Chunk, len(batch))
		for i, content := range batch {
			tokens := countWords(content)
			totalTokens += tokens
			chunks[i] = domain.Chunk{
				DocumentID:   doc.ID,
				UserID:       doc.UserID,
				DocumentName: doc.Filename,
				ChunkIndex:   start + i,
				Content:      content,
				TokenCount:   tokens,
				Language:     language,
				Vector:       vectors[i],
			}
		}

		if err := s.vectors.StoreBatch(ctx, chunks); err != nil {
			return nil, fmt.Errorf("store chunks: %w", err)
		}

		done += len(batch)
		if progress != nil {
			progress(done, len(parts))
		}
	}

	return &ProcessResult{
		Language:    language,
		TotalChunks: len(parts),
		TotalTokens: totalTokens,
	}, nil
}
