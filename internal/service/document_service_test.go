package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/port"
)

// fakeAI returns deterministic unit vectors and canned chat replies.
type fakeAI struct {
	embedCalls int
	answer     string
	embedErr   error
}

func (f *fakeAI) ModelName() string { return "fake" }

func (f *fakeAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	f.embedCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeAI) Chat(ctx context.Context, system, user string, chunks []string) (string, error) {
	return f.answer, nil
}

func (f *fakeAI) ChatStream(ctx context.Context, system, user string, chunks []string) (<-chan string, error) {
	ch := make(chan string, 1)
	ch <- f.answer
	close(ch)
	return ch, nil
}

// memChunkWriter collects stored chunks in memory.
type memChunkWriter struct {
	chunks []domain.Chunk
}

func (m *memChunkWriter) StoreBatch(ctx context.Context, chunks []domain.Chunk) error {
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func TestDocumentService_Process(t *testing.T) {
	ai := &fakeAI{}
	writer := &memChunkWriter{}
	svc := NewDocumentService(ai, writer, 10, 2, 4)

	doc := &domain.Document{ID: "d-1", UserID: "u-1", Filename: "report.txt"}
	text := strings.Repeat("alpha beta gamma delta epsilon ", 10) // 50 words

	var lastDone, lastTotal int
	result, err := svc.Process(context.Background(), doc, []byte(text), func(done, total int) {
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 50 words, windows of 10 with overlap 2 → step 8 → 6 chunks
	if result.TotalChunks != 6 {
		t.Fatalf("expected 6 chunks, got %d", result.TotalChunks)
	}
	if len(writer.chunks) != 6 {
		t.Fatalf("expected 6 stored chunks, got %d", len(writer.chunks))
	}
	if lastDone != lastTotal || lastTotal != 6 {
		t.Fatalf("progress callback ended at %d/%d, want 6/6", lastDone, lastTotal)
	}
	if result.Language != "en" {
		t.Fatalf("expected language en, got %q", result.Language)
	}

	for i, c := range writer.chunks {
		if c.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if c.DocumentID != "d-1" || c.UserID != "u-1" || c.DocumentName != "report.txt" {
			t.Fatalf("chunk %d missing document linkage: %+v", i, c)
		}
		if len(c.Vector) == 0 {
			t.Fatalf("chunk %d has no vector", i)
		}
	}

	// 50 words, batch size 4 over 6 chunks → 2 embed calls
	if ai.embedCalls != 2 {
		t.Fatalf("expected 2 embed calls, got %d", ai.embedCalls)
	}
}

func TestDocumentService_EmptyDocument(t *testing.T) {
	svc := NewDocumentService(&fakeAI{}, &memChunkWriter{}, 500, 50, 32)
	doc := &domain.Document{ID: "d-2", UserID: "u-1", Filename: "empty.txt"}

	_, err := svc.Process(context.Background(), doc, []byte("   \n "), nil)
	if !errors.Is(err, port.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestDocumentService_EmbedFailureStopsPipeline(t *testing.T) {
	writer := &memChunkWriter{}
	svc := NewDocumentService(&fakeAI{embedErr: errors.New("boom")}, writer, 10, 0, 4)
	doc := &domain.Document{ID: "d-3", UserID: "u-1", Filename: "doc.txt"}

	_, err := svc.Process(context.Background(), doc, []byte(strings.Repeat("word ", 30)), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(writer.chunks) != 0 {
		t.Fatalf("expected no chunks stored after embed failure, got %d", len(writer.chunks))
	}
}
