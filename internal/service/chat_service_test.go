package service

import (
	"context"
	"testing"

	"github.com/docuchat/docuchat/internal/domain"
)

// fakeSearcher serves canned hits.
type fakeSearcher struct {
	hits []domain.SimilarChunk
}

func (f *fakeSearcher) SearchSimilar(ctx context.Context, userID string, vec []float32, topK int, threshold float64) ([]domain.SimilarChunk, error) {
	return f.hits, nil
}

// fakeChatStore records inserted messages and session touches.
type fakeChatStore struct {
	messages []domain.Message
	touches  []int
}

func (f *fakeChatStore) InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	f.messages = append(f.messages, *m)
	return m, nil
}

func (f *fakeChatStore) TouchSession(ctx context.Context, id string, delta int) error {
	f.touches = append(f.touches, delta)
	return nil
}

func hit(doc, name, content string, sim float64) domain.SimilarChunk {
	return domain.SimilarChunk{
		Chunk: domain.Chunk{
			DocumentID:   doc,
			DocumentName: name,
			Content:      content,
		},
		Similarity: sim,
	}
}

func TestChatService_QueryWithSession(t *testing.T) {
	ai := &fakeAI{answer: "The payment is due in advance."}
	searcher := &fakeSearcher{hits: []domain.SimilarChunk{
		hit("d-1", "contract.pdf", "Payments are made in advance.", 0.82),
	}}
	store := &fakeChatStore{}
	svc := NewChatService(ai, searcher, store)

	session := &domain.Session{ID: "s-1", UserID: "u-1"}
	result, err := svc.QueryWithSession(context.Background(), session, "When is the payment due?", 5, 0.3, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Answer != "The payment is due in advance." {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if result.Language != "en" {
		t.Fatalf("expected language en, got %q", result.Language)
	}
	if len(result.Sources) != 1 || result.Sources[0].DocumentName != "contract.pdf" {
		t.Fatalf("unexpected sources: %+v", result.Sources)
	}

	// Both turns persisted: user first, then assistant with sources.
	if len(store.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(store.messages))
	}
	if store.messages[0].Role != domain.RoleMessageUser || store.messages[0].Content != "When is the payment due?" {
		t.Fatalf("unexpected user message: %+v", store.messages[0])
	}
	if store.messages[1].Role != domain.RoleMessageAssistant || len(store.messages[1].Sources) != 1 {
		t.Fatalf("unexpected assistant message: %+v", store.messages[1])
	}

	if len(store.touches) != 1 || store.touches[0] != 2 {
		t.Fatalf("expected one touch of +2, got %v", store.touches)
	}
}

func TestChatService_NoResultsCannedReply(t *testing.T) {
	svc := NewChatService(&fakeAI{answer: "should not be used"}, &fakeSearcher{}, &fakeChatStore{})

	answer, language, sources, err := svc.Answer(context.Background(), "u-1", "¿Dónde está el contrato?", 5, 0.3, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if language != "es" {
		t.Fatalf("expected es, got %q", language)
	}
	if answer != noResultsES {
		t.Fatalf("expected Spanish canned reply, got %q", answer)
	}
	if sources != nil {
		t.Fatalf("expected no sources, got %+v", sources)
	}
}

func TestChatService_NoResultsStillPersistsSession(t *testing.T) {
	store := &fakeChatStore{}
	svc := NewChatService(&fakeAI{}, &fakeSearcher{}, store)

	session := &domain.Session{ID: "s-2", UserID: "u-1"}
	result, err := svc.QueryWithSession(context.Background(), session, "anything at all here", 5, 0.3, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != noResultsEN {
		t.Fatalf("expected canned reply, got %q", result.Answer)
	}
	if len(store.messages) != 2 {
		t.Fatalf("expected both turns persisted, got %d messages", len(store.messages))
	}
	if len(result.Sources) != 0 {
		t.Fatalf("expected empty sources, got %+v", result.Sources)
	}
}

func TestChatService_AnswerStream(t *testing.T) {
	ai := &fakeAI{answer: "Streamed answer."}
	searcher := &fakeSearcher{hits: []domain.SimilarChunk{
		hit("d-1", "contract.pdf", "Payments are made in advance.", 0.82),
	}}
	svc := NewChatService(ai, searcher, &fakeChatStore{})

	tokens, language, chunks, err := svc.AnswerStream(context.Background(), "u-1", "When is the payment due?", 5, 0.3, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if language != "en" {
		t.Fatalf("expected language en, got %q", language)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}

	var answer string
	for token := range tokens {
		answer += token
	}
	if answer != "Streamed answer." {
		t.Fatalf("unexpected streamed answer: %q", answer)
	}
}

func TestChatService_AnswerStreamNoResults(t *testing.T) {
	svc := NewChatService(&fakeAI{answer: "should not be used"}, &fakeSearcher{}, &fakeChatStore{})

	tokens, language, chunks, err := svc.AnswerStream(context.Background(), "u-1", "¿Dónde está el contrato?", 5, 0.3, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if language != "es" || chunks != nil {
		t.Fatalf("expected es with no chunks, got lang=%q chunks=%+v", language, chunks)
	}

	var answer string
	for token := range tokens {
		answer += token
	}
	if answer != noResultsES {
		t.Fatalf("expected Spanish canned reply, got %q", answer)
	}
}

func TestChatService_SaveExchange(t *testing.T) {
	store := &fakeChatStore{}
	svc := NewChatService(&fakeAI{}, &fakeSearcher{}, store)

	session := &domain.Session{ID: "s-3", UserID: "u-1"}
	sources := []domain.Source{{DocumentName: "contract.pdf"}}
	if err := svc.SaveExchange(context.Background(), session, "question", "answer", "en", sources); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(store.messages))
	}
	if store.messages[0].Role != domain.RoleMessageUser || store.messages[1].Role != domain.RoleMessageAssistant {
		t.Fatalf("unexpected roles: %+v", store.messages)
	}
	if len(store.messages[1].Sources) != 1 {
		t.Fatalf("assistant message missing sources: %+v", store.messages[1])
	}
	if len(store.touches) != 1 || store.touches[0] != 2 {
		t.Fatalf("expected one touch of +2, got %v", store.touches)
	}
}

func TestChatService_ExplicitLanguageOverridesDetection(t *testing.T) {
	svc := NewChatService(&fakeAI{}, &fakeSearcher{}, &fakeChatStore{})

	answer, language, _, err := svc.Answer(context.Background(), "u-1", "What is the total?", 5, 0.3, "es")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if language != "es" || answer != noResultsES {
		t.Fatalf("expected forced Spanish, got lang=%q answer=%q", language, answer)
	}
}
