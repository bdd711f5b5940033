package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/port"
)

// ChunkSearcher performs user-scoped semantic search over stored chunks.
type ChunkSearcher interface {
	SearchSimilar(ctx context.Context, userID string, queryVector []float32, topK int, threshold float64) ([]domain.SimilarChunk, error)
}

// ChatStore persists the conversational side of a query.
type ChatStore interface {
	InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, error)
	TouchSession(ctx context.Context, id string, delta int) error
}

// ChatService answers questions over a user's documents with retrieval-augmented
// generation and records the exchange in the session history.
type ChatService struct {
	ai      port.AIProvider
	vectors ChunkSearcher
	store   ChatStore
}

// NewChatService creates a new chat service.
func NewChatService(ai port.AIProvider, vectors ChunkSearcher, store ChatStore) *ChatService {
	return &ChatService{ai: ai, vectors: vectors, store: store}
}

const systemPromptEN = `You are a helpful assistant that answers questions based on provided documents.
Answer using ONLY information from the context. If the context doesn't contain
relevant information, clearly state that you cannot answer based on the available
documents. Be accurate and concise, and cite the document name when relevant.
Do not make up information that isn't in the context.`

const systemPromptES = `Eres un asistente útil que responde preguntas basándose en documentos proporcionados.
Responde usando SOLO la información del contexto. Si el contexto no contiene
información relevante, indica claramente que no puedes responder basándote en los
documentos disponibles. Sé preciso y conciso, y cita el nombre del documento
cuando sea relevante. No inventes información que no esté en el contexto.`

const noResultsEN = "I'm sorry, I couldn't find relevant information in the available documents to answer your question."
const noResultsES = "Lo siento, no encontré información relevante en los documentos disponibles para responder tu pregunta."

// Search embeds the query and returns the user's most similar chunks.
func (s *ChatService) Search(ctx context.Context, userID, query string, topK int, threshold float64) ([]domain.SimilarChunk, error) {
	queryVector, err := s.ai.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := s.vectors.SearchSimilar(ctx, userID, queryVector, topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	return chunks, nil
}

// Answer runs retrieval + generation for a prompt. The search is not filtered
// by language: embeddings match semantically across languages, and that is
// deliberate. Returns the answer, the resolved language, and the sources used.
func (s *ChatService) Answer(ctx context.Context, userID, prompt string, topK int, threshold float64, language string) (string, string, []domain.SimilarChunk, error) {
	if language == "" {
		language = detectLanguage(prompt)
	}

	chunks, err := s.Search(ctx, userID, prompt, topK, threshold)
	if err != nil {
		return "", language, nil, err
	}

	if len(chunks) == 0 {
		return cannedReply(language), language, nil, nil
	}

	answer, err := s.ai.Chat(ctx, systemPromptFor(language), prompt, formatContext(chunks))
	if err != nil {
		return "", language, nil, fmt.Errorf("chat: %w", err)
	}

	return answer, language, chunks, nil
}

// AnswerStream is the streaming variant of Answer: the generated answer is
// delivered token by token. When nothing matches, the canned reply arrives as
// a single token so clients handle both cases the same way.
func (s *ChatService) AnswerStream(ctx context.Context, userID, prompt string, topK int, threshold float64, language string) (<-chan string, string, []domain.SimilarChunk, error) {
	if language == "" {
		language = detectLanguage(prompt)
	}

	chunks, err := s.Search(ctx, userID, prompt, topK, threshold)
	if err != nil {
		return nil, language, nil, err
	}

	if len(chunks) == 0 {
		tokens := make(chan string, 1)
		tokens <- cannedReply(language)
		close(tokens)
		return tokens, language, nil, nil
	}

	tokens, err := s.ai.ChatStream(ctx, systemPromptFor(language), prompt, formatContext(chunks))
	if err != nil {
		return nil, language, nil, fmt.Errorf("chat stream: %w", err)
	}

	return tokens, language, chunks, nil
}

func systemPromptFor(language string) string {
	if language == "es" {
		return systemPromptES
	}
	return systemPromptEN
}

func cannedReply(language string) string {
	if language == "es" {
		return noResultsES
	}
	return noResultsEN
}

func formatContext(chunks []domain.SimilarChunk) []string {
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = fmt.Sprintf("[Document: %s | Relevance: %.2f]\n%s", chunk.DocumentName, chunk.Similarity, chunk.Content)
	}
	return parts
}

// QueryResult is the outcome of a session-backed query.
type QueryResult struct {
	Answer   string          `json:"answer"`
	Language string          `json:"language"`
	Sources  []domain.Source `json:"sources"`
}

// QueryWithSession answers a prompt and records both turns in the session:
// the user message, the assistant message with its sources, and a message
// count bump on the session itself.
func (s *ChatService) QueryWithSession(ctx context.Context, session *domain.Session, prompt string, topK int, threshold float64, language string) (*QueryResult, error) {
	answer, language, chunks, err := s.Answer(ctx, session.UserID, prompt, topK, threshold, language)
	if err != nil {
		return nil, err
	}

	sources := make([]domain.Source, len(chunks))
	for i, chunk := range chunks {
		sources[i] = chunk.Source()
	}

	if err := s.SaveExchange(ctx, session, prompt, answer, language, sources); err != nil {
		return nil, err
	}

	return &QueryResult{
		Answer:   answer,
		Language: language,
		Sources:  sources,
	}, nil
}

// SaveExchange persists one completed question/answer turn: the user message,
// the assistant message with its sources, and a message count bump on the
// session itself.
func (s *ChatService) SaveExchange(ctx context.Context, session *domain.Session, prompt, answer, language string, sources []domain.Source) error {
	if _, err := s.store.InsertMessage(ctx, &domain.Message{
		SessionID: session.ID,
		Role:      domain.RoleMessageUser,
		Content:   prompt,
		Language:  language,
	}); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}

	if _, err := s.store.InsertMessage(ctx, &domain.Message{
		SessionID: session.ID,
		Role:      domain.RoleMessageAssistant,
		Content:   answer,
		Language:  language,
		Sources:   sources,
	}); err != nil {
		return fmt.Errorf("save assistant message: %w", err)
	}

	if err := s.store.TouchSession(ctx, session.ID, 2); err != nil {
		slog.Warn("failed to touch session", "session_id", session.ID, "error", err)
	}
	return nil
}
