package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/docuchat/docuchat/internal/adapter/store"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/middleware"
	"github.com/docuchat/docuchat/internal/service"
	"github.com/docuchat/docuchat/pkg/config"
)

// ChatHandler handles the document question-answering endpoint.
type ChatHandler struct {
	chatService *service.ChatService
	store       *store.PostgresStore
	topK        int
	threshold   float64
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chatService *service.ChatService, pgStore *store.PostgresStore, cfg *config.Config) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		store:       pgStore,
		topK:        cfg.TopK,
		threshold:   cfg.SimilarityThreshold,
	}
}

// Register sets up chat routes.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Post("/query", h.Query)
	router.Post("/query/stream", h.QueryStream)
}

// Query answers a question against the user's documents. When no session_id
// is given a new session is created, so the first question of a conversation
// needs no separate setup call.
func (h *ChatHandler) Query(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		SessionID string   `json:"session_id"`
		Prompt    string   `json:"prompt"`
		Language  string   `json:"language"`
		TopK      int      `json:"top_k"`
		Threshold *float64 `json:"similarity_threshold"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Prompt) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "prompt is required"})
	}

	topK := body.TopK
	if topK <= 0 || topK > 50 {
		topK = h.topK
	}
	threshold := h.threshold
	if body.Threshold != nil && *body.Threshold >= 0 && *body.Threshold <= 1 {
		threshold = *body.Threshold
	}

	session, err := h.resolveSession(c, uc.UserID, body.SessionID)
	if err != nil {
		return sessionError(c, err)
	}

	started := time.Now()
	result, err := h.chatService.QueryWithSession(c.Context(), session, body.Prompt, topK, threshold, body.Language)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	recordAudit(h.store, c, uc.UserID, domain.AuditActionQuery, "session", session.ID)
	return c.JSON(fiber.Map{
		"session_id":      session.ID,
		"prompt":          body.Prompt,
		"answer":          result.Answer,
		"language":        result.Language,
		"sources":         result.Sources,
		"processing_time": time.Since(started).Seconds(),
	})
}

// QueryStream answers a question like Query but delivers the generated answer
// as Server-Sent Events: one "token" event per chunk, then a "done" event with
// the full result. The exchange is persisted after the stream finishes.
func (h *ChatHandler) QueryStream(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		SessionID string   `json:"session_id"`
		Prompt    string   `json:"prompt"`
		Language  string   `json:"language"`
		TopK      int      `json:"top_k"`
		Threshold *float64 `json:"similarity_threshold"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Prompt) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "prompt is required"})
	}

	topK := body.TopK
	if topK <= 0 || topK > 50 {
		topK = h.topK
	}
	threshold := h.threshold
	if body.Threshold != nil && *body.Threshold >= 0 && *body.Threshold <= 1 {
		threshold = *body.Threshold
	}

	session, err := h.resolveSession(c, uc.UserID, body.SessionID)
	if err != nil {
		return sessionError(c, err)
	}

	tokens, language, chunks, err := h.chatService.AnswerStream(c.Context(), uc.UserID, body.Prompt, topK, threshold, body.Language)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	sources := make([]domain.Source, len(chunks))
	for i, chunk := range chunks {
		sources[i] = chunk.Source()
	}

	recordAudit(h.store, c, uc.UserID, domain.AuditActionQuery, "session", session.ID)

	prompt := body.Prompt
	started := time.Now()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		var answer strings.Builder
		for token := range tokens {
			answer.WriteString(token)
			data, _ := json.Marshal(fiber.Map{"token": token})
			fmt.Fprintf(w, "event: token\ndata: %s\n\n", data)
			w.Flush()
		}

		data, _ := json.Marshal(fiber.Map{
			"session_id":      session.ID,
			"prompt":          prompt,
			"answer":          answer.String(),
			"language":        language,
			"sources":         sources,
			"processing_time": time.Since(started).Seconds(),
		})
		fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
		w.Flush()

		// The request context is gone once the stream ends; persist with
		// a fresh one.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.chatService.SaveExchange(ctx, session, prompt, answer.String(), language, sources); err != nil {
			slog.Error("failed to save streamed exchange", "session_id", session.ID, "error", err)
		}
	})
}

func (h *ChatHandler) resolveSession(c fiber.Ctx, userID, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return h.store.CreateSession(c.Context(), userID)
	}
	return ownedSession(c, h.store, userID, sessionID)
}
