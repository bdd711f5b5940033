package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/docuchat/docuchat/internal/adapter/extract"
	"github.com/docuchat/docuchat/internal/adapter/store"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/middleware"
	"github.com/docuchat/docuchat/internal/port"
	"github.com/docuchat/docuchat/internal/service"
	"github.com/docuchat/docuchat/pkg/config"
)

// DocumentHandler handles document upload and management endpoints.
type DocumentHandler struct {
	docService  *service.DocumentService
	chatService *service.ChatService
	store       *store.PostgresStore
	vectors     *store.VectorStore
	tracker     *JobTracker
	maxUpload   int64
	topK        int
	threshold   float64
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(docService *service.DocumentService, chatService *service.ChatService, pgStore *store.PostgresStore, vectors *store.VectorStore, tracker *JobTracker, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{
		docService:  docService,
		chatService: chatService,
		store:       pgStore,
		vectors:     vectors,
		tracker:     tracker,
		maxUpload:   int64(cfg.MaxUploadMB) << 20,
		topK:        cfg.TopK,
		threshold:   cfg.SimilarityThreshold,
	}
}

// Register sets up document routes.
func (h *DocumentHandler) Register(router fiber.Router) {
	docs := router.Group("/documents")
	docs.Post("/upload", h.Upload)
	docs.Get("/search", h.Search)
	docs.Get("/", h.List)
	docs.Get("/:id", h.Get)
	docs.Delete("/", h.Clear)
	docs.Delete("/:id", h.Delete)
}

// Upload accepts a document and starts the processing pipeline in the
// background. The response carries the document record and a job ID the
// client can poll or stream for progress.
func (h *DocumentHandler) Upload(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing file field"})
	}

	filename := filepath.Base(fileHeader.Filename)
	if !extract.Supported(filename) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unsupported file type %q, expected .txt or .pdf", filepath.Ext(filename)),
		})
	}
	if fileHeader.Size > h.maxUpload {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("file exceeds the %d MB limit", h.maxUpload>>20),
		})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "read upload: " + err.Error()})
	}
	raw, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "read upload: " + err.Error()})
	}

	doc, err := h.store.CreateDocument(c.Context(), &domain.Document{
		UserID:   uc.UserID,
		Filename: filename,
		FileType: strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
		FileSize: fileHeader.Size,
		Status:   domain.DocumentStatusUploaded,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	jobID := uuid.New().String()
	h.tracker.CreateJob(jobID, doc.ID)

	go h.runProcessingJob(jobID, doc, raw)

	recordAudit(h.store, c, uc.UserID, domain.AuditActionDocumentUpload, "document", doc.ID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"document": doc,
		"job_id":   jobID,
	})
}

// runProcessingJob executes the pipeline outside the request lifecycle.
func (h *DocumentHandler) runProcessingJob(jobID string, doc *domain.Document, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	started := time.Now()

	if err := h.store.SetDocumentStatus(ctx, doc.ID, domain.DocumentStatusProcessing); err != nil {
		slog.Error("failed to mark document processing", "document_id", doc.ID, "error", err)
		h.tracker.FailJob(jobID, err)
		return
	}

	result, err := h.docService.Process(ctx, doc, raw, func(done, total int) {
		h.tracker.UpdateJob(jobID, "embedding", done, total, "running")
	})
	if err != nil {
		slog.Error("document processing failed", "document_id", doc.ID, "error", err)
		if dbErr := h.store.FailDocument(ctx, doc.ID, err.Error()); dbErr != nil {
			slog.Error("failed to mark document failed", "document_id", doc.ID, "error", dbErr)
		}
		h.tracker.FailJob(jobID, err)
		return
	}

	seconds := time.Since(started).Seconds()
	if err := h.store.FinalizeDocument(ctx, doc.ID, result.Language, result.TotalChunks, result.TotalTokens, seconds); err != nil {
		slog.Error("failed to finalize document", "document_id", doc.ID, "error", err)
		h.tracker.FailJob(jobID, err)
		return
	}

	h.tracker.UpdateJob(jobID, "done", result.TotalChunks, result.TotalChunks, "complete")
	slog.Info("document processed",
		"document_id", doc.ID,
		"chunks", result.TotalChunks,
		"tokens", result.TotalTokens,
		"seconds", fmt.Sprintf("%.2f", seconds),
	)
}

// Search runs a semantic search over the user's documents without generating
// an answer.
func (h *DocumentHandler) Search(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "q is required"})
	}
	topK, _ := strconv.Atoi(c.Query("top_k"))
	if topK <= 0 || topK > 50 {
		topK = h.topK
	}
	threshold := h.threshold
	if t, err := strconv.ParseFloat(c.Query("threshold"), 64); err == nil && t >= 0 && t <= 1 {
		threshold = t
	}

	chunks, err := h.chatService.Search(c.Context(), uc.UserID, query, topK, threshold)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	results := make([]fiber.Map, len(chunks))
	for i, chunk := range chunks {
		results[i] = fiber.Map{
			"document_id":   chunk.DocumentID,
			"document_name": chunk.DocumentName,
			"chunk_index":   chunk.ChunkIndex,
			"text_chunk":    chunk.Content,
			"similarity":    chunk.Similarity,
		}
	}

	return c.JSON(fiber.Map{
		"query":   query,
		"results": results,
		"total":   len(results),
	})
}

// List returns the user's documents, newest first.
func (h *DocumentHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	docs, err := h.store.ListDocumentsByUser(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"documents": docs,
		"total":     len(docs),
	})
}

// Get returns a single document with its processing metadata.
func (h *DocumentHandler) Get(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	doc, err := h.ownedDocument(c, uc.UserID)
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(doc)
}

// Delete removes a document and its vectors.
func (h *DocumentHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	doc, err := h.ownedDocument(c, uc.UserID)
	if err != nil {
		return documentError(c, err)
	}

	vectorsDeleted, err := h.vectors.DeleteByDocument(c.Context(), doc.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.store.DeleteDocument(c.Context(), doc.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	slog.Info("document deleted", "document_id", doc.ID, "vectors_deleted", vectorsDeleted)
	recordAudit(h.store, c, uc.UserID, domain.AuditActionDocumentDelete, "document", doc.ID)
	return c.JSON(fiber.Map{
		"document_id":     doc.ID,
		"vectors_deleted": vectorsDeleted,
	})
}

// Clear removes every document and vector belonging to the user.
func (h *DocumentHandler) Clear(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	vectorsDeleted, err := h.vectors.DeleteByUser(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	docsDeleted, err := h.store.DeleteDocumentsByUser(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	slog.Info("documents cleared", "user_id", uc.UserID, "documents", docsDeleted, "vectors", vectorsDeleted)
	recordAudit(h.store, c, uc.UserID, domain.AuditActionDocumentDelete, "document", "all")
	return c.JSON(fiber.Map{
		"documents_deleted": docsDeleted,
		"vectors_deleted":   vectorsDeleted,
	})
}

func (h *DocumentHandler) ownedDocument(c fiber.Ctx, userID string) (*domain.Document, error) {
	doc, err := h.store.GetDocumentByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrDocumentNotFound
		}
		return nil, err
	}
	if doc.UserID != userID {
		return nil, port.ErrDocumentNotFound
	}
	return doc, nil
}

func documentError(c fiber.Ctx, err error) error {
	if errors.Is(err, port.ErrDocumentNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "document not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
