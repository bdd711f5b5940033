package handler

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/docuchat/docuchat/internal/adapter/store"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/middleware"
	"github.com/docuchat/docuchat/internal/port"
)

// SessionHandler handles chat session endpoints.
type SessionHandler struct {
	store *store.PostgresStore
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(pgStore *store.PostgresStore) *SessionHandler {
	return &SessionHandler{store: pgStore}
}

// Register sets up session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	sessions := router.Group("/sessions")
	sessions.Post("/", h.Create)
	sessions.Get("/", h.List)
	sessions.Get("/:id/messages", h.Messages)
	sessions.Delete("/:id", h.Delete)
}

// Create starts a new chat session for the authenticated user.
func (h *SessionHandler) Create(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	session, err := h.store.CreateSession(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	recordAudit(h.store, c, uc.UserID, domain.AuditActionSessionCreate, "session", session.ID)
	return c.Status(fiber.StatusCreated).JSON(session)
}

// List returns the user's sessions, most recently active first.
func (h *SessionHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	sessions, err := h.store.ListSessionsByUser(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// Messages returns the full history of a session in chronological order.
func (h *SessionHandler) Messages(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	session, err := ownedSession(c, h.store, uc.UserID, c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}

	messages, err := h.store.ListMessagesBySession(c.Context(), session.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"session_id": session.ID,
		"messages":   messages,
		"total":      len(messages),
	})
}

// Delete removes a session and all of its messages.
func (h *SessionHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	session, err := ownedSession(c, h.store, uc.UserID, c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}

	deleted, err := h.store.DeleteSession(c.Context(), session.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	slog.Info("session deleted", "session_id", session.ID, "messages_deleted", deleted)
	recordAudit(h.store, c, uc.UserID, domain.AuditActionSessionDelete, "session", session.ID)
	return c.JSON(fiber.Map{
		"session_id":       session.ID,
		"messages_deleted": deleted,
	})
}

// ownedSession loads a session and enforces ownership. A session owned by
// someone else is reported as not found so session IDs can't be probed.
func ownedSession(c fiber.Ctx, pgStore *store.PostgresStore, userID, sessionID string) (*domain.Session, error) {
	session, err := pgStore.GetSessionByID(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrSessionNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, port.ErrSessionNotFound
	}
	return session, nil
}

func sessionError(c fiber.Ctx, err error) error {
	if errors.Is(err, port.ErrSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
