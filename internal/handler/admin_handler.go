package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/docuchat/docuchat/internal/adapter/store"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/middleware"
)

// AdminHandler handles maintenance endpoints restricted to admins.
type AdminHandler struct {
	store   *store.PostgresStore
	vectors *store.VectorStore
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(pgStore *store.PostgresStore, vectors *store.VectorStore) *AdminHandler {
	return &AdminHandler{store: pgStore, vectors: vectors}
}

// Register sets up admin routes behind the admin role check.
func (h *AdminHandler) Register(router fiber.Router) {
	admin := router.Group("/admin", middleware.RequireRole(domain.RoleAdmin))
	admin.Get("/stats", h.Stats)
	admin.Post("/clear", h.ClearAll)
	admin.Post("/clear/user/:id", h.ClearUser)
}

// Stats returns row counts per table plus vector store totals.
func (h *AdminHandler) Stats(c fiber.Ctx) error {
	stats, err := h.store.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	vectors, err := h.vectors.CountVectors(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"tables":              stats,
		"vectors":             vectors,
		"embedding_dimension": h.vectors.Dimension(),
	})
}

// ClearAll wipes all documents, chunks, sessions, and messages.
func (h *AdminHandler) ClearAll(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)

	counts, err := h.store.ClearAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	slog.Warn("all data cleared", "admin_id", uc.UserID, "counts", counts)
	recordAudit(h.store, c, uc.UserID, domain.AuditActionAdminClear, "system", "all")
	return c.JSON(fiber.Map{"deleted": counts})
}

// ClearUser wipes one user's documents, chunks, sessions, and messages.
func (h *AdminHandler) ClearUser(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	targetID := c.Params("id")

	counts, err := h.store.ClearUser(c.Context(), targetID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	slog.Warn("user data cleared", "admin_id", uc.UserID, "target_user_id", targetID, "counts", counts)
	recordAudit(h.store, c, uc.UserID, domain.AuditActionAdminClear, "user", targetID)
	return c.JSON(fiber.Map{
		"user_id": targetID,
		"deleted": counts,
	})
}
