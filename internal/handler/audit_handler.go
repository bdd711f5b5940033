package handler

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/docuchat/docuchat/internal/adapter/store"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/middleware"
)

// recordAudit writes a semantic audit record for a significant action,
// asynchronously like the request middleware. Request fields are captured
// before the goroutine starts.
func recordAudit(w middleware.AuditWriter, c fiber.Ctx, userID, action, resource, resourceID string) {
	ip := c.IP()
	userAgent := c.Get("User-Agent")
	go func() {
		if err := w.WriteAudit(userID, action, resource, resourceID, "{}", ip, userAgent); err != nil {
			slog.Error("failed to write audit log", "action", action, "error", err)
		}
	}()
}

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	store *store.PostgresStore
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(pgStore *store.PostgresStore) *AuditHandler {
	return &AuditHandler{store: pgStore}
}

// Register sets up audit routes behind the admin role check.
func (h *AuditHandler) Register(router fiber.Router) {
	audit := router.Group("/audit", middleware.RequireRole(domain.RoleAdmin))
	audit.Get("/logs", h.ListLogs)
	audit.Get("/recent", h.Recent)
}

// ListLogs returns audit logs with optional filtering.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	limitStr := c.Query("limit", "100")
	limit, _ := strconv.Atoi(limitStr)
	action := c.Query("action", "")

	logs, err := h.store.ListAuditLogs(c.Context(), limit, action)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}

// Recent returns the latest audit activity in a compact shape suited for
// dashboard polling.
func (h *AuditHandler) Recent(c fiber.Ctx) error {
	c.Set("Cache-Control", "no-cache")

	logs, err := h.store.ListAuditLogs(c.Context(), 50, "")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	type logEntry struct {
		Timestamp string `json:"timestamp"`
		Action    string `json:"action"`
		Resource  string `json:"resource"`
		UserID    string `json:"user_id"`
		Details   string `json:"details"`
	}

	entries := make([]logEntry, len(logs))
	for i, l := range logs {
		entries[i] = logEntry{
			Timestamp: l.CreatedAt.Format(time.RFC3339),
			Action:    l.Action,
			Resource:  l.Resource,
			UserID:    l.UserID,
			Details:   l.Details,
		}
	}

	return c.JSON(fiber.Map{
		"logs":  entries,
		"count": len(entries),
	})
}
