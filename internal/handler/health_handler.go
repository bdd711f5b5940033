package handler

import (
	"context"

	"github.com/gofiber/fiber/v3"
)

// Pinger reports database connectivity.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// VectorCounter reports how many vectors are stored.
type VectorCounter interface {
	CountVectors(ctx context.Context) (int64, error)
}

// HealthHandler reports service and store health.
type HealthHandler struct {
	db      Pinger
	vectors VectorCounter
	appName string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, vectors VectorCounter, appName string) *HealthHandler {
	return &HealthHandler{db: db, vectors: vectors, appName: appName}
}

// Register sets up the public health route.
func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/api/v1/health", h.Check)
}

// Check verifies database connectivity and reports the vector count. A
// failing count is reported as unhealthy rather than silently shown as zero.
func (h *HealthHandler) Check(c fiber.Ctx) error {
	if err := h.db.PingContext(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	vectors, err := h.vectors.CountVectors(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":  "healthy",
		"app":     h.appName,
		"version": "1.0.0",
		"vectors": vectors,
	})
}
