package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/middleware"
	"github.com/docuchat/docuchat/internal/port"
)

// Authenticator is the slice of the auth service the handler needs.
type Authenticator interface {
	Register(ctx context.Context, email, username, fullName, password string) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	UpdateProfile(ctx context.Context, userID string, fullName *string, currentPassword, newPassword string) (*domain.User, error)
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService Authenticator
	audit       middleware.AuditWriter
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService Authenticator, audit middleware.AuditWriter) *AuthHandler {
	return &AuthHandler{authService: authService, audit: audit}
}

// Register sets up the public auth routes.
func (h *AuthHandler) Register(app *fiber.App) {
	auth := app.Group("/api/v1/auth")
	auth.Post("/register", h.SignUp)
	auth.Post("/login", h.Login)
}

// RegisterProtected sets up auth routes that require a valid token.
func (h *AuthHandler) RegisterProtected(router fiber.Router) {
	router.Get("/auth/me", h.Me)
	router.Put("/auth/me", h.UpdateMe)
}

// SignUp creates a new account and returns a token.
func (h *AuthHandler) SignUp(c fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		FullName string `json:"full_name"`
		Password string `json:"password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	user, token, err := h.authService.Register(c.Context(), body.Email, body.Username, body.FullName, body.Password)
	if err != nil {
		// Duplicates are a validation failure, same as a weak password.
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	recordAudit(h.audit, c, user.ID, domain.AuditActionRegister, "user", user.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	user, token, err := h.authService.Login(c.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, port.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid email or password"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	recordAudit(h.audit, c, user.ID, domain.AuditActionLogin, "user", user.ID)
	return c.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

// Me returns the authenticated user's identity from the token claims.
func (h *AuthHandler) Me(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.JSON(fiber.Map{
		"user_id":  uc.UserID,
		"email":    uc.Email,
		"username": uc.Name,
		"role":     uc.Role,
	})
}

// UpdateMe changes the authenticated user's full name and/or password.
// Changing the password requires the current one.
func (h *AuthHandler) UpdateMe(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		FullName        *string `json:"full_name"`
		CurrentPassword string  `json:"current_password"`
		NewPassword     string  `json:"new_password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.FullName == nil && body.NewPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "nothing to update"})
	}

	user, err := h.authService.UpdateProfile(c.Context(), uc.UserID, body.FullName, body.CurrentPassword, body.NewPassword)
	if err != nil {
		if errors.Is(err, port.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "current password is incorrect"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	recordAudit(h.audit, c, user.ID, domain.AuditActionProfileUpdate, "user", user.ID)
	return c.JSON(user)
}
