package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/port"
)

type nopAudit struct{}

func (nopAudit) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	return nil
}

type fakeAuthService struct {
	registerErr error
	updateErr   error
	updated     *domain.User
}

func (f *fakeAuthService) Register(ctx context.Context, email, username, fullName, password string) (*domain.User, string, error) {
	if f.registerErr != nil {
		return nil, "", f.registerErr
	}
	return &domain.User{ID: "u-1", Email: email, Username: username}, "tok", nil
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	return &domain.User{ID: "u-1", Email: email}, "tok", nil
}

func (f *fakeAuthService) UpdateProfile(ctx context.Context, userID string, fullName *string, currentPassword, newPassword string) (*domain.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	user := &domain.User{ID: userID, Email: "ana@example.com", Username: "ana"}
	if fullName != nil {
		user.FullName = *fullName
	}
	f.updated = user
	return user, nil
}

func newAuthTestApp(svc Authenticator) *fiber.App {
	app := fiber.New()
	h := NewAuthHandler(svc, nopAudit{})
	h.Register(app)

	// Protected routes mounted with a stand-in for the JWT middleware.
	api := app.Group("/api/v1", func(c fiber.Ctx) error {
		c.Locals("user", &domain.UserContext{UserID: "u-1", Email: "ana@example.com", Name: "ana"})
		return c.Next()
	})
	h.RegisterProtected(api)
	return app
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSignUp_DuplicateEmailIsBadRequest(t *testing.T) {
	app := newAuthTestApp(&fakeAuthService{registerErr: port.ErrEmailTaken})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/register",
		`{"email":"ana@example.com","username":"ana","password":"secret123"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", resp.StatusCode)
	}
}

func TestSignUp_DuplicateUsernameIsBadRequest(t *testing.T) {
	app := newAuthTestApp(&fakeAuthService{registerErr: port.ErrUsernameTaken})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/auth/register",
		`{"email":"ana@example.com","username":"ana","password":"secret123"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate username, got %d", resp.StatusCode)
	}
}

func TestUpdateMe_ChangesFullName(t *testing.T) {
	svc := &fakeAuthService{}
	app := newAuthTestApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPut, "/api/v1/auth/me",
		`{"full_name":"Ana García"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if user.FullName != "Ana García" {
		t.Fatalf("full name not updated: %+v", user)
	}
	if svc.updated == nil || svc.updated.ID != "u-1" {
		t.Fatalf("service not called for the authenticated user: %+v", svc.updated)
	}
}

func TestUpdateMe_WrongCurrentPassword(t *testing.T) {
	app := newAuthTestApp(&fakeAuthService{updateErr: port.ErrInvalidCredentials})

	resp, err := app.Test(jsonRequest(http.MethodPut, "/api/v1/auth/me",
		`{"current_password":"wrong","new_password":"secret123"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong current password, got %d", resp.StatusCode)
	}
}

func TestUpdateMe_EmptyBodyRejected(t *testing.T) {
	app := newAuthTestApp(&fakeAuthService{})

	resp, err := app.Test(jsonRequest(http.MethodPut, "/api/v1/auth/me", `{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for empty update, got %d", resp.StatusCode)
	}
}
