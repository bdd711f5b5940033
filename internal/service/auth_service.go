package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/docuchat/docuchat/internal/adapter/store"
	"github.com/docuchat/docuchat/internal/domain"
	"github.com/docuchat/docuchat/internal/middleware"
	"github.com/docuchat/docuchat/internal/port"
	"github.com/docuchat/docuchat/pkg/config"
)

// AuthService handles registration, login, and token issuance.
type AuthService struct {
	store  *store.PostgresStore
	jwtCfg middleware.JWTConfig
}

// NewAuthService creates a new authentication service.
func NewAuthService(pgStore *store.PostgresStore, cfg *config.Config) *AuthService {
	return &AuthService{
		store: pgStore,
		jwtCfg: middleware.JWTConfig{
			Secret:    cfg.JWTSecret,
			Issuer:    cfg.JWTIssuer,
			ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
		},
	}
}

// Register creates a new account and returns the user with a signed JWT.
func (s *AuthService) Register(ctx context.Context, email, username, fullName, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("invalid email address")
	}
	if username == "" {
		return nil, "", fmt.Errorf("username is required")
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, "", err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, "", port.ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("check email: %w", err)
	}
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, "", port.ErrUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, &domain.User{
		Email:        email,
		Username:     username,
		FullName:     fullName,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := middleware.GenerateJWT(user, s.jwtCfg)
	if err != nil {
		return nil, "", fmt.Errorf("generate jwt: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, token, nil
}

// Login verifies credentials and returns the user with a signed JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", port.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", port.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, "", fmt.Errorf("inactive user account")
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}

	token, err := middleware.GenerateJWT(user, s.jwtCfg)
	if err != nil {
		return nil, "", fmt.Errorf("generate jwt: %w", err)
	}

	slog.Info("user authenticated", "user_id", user.ID)
	return user, token, nil
}

// UpdateProfile changes the user's full name and/or password. Changing the
// password requires the current one and re-runs the strength policy.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, fullName *string, currentPassword, newPassword string) (*domain.User, error) {
	var passwordHash *string
	if newPassword != "" {
		user, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
			return nil, port.ErrInvalidCredentials
		}
		if err := ValidatePasswordStrength(newPassword); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		h := string(hash)
		passwordHash = &h
	}

	user, err := s.store.UpdateUserProfile(ctx, userID, fullName, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	slog.Info("profile updated", "user_id", userID, "password_changed", passwordHash != nil)
	return user, nil
}

// ValidatePasswordStrength enforces the minimum password policy:
// at least 8 characters containing a letter and a digit.
func ValidatePasswordStrength(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("password must contain a letter and a digit")
	}
	return nil
}
