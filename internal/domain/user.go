package domain

import "time"

// User represents a registered account.
type User struct {
	ID           string    `json:"id"           db:"id"`
	Email        string    `json:"email"        db:"email"`
	Username     string    `json:"username"     db:"username"`
	FullName     string    `json:"full_name"    db:"full_name"`
	PasswordHash string    `json:"-"            db:"password_hash"` // never serialized to JSON
	Role         string    `json:"role"         db:"role"`
	IsActive     bool      `json:"is_active"    db:"is_active"`
	CreatedAt    time.Time `json:"created_at"   db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"   db:"updated_at"`
	LastLogin    time.Time `json:"last_login"   db:"last_login"`
}

// Role constants.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserContext is the authenticated user context injected into request handlers.
type UserContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}
