package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrUnsupportedFile    = errors.New("unsupported file type")
	ErrEmptyDocument      = errors.New("no content found in document")
	ErrInvalidCredentials = errors.New("incorrect email or password")
)
