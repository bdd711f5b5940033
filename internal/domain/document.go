package domain

import "time"

// Document represents an uploaded file and its processing state.
type Document struct {
	ID                string    `json:"id"              db:"id"`
	UserID            string    `json:"user_id"         db:"user_id"`
	Filename          string    `json:"filename"        db:"filename"`
	FileType          string    `json:"file_type"       db:"file_type"` // .txt, .pdf
	FileSize          int64     `json:"file_size"       db:"file_size"`
	Language          string    `json:"language"        db:"language"`
	Status            string    `json:"status"          db:"status"`
	TotalChunks       int       `json:"total_chunks"    db:"total_chunks"`
	TotalTokens       int       `json:"total_tokens"    db:"total_tokens"`
	ProcessingSeconds float64   `json:"processing_seconds" db:"processing_seconds"`
	Error             string    `json:"error,omitempty" db:"error"`
	CreatedAt         time.Time `json:"created_at"      db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"      db:"updated_at"`
}

// Document status constants.
const (
	DocumentStatusUploaded   = "uploaded"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)
