package domain

import "time"

// Session is a chat conversation owned by a user.
type Session struct {
	ID           string    `json:"id"            db:"id"`
	UserID       string    `json:"user_id"       db:"user_id"`
	MessageCount int       `json:"message_count" db:"message_count"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}

// Message is a single turn in a session. Assistant messages carry the
// retrieved sources that backed the answer.
type Message struct {
	ID        string    `json:"id"         db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Role      string    `json:"role"       db:"role"` // user, assistant
	Content   string    `json:"content"    db:"content"`
	Language  string    `json:"language,omitempty" db:"language"`
	Sources   []Source  `json:"sources,omitempty"  db:"sources"` // JSON blob
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Message role constants.
const (
	RoleMessageUser      = "user"
	RoleMessageAssistant = "assistant"
)

// Source is one retrieved chunk cited by an assistant message.
type Source struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	TextChunk    string  `json:"text_chunk"`
	Similarity   float64 `json:"similarity"`
}
