package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docuchat/docuchat/internal/domain"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// --- Users ---

// CreateUser inserts a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `INSERT INTO users (email, username, full_name, password_hash, role, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, email, username, full_name, password_hash, role, is_active, created_at, updated_at, last_login`

	var user domain.User
	err := s.db.QueryRowContext(ctx, query,
		u.Email, u.Username, u.FullName, u.PasswordHash, u.Role, true,
	).Scan(
		&user.ID, &user.Email, &user.Username, &user.FullName, &user.PasswordHash,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.LastLogin,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, email, username, full_name, password_hash, role, is_active, created_at, updated_at, last_login
	                       FROM users WHERE email = $1`, email)
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, email, username, full_name, password_hash, role, is_active, created_at, updated_at, last_login
	                       FROM users WHERE username = $1`, username)
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, email, username, full_name, password_hash, role, is_active, created_at, updated_at, last_login
	                       FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Username, &user.FullName, &user.PasswordHash,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.LastLogin,
	)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateUserProfile updates the non-nil fields and returns the updated user.
func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id string, fullName, passwordHash *string) (*domain.User, error) {
	query := `UPDATE users
	          SET full_name = COALESCE($2, full_name),
	              password_hash = COALESCE($3, password_hash),
	              updated_at = NOW()
	          WHERE id = $1
	          RETURNING id, email, username, full_name, password_hash, role, is_active, created_at, updated_at, last_login`

	var user domain.User
	err := s.db.QueryRowContext(ctx, query, id, fullName, passwordHash).Scan(
		&user.ID, &user.Email, &user.Username, &user.FullName, &user.PasswordHash,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.LastLogin,
	)
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return &user, nil
}

// UpdateLastLogin stamps the user's last successful login.
func (s *PostgresStore) UpdateLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login = NOW(), updated_at = NOW() WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// --- Sessions ---

// CreateSession creates a new chat session for a user.
func (s *PostgresStore) CreateSession(ctx context.Context, userID string) (*domain.Session, error) {
	query := `INSERT INTO sessions (user_id)
	          VALUES ($1)
	          RETURNING id, user_id, message_count, created_at, updated_at`

	var session domain.Session
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&session.ID, &session.UserID, &session.MessageCount, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

// GetSessionByID returns a session by its ID.
func (s *PostgresStore) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT id, user_id, message_count, created_at, updated_at
	          FROM sessions WHERE id = $1`

	var session domain.Session
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.UserID, &session.MessageCount, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// ListSessionsByUser returns all sessions for a user, most recently active first.
func (s *PostgresStore) ListSessionsByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	query := `SELECT id, user_id, message_count, created_at, updated_at
	          FROM sessions WHERE user_id = $1 ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var sess domain.Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.MessageCount, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// TouchSession bumps the message count and refreshes updated_at.
func (s *PostgresStore) TouchSession(ctx context.Context, id string, delta int) error {
	query := `UPDATE sessions SET message_count = message_count + $1, updated_at = NOW() WHERE id = $2`
	_, err := s.db.ExecContext(ctx, query, delta, id)
	return err
}

// DeleteSession removes a session and all of its messages in one transaction.
// Returns the number of messages deleted.
func (s *PostgresStore) DeleteSession(ctx context.Context, id string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}

	return deleted, tx.Commit()
}

// --- Messages ---

// InsertMessage persists a chat message. Sources are stored as JSONB.
func (s *PostgresStore) InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	sourcesJSON, err := json.Marshal(m.Sources)
	if err != nil {
		return nil, fmt.Errorf("marshal sources: %w", err)
	}

	query := `INSERT INTO messages (session_id, role, content, language, sources)
	          VALUES ($1, $2, $3, $4, $5::jsonb)
	          RETURNING id, created_at`

	msg := *m
	err = s.db.QueryRowContext(ctx, query,
		m.SessionID, m.Role, m.Content, m.Language, string(sourcesJSON),
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

// ListMessagesBySession returns a session's messages in chronological order.
func (s *PostgresStore) ListMessagesBySession(ctx context.Context, sessionID string) ([]domain.Message, error) {
	query := `SELECT id, session_id, role, content, COALESCE(language, ''), COALESCE(sources::text, '[]'), created_at
	          FROM messages WHERE session_id = $1 ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var sourcesJSON string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Language, &sourcesJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if m.Role == domain.RoleMessageAssistant {
			if err := json.Unmarshal([]byte(sourcesJSON), &m.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// --- Documents ---

// CreateDocument inserts a new document record in "uploaded" state.
func (s *PostgresStore) CreateDocument(ctx context.Context, d *domain.Document) (*domain.Document, error) {
	query := `INSERT INTO documents (user_id, filename, file_type, file_size, status)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, user_id, filename, file_type, file_size, COALESCE(language, ''), status,
	                    total_chunks, total_tokens, processing_seconds, COALESCE(error, ''), created_at, updated_at`

	var doc domain.Document
	err := s.db.QueryRowContext(ctx, query,
		d.UserID, d.Filename, d.FileType, d.FileSize, domain.DocumentStatusUploaded,
	).Scan(
		&doc.ID, &doc.UserID, &doc.Filename, &doc.FileType, &doc.FileSize, &doc.Language,
		&doc.Status, &doc.TotalChunks, &doc.TotalTokens, &doc.ProcessingSeconds, &doc.Error,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &doc, nil
}

// GetDocumentByID returns a document by its ID.
func (s *PostgresStore) GetDocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT id, user_id, filename, file_type, file_size, COALESCE(language, ''), status,
	                 total_chunks, total_tokens, processing_seconds, COALESCE(error, ''), created_at, updated_at
	          FROM documents WHERE id = $1`

	var doc domain.Document
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.UserID, &doc.Filename, &doc.FileType, &doc.FileSize, &doc.Language,
		&doc.Status, &doc.TotalChunks, &doc.TotalTokens, &doc.ProcessingSeconds, &doc.Error,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// ListDocumentsByUser returns all documents for a user, newest first.
func (s *PostgresStore) ListDocumentsByUser(ctx context.Context, userID string) ([]domain.Document, error) {
	query := `SELECT id, user_id, filename, file_type, file_size, COALESCE(language, ''), status,
	                 total_chunks, total_tokens, processing_seconds, COALESCE(error, ''), created_at, updated_at
	          FROM documents WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(
			&doc.ID, &doc.UserID, &doc.Filename, &doc.FileType, &doc.FileSize, &doc.Language,
			&doc.Status, &doc.TotalChunks, &doc.TotalTokens, &doc.ProcessingSeconds, &doc.Error,
			&doc.CreatedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SetDocumentStatus updates the processing status of a document.
func (s *PostgresStore) SetDocumentStatus(ctx context.Context, id, status string) error {
	query := `UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := s.db.ExecContext(ctx, query, status, id)
	return err
}

// FinalizeDocument marks a document completed with its processing stats.
func (s *PostgresStore) FinalizeDocument(ctx context.Context, id, language string, totalChunks, totalTokens int, seconds float64) error {
	query := `UPDATE documents
	          SET status = $1, language = $2, total_chunks = $3, total_tokens = $4,
	              processing_seconds = $5, updated_at = NOW()
	          WHERE id = $6`
	_, err := s.db.ExecContext(ctx, query,
		domain.DocumentStatusCompleted, language, totalChunks, totalTokens, seconds, id,
	)
	return err
}

// FailDocument marks a document failed, keeping the error message for the UI.
func (s *PostgresStore) FailDocument(ctx context.Context, id, errMsg string) error {
	query := `UPDATE documents SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, domain.DocumentStatusFailed, errMsg, id)
	return err
}

// DeleteDocument removes a document row. Chunk vectors are deleted separately
// via VectorStore.DeleteByDocument so both stores stay in sync.
func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	query := `DELETE FROM documents WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// DeleteDocumentsByUser removes all of a user's document rows, returning the count.
func (s *PostgresStore) DeleteDocumentsByUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- Admin ---

// ClearAll wipes all chat and document data (users and audit logs are kept).
// Returns per-table deleted counts.
func (s *PostgresStore) ClearAll(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"chunks", "messages", "sessions", "documents"} {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table)
		if err != nil {
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
		counts[table], _ = res.RowsAffected()
	}

	return counts, tx.Commit()
}

// ClearUser wipes all chat and document data for a single user.
// Messages are located through the user's session ids.
func (s *PostgresStore) ClearUser(ctx context.Context, userID string) (map[string]int64, error) {
	counts := make(map[string]int64)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id IN (SELECT id FROM sessions WHERE user_id = $1)`, userID)
	if err != nil {
		return nil, fmt.Errorf("clear messages: %w", err)
	}
	counts["messages"], _ = res.RowsAffected()

	for _, table := range []string{"chunks", "sessions", "documents"} {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = $1`, userID)
		if err != nil {
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
		counts[table], _ = res.RowsAffected()
	}

	return counts, tx.Commit()
}

// Stats returns row counts for the main tables.
func (s *PostgresStore) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)
	for _, table := range []string{"users", "documents", "chunks", "sessions", "messages"} {
		var n int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	query := `INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`
	_, err := s.db.ExecContext(context.Background(), query,
		userID, action, resource, resourceID, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs returns recent audit logs with optional filters.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, user_id, action, resource, resource_id, details, ip, user_agent, created_at
	          FROM audit_logs`
	args := []interface{}{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Action, &l.Resource, &l.ResourceID,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
