package store

import (
	"context"
	"fmt"
)

// schema is applied on startup. Every statement is idempotent so restarting
// against an existing database is safe. The chunks vector column dimension is
// substituted from config (%d).
const schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	email         TEXT NOT NULL UNIQUE,
	username      TEXT NOT NULL UNIQUE,
	full_name     TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'user',
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_login    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id       UUID NOT NULL REFERENCES users(id),
	message_count INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	session_id UUID NOT NULL REFERENCES sessions(id),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	language   TEXT,
	sources    JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS documents (
	id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id            UUID NOT NULL REFERENCES users(id),
	filename           TEXT NOT NULL,
	file_type          TEXT NOT NULL,
	file_size          BIGINT NOT NULL DEFAULT 0,
	language           TEXT,
	status             TEXT NOT NULL DEFAULT 'uploaded',
	total_chunks       INTEGER NOT NULL DEFAULT 0,
	total_tokens       INTEGER NOT NULL DEFAULT 0,
	processing_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	error              TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chunks (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	document_id   UUID NOT NULL,
	user_id       UUID NOT NULL,
	document_name TEXT NOT NULL,
	chunk_index   INTEGER NOT NULL,
	content       TEXT NOT NULL,
	token_count   INTEGER NOT NULL DEFAULT 0,
	language      TEXT,
	vector        vector(%d),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_chunks_user ON chunks (user_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id);
CREATE INDEX IF NOT EXISTS idx_documents_user ON documents (user_id);

CREATE TABLE IF NOT EXISTS audit_logs (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id     TEXT NOT NULL,
	action      TEXT NOT NULL,
	resource    TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	details     JSONB NOT NULL DEFAULT '{}',
	ip          TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Init applies the schema with the configured embedding dimension.
func (s *PostgresStore) Init(ctx context.Context, embeddingDimension int) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(schema, embeddingDimension)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
