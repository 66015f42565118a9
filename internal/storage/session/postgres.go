package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	summary        TEXT NOT NULL DEFAULT '',
	summary_tokens INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_chat_sessions_owner ON chat_sessions(owner_id, updated_at DESC);
`

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrMemoryStore, err)
	}
	if _, err := db.ExecContext(ctx, sessionSchema); err != nil {
		db.Close()
		return nil, core.Wrapf(core.ErrMemoryStore, "ensuring session schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	var sess core.ChatSession
	err := s.db.GetContext(ctx, &sess,
		`SELECT id, owner_id, title, summary, summary_tokens, created_at, updated_at
		 FROM chat_sessions WHERE id = $1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Wrapf(core.ErrSessionNotFound, "session %s", sessionID)
	}
	if err != nil {
		return nil, core.WrapError(core.ErrMemoryStore, err)
	}

	var messages []core.ChatMessage
	err = s.db.SelectContext(ctx, &messages,
		`SELECT session_id, role, content, created_at
		 FROM chat_messages WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, core.WrapError(core.ErrMemoryStore, err)
	}

	return &Record{Session: sess, Messages: messages}, nil
}

// Put upserts the session row and replaces the message tail in one
// transaction.
func (s *PostgresStore) Put(ctx context.Context, rec *Record) error {
	if rec.Session.ID == "" {
		return core.Wrapf(core.ErrMemoryStore, "session id required")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrMemoryStore, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, owner_id, title, summary, summary_tokens, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			summary_tokens = EXCLUDED.summary_tokens,
			updated_at = EXCLUDED.updated_at`,
		rec.Session.ID, rec.Session.OwnerID, rec.Session.Title, rec.Session.Summary,
		rec.Session.SummaryTokens, rec.Session.CreatedAt, rec.Session.UpdatedAt)
	if err != nil {
		return core.WrapError(core.ErrMemoryStore, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = $1`, rec.Session.ID); err != nil {
		return core.WrapError(core.ErrMemoryStore, err)
	}
	for i, m := range rec.Messages {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (session_id, seq, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			rec.Session.ID, i, m.Role, m.Content, m.CreatedAt)
		if err != nil {
			return core.WrapError(core.ErrMemoryStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError(core.ErrMemoryStore, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, ownerID string) ([]core.ChatSession, error) {
	query := `SELECT id, owner_id, title, summary, summary_tokens, created_at, updated_at
		 FROM chat_sessions`
	args := []any{}
	if ownerID != "" {
		query += ` WHERE owner_id = $1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY updated_at DESC`

	var sessions []core.ChatSession
	if err := s.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, core.WrapError(core.ErrMemoryStore, err)
	}
	return sessions, nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return core.WrapError(core.ErrMemoryStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Wrapf(core.ErrSessionNotFound, "session %s", sessionID)
	}
	return nil
}
