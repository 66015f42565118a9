package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore persists documents and embeddings in PostgreSQL with the
// pgvector extension.
type PostgresStore struct {
	db         *sqlx.DB
	dimensions int
}

// NewPostgresStore connects and ensures the schema exists. dimensions
// fixes the vector column width and must match the embedding model.
func NewPostgresStore(ctx context.Context, dsn string, dimensions int) (*PostgresStore, error) {
	if dimensions <= 0 {
		return nil, core.Wrapf(core.ErrVectorStore, "dimensions must be positive")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrVectorStore, err)
	}

	schema := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	embedding  vector(%d) NOT NULL,
	model      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
`, dimensions)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, core.Wrapf(core.ErrVectorStore, "ensuring document schema: %w", err)
	}
	return &PostgresStore{db: db, dimensions: dimensions}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Add(ctx context.Context, doc core.Document, embedding []float32, model string) error {
	if doc.ID == "" {
		return core.Wrapf(core.ErrVectorStore, "document id required")
	}
	if len(embedding) != s.dimensions {
		return core.Wrapf(core.ErrVectorStore,
			"embedding has %d dimensions, store expects %d", len(embedding), s.dimensions)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, owner_id, title, source, content, embedding, model, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			source = EXCLUDED.source,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model`,
		doc.ID, doc.OwnerID, doc.Title, doc.Source, doc.Content,
		pgvector.NewVector(embedding), model, doc.CreatedAt)
	if err != nil {
		return core.WrapError(core.ErrVectorStore, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, docID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	if err != nil {
		return core.WrapError(core.ErrVectorStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Wrapf(core.ErrDocumentNotFound, "document %s", docID)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, embedding []float32, model, ownerID string, k int) ([]core.ScoredDocument, error) {
	if k <= 0 {
		k = 3
	}

	// A vector stored by a different embedding model lives in an
	// incomparable space; refuse rather than rank.
	var stale bool
	err := s.db.GetContext(ctx, &stale,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE model <> $1)`, model)
	if err != nil {
		return nil, core.WrapError(core.ErrVectorStore, err)
	}
	if stale {
		return nil, core.Wrapf(core.ErrEmbeddingVersion, "index contains vectors from a different model than %s", model)
	}

	var rows []struct {
		ID        string    `db:"id"`
		OwnerID   string    `db:"owner_id"`
		Title     string    `db:"title"`
		Source    string    `db:"source"`
		Content   string    `db:"content"`
		CreatedAt time.Time `db:"created_at"`
		Score     float64   `db:"similarity"`
	}

	query := `
		SELECT id, owner_id, title, source, content, created_at,
			1 - (embedding <=> $1) as similarity
		FROM documents
		WHERE owner_id = '' OR owner_id = $2
		ORDER BY embedding <=> $1, created_at DESC
		LIMIT $3`

	if err := s.db.SelectContext(ctx, &rows, query, pgvector.NewVector(embedding), ownerID, k); err != nil {
		return nil, core.WrapError(core.ErrVectorStore, err)
	}

	results := make([]core.ScoredDocument, 0, len(rows))
	for _, r := range rows {
		results = append(results, core.ScoredDocument{
			Document: core.Document{
				ID:        r.ID,
				OwnerID:   r.OwnerID,
				Title:     r.Title,
				Source:    r.Source,
				Content:   r.Content,
				CreatedAt: r.CreatedAt,
			},
			Score: r.Score,
		})
	}
	return results, nil
}
