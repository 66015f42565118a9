package retriever

import (
	"context"
	"strings"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/embeddings"
	"github.com/fincopilot/fincopilot/internal/storage/vector"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTopK = 3

// Retriever embeds texts once at ingestion and answers similarity
// searches over the stored corpus.
type Retriever struct {
	embedder embeddings.Provider
	store    vector.Store
	topK     int
	log      *zap.Logger
}

// New creates a retriever. topK <= 0 uses the default.
func New(embedder embeddings.Provider, store vector.Store, topK int, log *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, topK: topK, log: log}
}

// Ingest embeds a document and stores it. The document gets an id when it
// has none. The embedding is computed exactly once; a failed embed stores
// nothing.
func (r *Retriever) Ingest(ctx context.Context, doc core.Document) (string, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return "", core.Wrapf(core.ErrEmbeddingFailed, "document has no content")
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	embedding, err := r.embedder.GenerateEmbedding(ctx, doc.Content)
	if err != nil {
		return "", err
	}

	if err := r.store.Add(ctx, doc, embedding, r.embedder.ModelName()); err != nil {
		return "", err
	}

	r.log.Debug("document ingested",
		zap.String("id", doc.ID),
		zap.String("source", doc.Source),
		zap.Int("content_len", len(doc.Content)),
	)
	return doc.ID, nil
}

// Search returns the top-k documents most similar to the query, restricted
// to public documents plus the owner's own.
func (r *Retriever) Search(ctx context.Context, query, ownerID string) ([]core.ScoredDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	embedding, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	return r.store.Search(ctx, embedding, r.embedder.ModelName(), ownerID, r.topK)
}
