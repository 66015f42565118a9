package vector

import (
	"context"

	"github.com/fincopilot/fincopilot/internal/core"
)

// Store persists documents with their embeddings. Every vector is stored
// with the name of the model that produced it; Search rejects a query
// against vectors from a different model instead of comparing
// incomparable spaces.
type Store interface {
	// Add stores a document and its embedding atomically.
	Add(ctx context.Context, doc core.Document, embedding []float32, model string) error
	// Delete removes a document by id.
	Delete(ctx context.Context, docID string) error
	// Search returns the k nearest documents by cosine similarity,
	// restricted to public documents plus those owned by ownerID.
	// Equal scores break ties by created_at, newest first.
	Search(ctx context.Context, embedding []float32, model, ownerID string, k int) ([]core.ScoredDocument, error)
}
