package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/fincopilot/fincopilot/internal/core"
)

type memoryEntry struct {
	doc       core.Document
	embedding []float32
	model     string
}

// MemoryStore is an in-memory vector store with exact cosine search, for
// tests and single-process runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Add(ctx context.Context, doc core.Document, embedding []float32, model string) error {
	if doc.ID == "" {
		return core.Wrapf(core.ErrVectorStore, "document id required")
	}
	if len(embedding) == 0 {
		return core.Wrapf(core.ErrVectorStore, "empty embedding for document %s", doc.ID)
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[doc.ID] = memoryEntry{doc: doc, embedding: vec, model: model}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[docID]; !ok {
		return core.Wrapf(core.ErrDocumentNotFound, "document %s", docID)
	}
	delete(s.entries, docID)
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, embedding []float32, model, ownerID string, k int) ([]core.ScoredDocument, error) {
	if k <= 0 {
		k = 3
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]core.ScoredDocument, 0, len(s.entries))
	for _, e := range s.entries {
		if e.model != model {
			return nil, core.Wrapf(core.ErrEmbeddingVersion,
				"index built with model %s, query uses %s", e.model, model)
		}
		if e.doc.OwnerID != "" && e.doc.OwnerID != ownerID {
			continue
		}
		scored = append(scored, core.ScoredDocument{
			Document: e.doc,
			Score:    cosineSimilarity(embedding, e.embedding),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Document.CreatedAt.After(scored[j].Document.CreatedAt)
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
