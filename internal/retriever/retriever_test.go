package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/storage/vector"
)

// stubEmbedder maps known substrings to fixed vectors so similarity is
// deterministic.
type stubEmbedder struct {
	model string
	calls int
	fail  bool
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.fail {
		return nil, core.Wrapf(core.ErrEmbeddingFailed, "embedding service down")
	}
	switch {
	case strings.Contains(text, "dividend"):
		return []float32{1, 0, 0}, nil
	case strings.Contains(text, "options"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func (s *stubEmbedder) Dimensions() int { return 3 }

func (s *stubEmbedder) ModelName() string {
	if s.model == "" {
		return "text-embedding-3-small"
	}
	return s.model
}

func TestIngestAndSearch(t *testing.T) {
	emb := &stubEmbedder{}
	r := New(emb, vector.NewMemoryStore(), 2, nil)
	ctx := context.Background()

	if _, err := r.Ingest(ctx, core.Document{Title: "Dividends", Content: "dividend basics"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Ingest(ctx, core.Document{Title: "Options", Content: "options greeks"}); err != nil {
		t.Fatal(err)
	}

	results, err := r.Search(ctx, "what is a dividend", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Document.Title != "Dividends" {
		t.Errorf("expected dividend doc first, got %+v", results)
	}
}

func TestIngest_AssignsID(t *testing.T) {
	r := New(&stubEmbedder{}, vector.NewMemoryStore(), 0, nil)

	id, err := r.Ingest(context.Background(), core.Document{Content: "dividend basics"})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Error("expected a generated document id")
	}
}

func TestIngest_EmptyContent(t *testing.T) {
	r := New(&stubEmbedder{}, vector.NewMemoryStore(), 0, nil)

	if _, err := r.Ingest(context.Background(), core.Document{Content: "   "}); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestIngest_EmbedFailureStoresNothing(t *testing.T) {
	emb := &stubEmbedder{fail: true}
	store := vector.NewMemoryStore()
	r := New(emb, store, 0, nil)
	ctx := context.Background()

	if _, err := r.Ingest(ctx, core.Document{Content: "dividend basics"}); err == nil {
		t.Fatal("expected embed failure")
	}

	emb.fail = false
	results, err := r.Search(ctx, "dividend", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Error("a failed ingest must leave the store empty")
	}
}

func TestSearch_OwnershipNeverLeaks(t *testing.T) {
	r := New(&stubEmbedder{}, vector.NewMemoryStore(), 10, nil)
	ctx := context.Background()

	r.Ingest(ctx, core.Document{Content: "dividend public note"})
	r.Ingest(ctx, core.Document{OwnerID: "alice", Content: "dividend private note alice"})
	r.Ingest(ctx, core.Document{OwnerID: "bob", Content: "dividend private note bob"})

	results, err := r.Search(ctx, "dividend", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected public + alice's doc, got %d", len(results))
	}
	for _, res := range results {
		if res.Document.OwnerID == "bob" {
			t.Error("bob's document leaked into alice's search")
		}
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	emb := &stubEmbedder{}
	r := New(emb, vector.NewMemoryStore(), 0, nil)

	results, err := r.Search(context.Background(), "  ", "")
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Error("empty query must return no results")
	}
	if emb.calls != 0 {
		t.Error("empty query must not hit the embedding service")
	}
}

func TestSearch_ModelVersionMismatch(t *testing.T) {
	store := vector.NewMemoryStore()
	old := &stubEmbedder{model: "text-embedding-ada-002"}
	New(old, store, 0, nil).Ingest(context.Background(), core.Document{Content: "dividend basics"})

	current := &stubEmbedder{}
	r := New(current, store, 0, nil)
	_, err := r.Search(context.Background(), "dividend", "")
	if !errors.Is(err, core.ErrEmbeddingVersion) {
		t.Errorf("expected EMBEDDING_VERSION against a stale index, got %v", err)
	}
}
