package vector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
)

func TestMemoryStore_ImplementsStore(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)
}

func addDoc(t *testing.T, s *MemoryStore, id, owner string, vec []float32, age time.Duration) {
	t.Helper()
	err := s.Add(context.Background(), core.Document{
		ID:        id,
		OwnerID:   owner,
		Content:   "content " + id,
		CreatedAt: time.Now().Add(-age),
	}, vec, "text-embedding-3-small")
	if err != nil {
		t.Fatal(err)
	}
}

func TestMemoryStore_AddValidation(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Add(context.Background(), core.Document{}, []float32{1}, "m"); err == nil {
		t.Error("expected error for missing document id")
	}
	if err := s.Add(context.Background(), core.Document{ID: "d1"}, nil, "m"); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestSearch_RanksBySimilarity(t *testing.T) {
	s := NewMemoryStore()
	addDoc(t, s, "close", "", []float32{1, 0, 0}, 0)
	addDoc(t, s, "far", "", []float32{0, 1, 0}, 0)
	addDoc(t, s, "mid", "", []float32{1, 1, 0}, 0)

	results, err := s.Search(context.Background(), []float32{1, 0, 0}, "text-embedding-3-small", "", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Document.ID != "close" || results[1].Document.ID != "mid" || results[2].Document.ID != "far" {
		t.Errorf("unexpected ranking: %s, %s, %s",
			results[0].Document.ID, results[1].Document.ID, results[2].Document.ID)
	}
}

func TestSearch_OwnershipFilter(t *testing.T) {
	s := NewMemoryStore()
	addDoc(t, s, "public", "", []float32{1, 0}, 0)
	addDoc(t, s, "alices", "alice", []float32{1, 0}, 0)
	addDoc(t, s, "bobs", "bob", []float32{1, 0}, 0)

	results, err := s.Search(context.Background(), []float32{1, 0}, "text-embedding-3-small", "alice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected public + owned, got %d results", len(results))
	}
	for _, r := range results {
		if r.Document.ID == "bobs" {
			t.Error("another owner's document must never be returned")
		}
	}
}

func TestSearch_TieBreakNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	addDoc(t, s, "old", "", []float32{1, 0}, time.Hour)
	addDoc(t, s, "new", "", []float32{1, 0}, 0)

	results, err := s.Search(context.Background(), []float32{1, 0}, "text-embedding-3-small", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Document.ID != "new" {
		t.Errorf("equal scores must rank newest first, got %s", results[0].Document.ID)
	}
}

func TestSearch_ModelMismatch(t *testing.T) {
	s := NewMemoryStore()
	addDoc(t, s, "d1", "", []float32{1, 0}, 0)

	_, err := s.Search(context.Background(), []float32{1, 0}, "text-embedding-3-large", "", 3)
	if !errors.Is(err, core.ErrEmbeddingVersion) {
		t.Errorf("expected EMBEDDING_VERSION for model mismatch, got %v", err)
	}
}

func TestSearch_CapsAtK(t *testing.T) {
	s := NewMemoryStore()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		addDoc(t, s, id, "", []float32{1, 0}, 0)
	}

	results, err := s.Search(context.Background(), []float32{1, 0}, "text-embedding-3-small", "", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestDelete(t *testing.T) {
	s := NewMemoryStore()
	addDoc(t, s, "d1", "", []float32{1}, 0)

	if err := s.Delete(context.Background(), "d1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(context.Background(), "d1"); !errors.Is(err, core.ErrDocumentNotFound) {
		t.Errorf("expected DOCUMENT_NOT_FOUND, got %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{0, 0}, []float32{1, 0}, 0},
		{[]float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		got := cosineSimilarity(tt.a, tt.b)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("cosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}
