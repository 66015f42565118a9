package watchlist

import (
	"context"
	"errors"
	"testing"

	"github.com/fincopilot/fincopilot/internal/core"
)

func TestMemoryStore_ImplementsStore(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)
}

func TestAddListRemove(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Add(ctx, "alice", "aapl", "Apple Inc"); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(ctx, "alice", "TSLA", "Tesla Inc"); err != nil {
		t.Fatal(err)
	}

	items, err := s.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Symbol != "AAPL" {
		t.Errorf("expected symbol uppercased and insertion order kept, got %s", items[0].Symbol)
	}

	if err := s.Remove(ctx, "alice", "aapl"); err != nil {
		t.Fatal(err)
	}
	items, _ = s.List(ctx, "alice")
	if len(items) != 1 || items[0].Symbol != "TSLA" {
		t.Errorf("unexpected items after remove: %+v", items)
	}
}

func TestAdd_DuplicateIsNoOp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Add(ctx, "alice", "AAPL", "Apple Inc")
	first, _ := s.List(ctx, "alice")

	s.Add(ctx, "alice", "AAPL", "Apple Inc")
	second, _ := s.List(ctx, "alice")

	if len(second) != 1 {
		t.Fatalf("expected duplicate add to be a no-op, got %d items", len(second))
	}
	if !second[0].AddedAt.Equal(first[0].AddedAt) {
		t.Error("duplicate add must keep the original added_at")
	}
}

func TestAdd_EmptySymbol(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Add(context.Background(), "alice", "  ", "x"); !errors.Is(err, core.ErrInvalidArgs) {
		t.Errorf("expected INVALID_ARGS, got %v", err)
	}
}

func TestRemove_Unknown(t *testing.T) {
	s := NewMemoryStore()
	err := s.Remove(context.Background(), "alice", "NOPE")
	if !errors.Is(err, core.ErrSymbolNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Add(ctx, "alice", "AAPL", "Apple Inc")
	items, _ := s.List(ctx, "bob")
	if len(items) != 0 {
		t.Error("one owner's watchlist must not leak into another's")
	}
}
