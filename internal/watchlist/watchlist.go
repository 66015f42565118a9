package watchlist

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
)

// Store tracks the symbols a user follows.
type Store interface {
	List(ctx context.Context, ownerID string) ([]core.WatchlistItem, error)
	Add(ctx context.Context, ownerID, symbol, name string) error
	Remove(ctx context.Context, ownerID, symbol string) error
}

// MemoryStore is an in-memory watchlist keyed by owner.
type MemoryStore struct {
	mu    sync.RWMutex
	lists map[string]map[string]core.WatchlistItem
}

// NewMemoryStore creates an empty watchlist store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lists: make(map[string]map[string]core.WatchlistItem)}
}

func (s *MemoryStore) List(ctx context.Context, ownerID string) ([]core.WatchlistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]core.WatchlistItem, 0, len(s.lists[ownerID]))
	for _, item := range s.lists[ownerID] {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].AddedAt.Before(items[j].AddedAt)
	})
	return items, nil
}

// Add inserts a symbol; adding an already-watched symbol is a no-op that
// keeps the original added_at.
func (s *MemoryStore) Add(ctx context.Context, ownerID, symbol, name string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return core.Wrapf(core.ErrInvalidArgs, "symbol required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lists[ownerID] == nil {
		s.lists[ownerID] = make(map[string]core.WatchlistItem)
	}
	if _, ok := s.lists[ownerID][symbol]; ok {
		return nil
	}
	s.lists[ownerID][symbol] = core.WatchlistItem{
		Symbol:  symbol,
		Name:    name,
		AddedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, ownerID, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lists[ownerID][symbol]; !ok {
		return core.Wrapf(core.ErrSymbolNotFound, "%s is not on the watchlist", symbol)
	}
	delete(s.lists[ownerID], symbol)
	return nil
}
