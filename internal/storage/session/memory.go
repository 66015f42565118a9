package session

import (
	"context"
	"sort"
	"sync"

	"github.com/fincopilot/fincopilot/internal/core"
)

// MemoryStore is an in-memory session store for tests and single-process
// runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, core.Wrapf(core.ErrSessionNotFound, "session %s", sessionID)
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	if rec.Session.ID == "" {
		return core.Wrapf(core.ErrMemoryStore, "session id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Session.ID] = copyRecord(rec)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, ownerID string) ([]core.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]core.ChatSession, 0, len(s.records))
	for _, rec := range s.records {
		if ownerID != "" && rec.Session.OwnerID != ownerID {
			continue
		}
		sessions = append(sessions, rec.Session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[sessionID]; !ok {
		return core.Wrapf(core.ErrSessionNotFound, "session %s", sessionID)
	}
	delete(s.records, sessionID)
	return nil
}

// copyRecord guards against callers mutating stored state through shared
// slices.
func copyRecord(rec *Record) *Record {
	out := &Record{Session: rec.Session}
	out.Messages = make([]core.ChatMessage, len(rec.Messages))
	copy(out.Messages, rec.Messages)
	return out
}
