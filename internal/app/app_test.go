package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fincopilot/fincopilot/internal/agent"
	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/memory"
	"github.com/fincopilot/fincopilot/internal/storage/session"
)

// blockingReasoner holds its first turn open until released; later calls
// pass straight through.
type blockingReasoner struct {
	started  chan struct{}
	release  chan struct{}
	once     sync.Once
	answer   string
	execErr  error
	lastReq  agent.Request
	requests int
}

func (r *blockingReasoner) Execute(ctx context.Context, req agent.Request) (*agent.Result, error) {
	r.requests++
	r.lastReq = req
	if r.started != nil {
		first := false
		r.once.Do(func() {
			close(r.started)
			first = true
		})
		if first {
			<-r.release
		}
	}
	if r.execErr != nil {
		return nil, r.execErr
	}
	return &agent.Result{Answer: r.answer, Iterations: 1}, nil
}

type stubSearcher struct {
	docs []core.ScoredDocument
	err  error
}

func (s *stubSearcher) Search(ctx context.Context, query, ownerID string) ([]core.ScoredDocument, error) {
	return s.docs, s.err
}

func newTestApp(reasoner Reasoner, searcher Searcher) (*App, *session.MemoryStore) {
	store := session.NewMemoryStore()
	mem := memory.NewManager(store, nil, memory.Options{}, nil, nil)
	return New(reasoner, mem, searcher, nil, nil), store
}

func TestHandleTurn_EndToEnd(t *testing.T) {
	reasoner := &blockingReasoner{answer: "AAPL is at 190.50."}
	searcher := &stubSearcher{docs: []core.ScoredDocument{
		{Document: core.Document{Title: "Dividends", Content: "text"}, Score: 0.9},
	}}
	a, store := newTestApp(reasoner, searcher)

	resp, err := a.HandleTurn(context.Background(), TurnRequest{
		OwnerID: "alice",
		Message: "What is AAPL at?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if resp.Answer != "AAPL is at 190.50." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if len(reasoner.lastReq.Documents) != 1 {
		t.Error("retrieved documents must reach the agent")
	}

	rec, err := store.Get(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Messages) != 2 {
		t.Fatalf("expected user + assistant persisted, got %d", len(rec.Messages))
	}
	if rec.Messages[0].Role != core.RoleUser || rec.Messages[1].Role != core.RoleAssistant {
		t.Error("messages persisted in wrong roles/order")
	}
	if rec.Session.Title != "What is AAPL at?" {
		t.Errorf("expected title from first message, got %q", rec.Session.Title)
	}
}

func TestHandleTurn_ConcurrentSameSessionRejected(t *testing.T) {
	reasoner := &blockingReasoner{
		started: make(chan struct{}),
		release: make(chan struct{}),
		answer:  "done",
	}
	a, _ := newTestApp(reasoner, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.HandleTurn(context.Background(), TurnRequest{SessionID: "s1", OwnerID: "u", Message: "first"})
	}()

	<-reasoner.started
	_, err := a.HandleTurn(context.Background(), TurnRequest{SessionID: "s1", OwnerID: "u", Message: "second"})
	if !errors.Is(err, core.ErrSessionBusy) {
		t.Errorf("expected SESSION_BUSY, got %v", err)
	}

	close(reasoner.release)
	wg.Wait()

	// The session is free again once the first turn finishes.
	if _, err := a.HandleTurn(context.Background(), TurnRequest{SessionID: "s1", OwnerID: "u", Message: "third"}); err != nil {
		t.Errorf("expected lock released after turn, got %v", err)
	}
}

func TestHandleTurn_DifferentSessionsRunConcurrently(t *testing.T) {
	reasoner := &blockingReasoner{
		started: make(chan struct{}),
		release: make(chan struct{}),
		answer:  "done",
	}
	a, _ := newTestApp(reasoner, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.HandleTurn(context.Background(), TurnRequest{SessionID: "s1", OwnerID: "u", Message: "first"})
	}()
	<-reasoner.started

	_, err := a.HandleTurn(context.Background(), TurnRequest{SessionID: "s2", OwnerID: "u", Message: "other"})
	if errors.Is(err, core.ErrSessionBusy) {
		t.Error("a different session must not be rejected")
	}

	close(reasoner.release)
	wg.Wait()
}

func TestHandleTurn_SessionLocksEvicted(t *testing.T) {
	reasoner := &blockingReasoner{answer: "done"}
	a, _ := newTestApp(reasoner, nil)

	for _, id := range []string{"s1", "s2", "s3"} {
		if _, err := a.HandleTurn(context.Background(), TurnRequest{SessionID: id, OwnerID: "u", Message: "q"}); err != nil {
			t.Fatal(err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.sessions) != 0 {
		t.Errorf("expected lock entries evicted after their turns, %d left", len(a.sessions))
	}
}

func TestHandleTurn_RetrievalFailureDegrades(t *testing.T) {
	reasoner := &blockingReasoner{answer: "answered without docs"}
	searcher := &stubSearcher{err: core.Wrapf(core.ErrEmbeddingVersion, "stale index")}
	a, _ := newTestApp(reasoner, searcher)

	resp, err := a.HandleTurn(context.Background(), TurnRequest{OwnerID: "u", Message: "q"})
	if err != nil {
		t.Fatalf("retrieval failure must not fail the turn: %v", err)
	}
	if resp.Answer != "answered without docs" {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if reasoner.lastReq.Documents != nil {
		t.Error("failed retrieval must pass no documents")
	}
}

func TestHandleTurn_ReasonerFailureFailsTurn(t *testing.T) {
	reasoner := &blockingReasoner{execErr: core.Wrapf(core.ErrReasoningFailed, "model down")}
	a, store := newTestApp(reasoner, nil)

	_, err := a.HandleTurn(context.Background(), TurnRequest{SessionID: "s1", OwnerID: "u", Message: "q"})
	if !errors.Is(err, core.ErrReasoningFailed) {
		t.Fatalf("expected REASONING, got %v", err)
	}

	// A failed turn persists nothing.
	if _, err := store.Get(context.Background(), "s1"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Error("failed turn must not write to the session")
	}
}

func TestHandleTurn_AppendFailureFailsTurn(t *testing.T) {
	reasoner := &blockingReasoner{answer: "ok"}
	store := &failingStore{MemoryStore: session.NewMemoryStore()}
	mem := memory.NewManager(store, nil, memory.Options{}, nil, nil)
	a := New(reasoner, mem, nil, nil, nil)

	_, err := a.HandleTurn(context.Background(), TurnRequest{SessionID: "s1", OwnerID: "u", Message: "q"})
	if !errors.Is(err, core.ErrMemoryStore) {
		t.Errorf("expected MEMORY_STORE surfaced, got %v", err)
	}
}

type failingStore struct {
	*session.MemoryStore
}

func (s *failingStore) Put(ctx context.Context, rec *session.Record) error {
	return core.Wrapf(core.ErrMemoryStore, "disk full")
}
