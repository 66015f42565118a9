package app

import (
	"context"
	"sync"
	"time"

	"github.com/fincopilot/fincopilot/internal/agent"
	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reasoner runs one agent turn.
type Reasoner interface {
	Execute(ctx context.Context, req agent.Request) (*agent.Result, error)
}

// Memory is the session history surface the orchestrator needs.
type Memory interface {
	View(ctx context.Context, sessionID string) (*core.MemoryView, error)
	Append(ctx context.Context, sessionID, ownerID string, role core.Role, content string) error
}

// Searcher retrieves reference documents for a query.
type Searcher interface {
	Search(ctx context.Context, query, ownerID string) ([]core.ScoredDocument, error)
}

// TurnRequest is one user message addressed to a session. An empty
// SessionID starts a new session.
type TurnRequest struct {
	SessionID string
	OwnerID   string
	Message   string
}

// TurnResponse is the completed turn.
type TurnResponse struct {
	SessionID string
	Answer    string
	ToolCalls []agent.ToolCall
}

// App wires memory, retrieval and the agent into turns. One turn per
// session runs at a time; a concurrent turn on the same session is
// rejected, not queued.
type App struct {
	reasoner  Reasoner
	memory    Memory
	retriever Searcher
	metrics   *metrics.Registry
	log       *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionLock
}

// sessionLock is a per-session mutex with a reference count so entries
// can be evicted once no turn holds or contends them.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// New creates the orchestrator. retriever and metrics may be nil.
func New(reasoner Reasoner, memory Memory, retriever Searcher, reg *metrics.Registry, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		reasoner:  reasoner,
		memory:    memory,
		retriever: retriever,
		metrics:   reg,
		log:       log,
		sessions:  make(map[string]*sessionLock),
	}
}

// HandleTurn runs one full turn: view memory, retrieve context, execute
// the agent, persist both sides of the exchange.
func (a *App) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	lock, ok := a.acquireSession(req.SessionID)
	if !ok {
		return nil, core.Wrapf(core.ErrSessionBusy, "session %s", req.SessionID)
	}
	defer func() {
		lock.mu.Unlock()
		a.releaseSession(req.SessionID, lock)
	}()

	start := time.Now()
	if a.metrics != nil {
		a.metrics.TurnInFlightInc()
		defer a.metrics.TurnInFlightDec()
	}

	resp, err := a.runTurn(ctx, req)
	if a.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordTurn(status, time.Since(start).Seconds())
	}
	return resp, err
}

func (a *App) runTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	view, err := a.memory.View(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	// Retrieval is best-effort context; a degraded index must not take
	// the whole turn down.
	var docs []core.ScoredDocument
	if a.retriever != nil {
		docs, err = a.retriever.Search(ctx, req.Message, req.OwnerID)
		if err != nil {
			a.log.Warn("retrieval failed, continuing without documents",
				zap.String("session", req.SessionID),
				zap.Error(err),
			)
			docs = nil
		}
	}

	result, err := a.reasoner.Execute(ctx, agent.Request{
		OwnerID:   req.OwnerID,
		Message:   req.Message,
		Memory:    view,
		Documents: docs,
	})
	if err != nil {
		return nil, err
	}

	if err := a.memory.Append(ctx, req.SessionID, req.OwnerID, core.RoleUser, req.Message); err != nil {
		return nil, err
	}
	if err := a.memory.Append(ctx, req.SessionID, req.OwnerID, core.RoleAssistant, result.Answer); err != nil {
		return nil, err
	}

	a.log.Info("turn completed",
		zap.String("session", req.SessionID),
		zap.Int("iterations", result.Iterations),
		zap.Int("tool_calls", len(result.ToolCalls)),
	)

	return &TurnResponse{
		SessionID: req.SessionID,
		Answer:    result.Answer,
		ToolCalls: result.ToolCalls,
	}, nil
}

// acquireSession takes the session's lock, reporting false when another
// turn already holds it.
func (a *App) acquireSession(sessionID string) (*sessionLock, bool) {
	a.mu.Lock()
	lock, ok := a.sessions[sessionID]
	if !ok {
		lock = &sessionLock{}
		a.sessions[sessionID] = lock
	}
	lock.refs++
	a.mu.Unlock()

	if !lock.mu.TryLock() {
		a.releaseSession(sessionID, lock)
		return nil, false
	}
	return lock, true
}

// releaseSession drops one reference and evicts the map entry once no
// turn holds or contends the lock.
func (a *App) releaseSession(sessionID string, lock *sessionLock) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(a.sessions, sessionID)
	}
}
