package session

import (
	"context"

	"github.com/fincopilot/fincopilot/internal/core"
)

// Record is a session envelope plus its raw message tail. The tail holds
// only messages not yet collapsed into the session summary.
type Record struct {
	Session  core.ChatSession
	Messages []core.ChatMessage
}

// Store persists chat sessions. Put replaces the whole record atomically
// so a summarization (summary update plus tail truncation) is never
// half-applied.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	List(ctx context.Context, ownerID string) ([]core.ChatSession, error)
	Delete(ctx context.Context, sessionID string) error
}
