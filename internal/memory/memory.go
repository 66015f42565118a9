package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/metrics"
	"github.com/fincopilot/fincopilot/internal/storage/session"
	"go.uber.org/zap"
)

const (
	defaultTokenBudget  = 1000
	defaultRetainTail   = 10
	defaultMaxMessages  = 100
	defaultSummarizeMax = 20
	titleMaxLen         = 50
)

// Summarizer collapses older messages into a rolling summary.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary string, messages []core.ChatMessage) (string, error)
}

// Options tune the manager. Zero values take the defaults.
type Options struct {
	TokenBudget  int
	RetainTail   int
	MaxMessages  int
	SummarizeMax int
}

func (o Options) withDefaults() Options {
	if o.TokenBudget <= 0 {
		o.TokenBudget = defaultTokenBudget
	}
	if o.RetainTail <= 0 {
		o.RetainTail = defaultRetainTail
	}
	if o.MaxMessages <= 0 {
		o.MaxMessages = defaultMaxMessages
	}
	if o.SummarizeMax <= 0 {
		o.SummarizeMax = defaultSummarizeMax
	}
	return o
}

// Manager keeps per-session history inside a token budget: a rolling
// summary plus a verbatim tail. Summarization is eager, at append time,
// so reads never pay for it.
type Manager struct {
	store      session.Store
	summarizer Summarizer
	opts       Options
	metrics    *metrics.Registry
	log        *zap.Logger
}

// NewManager creates a memory manager. metrics may be nil.
func NewManager(store session.Store, summarizer Summarizer, opts Options, reg *metrics.Registry, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:      store,
		summarizer: summarizer,
		opts:       opts.withDefaults(),
		metrics:    reg,
		log:        log,
	}
}

// View returns the summary plus the verbatim tail. A session that does
// not exist yet views as empty.
func (m *Manager) View(ctx context.Context, sessionID string) (*core.MemoryView, error) {
	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return &core.MemoryView{}, nil
		}
		return nil, core.WrapError(core.ErrMemoryStore, err)
	}
	return &core.MemoryView{Summary: rec.Session.Summary, Messages: rec.Messages}, nil
}

// Append records a message and enforces the token budget. The session is
// created on first append; its title comes from the first user message.
func (m *Manager) Append(ctx context.Context, sessionID, ownerID string, role core.Role, content string) error {
	now := time.Now().UTC()

	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, core.ErrSessionNotFound) {
			return core.WrapError(core.ErrMemoryStore, err)
		}
		rec = &session.Record{
			Session: core.ChatSession{
				ID:        sessionID,
				OwnerID:   ownerID,
				CreatedAt: now,
			},
		}
	}

	if rec.Session.Title == "" && role == core.RoleUser {
		rec.Session.Title = deriveTitle(content)
	}

	rec.Messages = append(rec.Messages, core.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	})

	// Hard cap is independent of summarization: oldest messages fall off
	// even when the summarizer is unavailable.
	if len(rec.Messages) > m.opts.MaxMessages {
		rec.Messages = rec.Messages[len(rec.Messages)-m.opts.MaxMessages:]
	}

	if m.overBudget(rec) && len(rec.Messages) > m.opts.RetainTail {
		m.collapse(ctx, rec)
	}

	rec.Session.UpdatedAt = now
	if err := m.store.Put(ctx, rec); err != nil {
		return core.WrapError(core.ErrMemoryStore, err)
	}
	return nil
}

func (m *Manager) overBudget(rec *session.Record) bool {
	total := estimateTokens(rec.Session.Summary)
	for _, msg := range rec.Messages {
		total += estimateTokens(msg.Content)
	}
	return total > m.opts.TokenBudget
}

// collapse folds everything but the retained tail into the summary. A
// summarizer failure leaves the record unchanged; the next append tries
// again.
func (m *Manager) collapse(ctx context.Context, rec *session.Record) {
	if m.summarizer == nil {
		return
	}

	excess := rec.Messages[:len(rec.Messages)-m.opts.RetainTail]
	if len(excess) > m.opts.SummarizeMax {
		excess = excess[len(excess)-m.opts.SummarizeMax:]
	}

	summary, err := m.summarizer.Summarize(ctx, rec.Session.Summary, excess)
	if err != nil {
		m.log.Warn("summarization failed, keeping raw tail",
			zap.String("session", rec.Session.ID),
			zap.Error(err),
		)
		return
	}

	rec.Session.Summary = summary
	rec.Session.SummaryTokens = estimateTokens(summary)
	rec.Messages = rec.Messages[len(rec.Messages)-m.opts.RetainTail:]

	if m.metrics != nil {
		m.metrics.RecordSummarization()
	}
	m.log.Debug("session history collapsed",
		zap.String("session", rec.Session.ID),
		zap.Int("summary_tokens", rec.Session.SummaryTokens),
		zap.Int("tail", len(rec.Messages)),
	)
}

// estimateTokens approximates tokens as one per four characters.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// deriveTitle truncates the first user message to a session title.
func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	if len(title) > titleMaxLen {
		title = strings.TrimSpace(title[:titleMaxLen]) + "..."
	}
	return title
}
