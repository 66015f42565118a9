package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/llm"
)

const summarizerPrompt = `You maintain a compact running summary of a financial assistant conversation. Merge the prior summary with the new messages into a single short summary. Keep concrete facts the assistant may need later: symbols discussed, prices quoted, user preferences and watchlist changes. Drop pleasantries. Answer with the summary text only.`

// LLMSummarizer condenses conversation history through a chat model.
type LLMSummarizer struct {
	provider  llm.Provider
	maxTokens int
}

// NewLLMSummarizer creates a summarizer over the given provider.
func NewLLMSummarizer(provider llm.Provider) *LLMSummarizer {
	return &LLMSummarizer{provider: provider, maxTokens: 300}
}

// Summarize merges the prior summary and the collapsed messages.
func (s *LLMSummarizer) Summarize(ctx context.Context, priorSummary string, messages []core.ChatMessage) (string, error) {
	var b strings.Builder
	if priorSummary != "" {
		fmt.Fprintf(&b, "Prior summary:\n%s\n\n", priorSummary)
	}
	b.WriteString("New messages:\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	resp, err := s.provider.Chat(ctx, llm.ChatRequest{
		SystemPrompt: summarizerPrompt,
		Messages:     []llm.Message{{Role: "user", Content: b.String()}},
		MaxTokens:    s.maxTokens,
		Temperature:  0,
	})
	if err != nil {
		return "", core.WrapError(core.ErrReasoningFailed, err)
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", core.Wrapf(core.ErrReasoningFailed, "empty summary")
	}
	return summary, nil
}
