package factory

import (
	"fmt"

	"github.com/fincopilot/fincopilot/internal/config"
	"github.com/fincopilot/fincopilot/internal/llm"
	"github.com/fincopilot/fincopilot/internal/llm/claude"
	"github.com/fincopilot/fincopilot/internal/llm/openai"
)

// New creates an LLM provider based on configuration.
func New(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "claude":
		return claude.New(cfg.Claude.APIKey, cfg.Claude.Model, claude.WithTimeout(cfg.Timeout))
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, openai.WithTimeout(cfg.Timeout))
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
