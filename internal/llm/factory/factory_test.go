package factory

import (
	"testing"

	"github.com/fincopilot/fincopilot/internal/config"
)

func TestNew_Claude(t *testing.T) {
	p, err := New(config.LLMConfig{
		Provider: "claude",
		Claude:   config.ClaudeConfig{APIKey: "key"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "claude" {
		t.Errorf("expected claude, got %s", p.Name())
	}
}

func TestNew_OpenAI(t *testing.T) {
	p, err := New(config.LLMConfig{
		Provider: "openai",
		OpenAI:   config.OpenAIConfig{APIKey: "key"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "openai" {
		t.Errorf("expected openai, got %s", p.Name())
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := New(config.LLMConfig{Provider: "oracle"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
