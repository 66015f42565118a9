package agent

import (
	"fmt"
	"strings"

	"github.com/fincopilot/fincopilot/internal/llm"
)

const persona = `You are FinanceCopilot, a conversational financial assistant. You help users understand stocks, market data and their own watchlist. Always fetch live data through your tools before quoting numbers; never answer from memory when a tool can give the current value. You do not give personalized investment advice. Answer in plain text without markdown formatting.`

const actionProtocol = `On every turn respond with exactly one JSON object and nothing else.
To call a tool: {"action": "tool", "tool": "<name>", "args": {...}}
To answer the user: {"action": "final", "answer": "<your answer>"}
Tool results arrive as observation messages. Call one tool at a time.`

// buildSystemPrompt assembles the persona, the tool catalog and the
// retrieved context for the decision loop.
func (e *Executor) buildSystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	b.WriteString(actionProtocol)

	b.WriteString("\n\nAvailable tools:\n")
	for _, d := range e.tools.Descriptors() {
		note := ""
		if d.Mutating {
			note = " (modifies user data)"
		}
		fmt.Fprintf(&b, "- %s%s: %s Arguments: %s\n", d.Name, note, d.Description, d.ArgsExample)
	}

	appendContext(&b, req)
	return b.String()
}

// buildContextPrompt is the tool-free variant used by the single-shot
// fallback.
func (e *Executor) buildContextPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nYour data tools are currently unavailable. Answer from the conversation and the reference material below, and say so when the user asks for live numbers you cannot fetch.")
	appendContext(&b, req)
	return b.String()
}

func appendContext(b *strings.Builder, req Request) {
	if req.Memory != nil && req.Memory.Summary != "" {
		fmt.Fprintf(b, "\nEarlier conversation summary:\n%s\n", req.Memory.Summary)
	}
	if len(req.Documents) > 0 {
		b.WriteString("\nReference material:\n")
		for _, d := range req.Documents {
			title := d.Document.Title
			if title == "" {
				title = d.Document.Source
			}
			fmt.Fprintf(b, "[%s] %s\n", title, d.Document.Content)
		}
	}
}

// buildTranscript turns the memory tail plus the new user message into
// chat messages.
func buildTranscript(req Request) []llm.Message {
	var messages []llm.Message
	if req.Memory != nil {
		for _, m := range req.Memory.Messages {
			messages = append(messages, llm.Message{
				Role:    string(m.Role),
				Content: m.Content,
			})
		}
	}
	return append(messages, llm.Message{Role: "user", Content: req.Message})
}
