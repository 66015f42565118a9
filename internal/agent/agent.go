package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/llm"
	"github.com/fincopilot/fincopilot/internal/metrics"
	"github.com/fincopilot/fincopilot/internal/tool"
	"go.uber.org/zap"
)

const (
	defaultMaxIterations = 5
	defaultToolTimeout   = 15 * time.Second
)

// Tools is the registry surface the executor drives.
type Tools interface {
	Descriptors() []tool.Descriptor
	Execute(ctx context.Context, ownerID, name string, args json.RawMessage) string
}

// Request is one turn's input: the user message plus the context the
// orchestrator assembled for it.
type Request struct {
	OwnerID   string
	Message   string
	Memory    *core.MemoryView
	Documents []core.ScoredDocument
}

// ToolCall records one tool invocation made during a turn.
type ToolCall struct {
	Tool        string          `json:"tool"`
	Args        json.RawMessage `json:"args,omitempty"`
	Observation string          `json:"observation"`
}

// Result is the completed turn.
type Result struct {
	Answer     string
	ToolCalls  []ToolCall
	Iterations int
	Usage      llm.Usage
}

// action is the tagged decision the model emits each iteration.
type action struct {
	Action string          `json:"action"`
	Tool   string          `json:"tool,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Answer string          `json:"answer,omitempty"`
}

// Options tune the executor. Zero values take the defaults.
type Options struct {
	MaxIterations int
	ToolTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultMaxIterations
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = defaultToolTimeout
	}
	return o
}

// Executor runs the bounded reason-act loop: ask the model for an action,
// run the tool, feed the observation back, stop on a final answer or at
// the iteration bound.
type Executor struct {
	provider llm.Provider
	tools    Tools
	opts     Options
	metrics  *metrics.Registry
	log      *zap.Logger
}

// New creates an executor. metrics may be nil.
func New(provider llm.Provider, tools Tools, opts Options, reg *metrics.Registry, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		provider: provider,
		tools:    tools,
		opts:     opts.withDefaults(),
		metrics:  reg,
		log:      log,
	}
}

// Execute runs one turn. A reasoning failure degrades to a single
// completion without tools; only when that also fails does the turn error.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}
	system := e.buildSystemPrompt(req)
	transcript := buildTranscript(req)

	for i := 0; i < e.opts.MaxIterations; i++ {
		result.Iterations = i + 1

		resp, err := e.chat(ctx, system, transcript, true)
		if err != nil {
			e.log.Warn("reasoning call failed, degrading to single completion", zap.Error(err))
			if e.metrics != nil {
				e.metrics.RecordReasoningFallback()
			}
			return e.singleShot(ctx, req, result)
		}
		result.Usage.InputTokens += resp.Usage.InputTokens
		result.Usage.OutputTokens += resp.Usage.OutputTokens

		act, ok := parseAction(resp.Content)
		if !ok {
			// Free text from the model is its answer, not a protocol error.
			result.Answer = strings.TrimSpace(resp.Content)
			e.recordIterations(result)
			return result, nil
		}

		if act.Action == "final" {
			result.Answer = strings.TrimSpace(act.Answer)
			e.recordIterations(result)
			return result, nil
		}

		observation := e.runTool(ctx, req.OwnerID, act)
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			Tool:        act.Tool,
			Args:        act.Args,
			Observation: observation,
		})

		transcript = append(transcript,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: "Observation: " + observation},
		)
	}

	return e.finalize(ctx, system, transcript, result)
}

// runTool executes one tool call under the per-call timeout. Everything,
// including unknown tools and timeouts, comes back as an observation.
func (e *Executor) runTool(ctx context.Context, ownerID string, act action) string {
	toolCtx, cancel := context.WithTimeout(ctx, e.opts.ToolTimeout)
	defer cancel()

	observation := e.tools.Execute(toolCtx, ownerID, act.Tool, act.Args)
	e.log.Debug("tool executed",
		zap.String("tool", act.Tool),
		zap.Int("observation_len", len(observation)),
	)
	return observation
}

// finalize forces an answer once the iteration bound is hit: one more
// call with no tool option, then synthesis from observations as the last
// resort.
func (e *Executor) finalize(ctx context.Context, system string, transcript []llm.Message, result *Result) (*Result, error) {
	transcript = append(transcript, llm.Message{
		Role:    "user",
		Content: "You have used all your tool calls. Answer the user's question now using what you have gathered. Do not request any more tools.",
	})

	resp, err := e.chat(ctx, system, transcript, false)
	if err == nil {
		result.Answer = strings.TrimSpace(resp.Content)
		result.Usage.InputTokens += resp.Usage.InputTokens
		result.Usage.OutputTokens += resp.Usage.OutputTokens
		e.recordIterations(result)
		return result, nil
	}

	e.log.Warn("forced finalize failed, synthesizing from observations", zap.Error(err))
	result.Answer = synthesizeAnswer(result.ToolCalls)
	e.recordIterations(result)
	return result, nil
}

// singleShot answers without tools over memory and retrieved context.
func (e *Executor) singleShot(ctx context.Context, req Request, result *Result) (*Result, error) {
	system := e.buildContextPrompt(req)
	resp, err := e.chat(ctx, system, buildTranscript(req), false)
	if err != nil {
		return nil, core.WrapError(core.ErrReasoningFailed, err)
	}

	result.Answer = strings.TrimSpace(resp.Content)
	result.Usage.InputTokens += resp.Usage.InputTokens
	result.Usage.OutputTokens += resp.Usage.OutputTokens
	e.recordIterations(result)
	return result, nil
}

func (e *Executor) chat(ctx context.Context, system string, messages []llm.Message, jsonMode bool) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := e.provider.Chat(ctx, llm.ChatRequest{
		SystemPrompt: system,
		Messages:     messages,
		MaxTokens:    1024,
		Temperature:  0,
		JSONMode:     jsonMode,
	})
	if e.metrics != nil {
		e.metrics.ObserveLLMRequest(e.provider.Name(), time.Since(start).Seconds())
	}
	return resp, err
}

func (e *Executor) recordIterations(result *Result) {
	if e.metrics != nil {
		e.metrics.RecordIterations(result.Iterations)
	}
}

// parseAction decodes the model output as a tagged action. Anything that
// is not a recognizable action object reports !ok. A tool action with a
// missing name is still a tool action; the registry answers it with an
// unknown-tool observation so the loop can recover.
func parseAction(content string) (action, bool) {
	var act action
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &act); err != nil {
		return action{}, false
	}
	switch act.Action {
	case "tool", "final":
		return act, true
	default:
		return action{}, false
	}
}

// synthesizeAnswer builds a plain-text answer from tool observations when
// no model call can finish the turn.
func synthesizeAnswer(calls []ToolCall) string {
	if len(calls) == 0 {
		return "I could not complete the request. Please try again."
	}

	var b strings.Builder
	b.WriteString("Here is the data I was able to gather:\n")
	for _, c := range calls {
		fmt.Fprintf(&b, "%s: %s\n", c.Tool, c.Observation)
	}
	return strings.TrimSpace(b.String())
}
