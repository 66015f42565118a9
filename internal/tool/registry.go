package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fincopilot/fincopilot/internal/core"
	"github.com/fincopilot/fincopilot/internal/metrics"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Tool is one callable capability exposed to the agent. Mutating marks
// tools with side effects; their names carry a verb so the model treats
// them differently from lookups.
type Tool struct {
	Name        string
	Description string
	ArgsExample string
	Mutating    bool
	run         func(ctx context.Context, ownerID string, raw json.RawMessage) (any, error)
}

// Descriptor is the prompt-facing shape of a tool.
type Descriptor struct {
	Name        string
	Description string
	ArgsExample string
	Mutating    bool
}

// Registry is the closed set of tools. Execution never returns a Go
// error to the caller: every failure becomes a structured observation the
// model can read and react to.
type Registry struct {
	tools    map[string]Tool
	order    []string
	validate *validator.Validate
	metrics  *metrics.Registry
	log      *zap.Logger
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(reg *metrics.Registry, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		tools:    make(map[string]Tool),
		validate: validator.New(),
		metrics:  reg,
		log:      log,
	}
}

// Register adds a tool. Registering a duplicate name panics; the tool set
// is assembled once at startup.
func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name]; ok {
		panic(fmt.Sprintf("tool %s registered twice", t.Name))
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Descriptors lists tools in registration order for prompt building.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Descriptor{
			Name:        t.Name,
			Description: t.Description,
			ArgsExample: t.ArgsExample,
			Mutating:    t.Mutating,
		})
	}
	return out
}

// Execute runs a tool and returns its observation as a JSON string.
// Unknown names and tool failures come back as error payloads, never as
// Go errors, so the agent loop can keep going.
func (r *Registry) Execute(ctx context.Context, ownerID, name string, raw json.RawMessage) string {
	t, ok := r.tools[name]
	if !ok {
		r.recordCall(name, "unknown")
		available := make([]string, len(r.order))
		copy(available, r.order)
		sort.Strings(available)
		return errorPayload("unknown_tool",
			fmt.Sprintf("no tool named %q; available tools: %s", name, strings.Join(available, ", ")))
	}

	result, err := t.run(ctx, ownerID, raw)
	if err != nil {
		r.recordCall(name, "error")
		r.log.Debug("tool call failed",
			zap.String("tool", name),
			zap.Error(err),
		)
		return errorPayload(errorKind(err), err.Error())
	}

	buf, err := json.Marshal(result)
	if err != nil {
		r.recordCall(name, "error")
		return errorPayload("internal", fmt.Sprintf("encoding %s result: %v", name, err))
	}
	r.recordCall(name, "ok")
	return string(buf)
}

func (r *Registry) recordCall(tool, status string) {
	if r.metrics != nil {
		r.metrics.RecordToolCall(tool, status)
	}
}

// decodeArgs unmarshals and validates tool arguments into dst.
func (r *Registry) decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return core.Wrapf(core.ErrInvalidArgs, "decoding arguments: %w", err)
		}
	}
	if err := r.validate.Struct(dst); err != nil {
		return core.WrapError(core.ErrInvalidArgs, err)
	}
	return nil
}

// errorKind maps an error to the stable lowercase kind used in error
// observations.
func errorKind(err error) string {
	var cerr *core.Error
	if errors.As(err, &cerr) {
		return strings.ToLower(cerr.Code)
	}
	return "error"
}

func errorPayload(kind, message string) string {
	buf, _ := json.Marshal(map[string]string{
		"error":   kind,
		"message": message,
	})
	return string(buf)
}

// normalizeSymbol trims and uppercases a user- or model-supplied symbol.
func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
