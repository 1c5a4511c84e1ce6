// Package tools exposes retrieval operations to the LLM as callable
// functions.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/coursechat/internal/models"
	"github.com/tmc/langchaingo/llms"
)

// ErrUnknownTool is returned when the model requests a tool that was
// never registered. Dispatch is fail-closed: unknown names never fall
// through to another tool.
var ErrUnknownTool = errors.New("unknown tool")

// Result is the outcome of one tool execution. Text goes back to the
// model; Sources are the citations the UI shows for this call.
type Result struct {
	Text    string
	Sources []models.Source
}

// Tool is a function the LLM can call during generation.
type Tool interface {
	// Definition describes the tool to the model.
	Definition() llms.Tool
	// Execute runs the tool with the model-provided JSON arguments.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// Registry holds the tools available to a generation run and
// dispatches calls by name.
type Registry struct {
	tools map[string]Tool
	order []string
	log   *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		tools: map[string]Tool{},
		log:   log,
	}
}

// Register adds a tool. Registering a name twice replaces the earlier
// tool.
func (r *Registry) Register(t Tool) {
	name := t.Definition().Function.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Definitions returns the tool declarations in registration order, for
// passing to the model.
func (r *Registry) Definitions() []llms.Tool {
	defs := make([]llms.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute dispatches a tool call by name.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	tool, ok := r.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	r.log.Debug("executing tool", "tool", name)
	result, err := tool.Execute(ctx, args)
	if err != nil {
		r.log.Warn("tool execution failed", "tool", name, "error", err)
		return Result{}, err
	}
	return result, nil
}
