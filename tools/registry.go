// Tool registry and the batch handler adapter.
//
// Information Hiding:
// - Tool lifecycle management hidden
// - Batch dispatch mechanics hidden behind Handler

package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/richinex/loom/llm"
)

// Registry manages available tools with dynamic registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool to the registry.
// Returns error if a tool with the same name already exists.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Definition().Name
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool '%s' already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the schemas of all registered tools, sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Handler returns a whole-batch handler for the chat engine: one
// invocation per turn, one result per call in call order. A call naming
// an unregistered tool yields a failed result, not a handler error.
func (r *Registry) Handler() func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
	return func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
		results := make([]llm.FunctionResult, 0, len(calls))
		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tool, ok := r.Get(call.Name)
			if !ok {
				results = append(results, llm.FailureResult(fmt.Sprintf("tool '%s' not found", call.Name)))
				continue
			}
			results = append(results, tool.Invoke(ctx, call))
		}
		return results, nil
	}
}
