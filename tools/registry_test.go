package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/richinex/loom/llm"
)

// echoTool returns its own name for any invocation.
type echoTool struct {
	name string
}

func (t *echoTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.name,
		Description: "echoes its name",
		Parameters:  map[string]any{"type": "object"},
	}
}

func (t *echoTool) Invoke(ctx context.Context, call llm.ToolCall) llm.FunctionResult {
	return llm.SuccessResult(fmt.Sprintf("echo:%s", t.name))
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&echoTool{name: "alpha"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tool, ok := registry.Get("alpha")
	if !ok || tool.Definition().Name != "alpha" {
		t.Error("registered tool not retrievable")
	}
	if !registry.Has("alpha") {
		t.Error("Has should report registered tool")
	}
	if registry.Has("beta") {
		t.Error("Has should not report unregistered tool")
	}
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&echoTool{name: "alpha"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := registry.Register(&echoTool{name: "alpha"}); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := registry.Register(&echoTool{name: name}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	defs := registry.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	if defs[0].Name != "alpha" || defs[1].Name != "mid" || defs[2].Name != "zeta" {
		t.Errorf("definitions not sorted: %v", registry.Names())
	}
}

func TestHandlerResultsInCallOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&echoTool{name: "first"})
	registry.Register(&echoTool{name: "second"})

	handler := registry.Handler()
	results, err := handler(context.Background(), []llm.ToolCall{
		{ID: "1", Name: "second"},
		{ID: "2", Name: "first"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Text() != "echo:second" || results[1].Text() != "echo:first" {
		t.Errorf("results out of call order: %q, %q", results[0].Text(), results[1].Text())
	}
}

func TestHandlerUnknownToolFails(t *testing.T) {
	registry := NewRegistry()
	handler := registry.Handler()

	results, err := handler(context.Background(), []llm.ToolCall{{Name: "ghost"}})
	if err != nil {
		t.Fatalf("unknown tool must not be a handler error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].InvocationSucceeded {
		t.Error("unknown tool should yield a failed result")
	}
}

func TestHandlerHonorsContextCancellation(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&echoTool{name: "alpha"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handler := registry.Handler()
	if _, err := handler(ctx, []llm.ToolCall{{Name: "alpha"}}); err == nil {
		t.Error("expected context cancellation error")
	}
}
