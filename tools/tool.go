// Package tools provides a local tool implementation of the chat
// engine's batch handler contract.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Registry storage and lookup hidden from consumers
// - Error handling internalized per tool
package tools

import (
	"context"

	"github.com/richinex/loom/llm"
)

// Tool is the interface local tools implement. Invoke reports failures
// through the FunctionResult success flag rather than an error: a failed
// invocation is still a result the model should see.
type Tool interface {
	// Definition returns the tool's schema as offered to the model.
	Definition() llm.ToolDefinition

	// Invoke runs the tool for one resolved call.
	Invoke(ctx context.Context, call llm.ToolCall) llm.FunctionResult
}

// Definitions collects the schemas of the given tools.
func Definitions(tools ...Tool) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = t.Definition()
	}
	return defs
}
