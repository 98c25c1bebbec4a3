// Tool execution coordination.
//
// A turn that produces tool calls always yields control back to the
// caller after resolving them rather than draining the rest of the
// stream; continuing the conversation requires a new engine call. A
// provider that emits trailing content after a tool-call batch in the
// same stream has that content dropped.

package chat

import (
	"context"
	"fmt"

	"github.com/richinex/loom/llm"
)

// resolveToolCalls seals the accumulated batch, filters known/internal
// pseudo-tools, appends the assistant call message, runs the handler
// exactly once, appends one Tool-role result message per call, and fires
// the after-tools hooks. On handler failure the error propagates with the
// assistant message already committed and no result messages appended.
func (t *turn) resolveToolCalls(ctx context.Context) error {
	t.state = stateToolCallsPending

	calls := t.acc.Seal()
	visible := make([]llm.ToolCall, 0, len(calls))
	for _, call := range calls {
		if _, internal := t.session.known[call.Name]; internal {
			continue
		}
		visible = append(visible, call)
	}

	// a batch of nothing but internal pseudo-tools resolves to no work;
	// the turn keeps streaming
	if len(visible) == 0 {
		t.state = stateStreamingContent
		return nil
	}

	assistant := llm.NewMessage(llm.RoleAssistant)
	if t.text.Len() > 0 {
		assistant.SetContent(t.text.String())
		t.text.Reset()
		t.blocks = append(t.blocks, Block{Kind: BlockMessage, Message: assistant})
	}
	assistant.ToolCalls = visible
	assistant.Tokens = t.completionTokens
	t.session.conv.Append(assistant)

	t.session.hooks.fireToolCalls(visible)

	if t.session.handler == nil {
		return fmt.Errorf("chat: tool calls requested but no tool handler registered")
	}

	results, err := t.session.handler(ctx, visible)
	if err != nil {
		return fmt.Errorf("tool handler failed: %w", err)
	}

	for i := range visible {
		call := &visible[i]
		var result *llm.FunctionResult
		if i < len(results) {
			r := results[i]
			result = &r
		}

		content := llm.NoDataSentinel
		succeeded := false
		if result != nil {
			content = result.Text()
			succeeded = result.InvocationSucceeded
		}
		t.session.conv.Append(llm.ToolMessage(call.CallID(), content, succeeded))

		t.blocks = append(t.blocks, Block{Kind: BlockFunction, Call: call, Result: result})
	}

	t.state = stateResolved

	response := t.response()
	t.session.hooks.fireAfterToolsResolved(response, results)
	if t.session.afterTools != nil {
		t.session.afterTools(response, results)
	}
	return nil
}
