// Optional hook set exposed to callers.
//
// Absence of a hook is a no-op, never a dispatch error. Hooks are invoked
// sequentially from the turn loop, never concurrently with each other.

package chat

import (
	"encoding/json"

	"github.com/richinex/loom/llm"
)

// Hooks is the recognized callback set for a session. Any subset may be
// left nil.
type Hooks struct {
	// OnRoleResolved fires at most once per turn, on the first chunk
	// carrying a non-null responding role, before any token event.
	OnRoleResolved func(role llm.Role)

	// OnToken fires for each assistant text fragment, in arrival order.
	// The first token of a turn has leading whitespace trimmed.
	OnToken func(token string)

	// OnToolCalls fires once per turn with the sealed, filtered call
	// batch, before the tool handler is invoked.
	OnToolCalls func(calls []llm.ToolCall)

	// OnUsage fires whenever a chunk reports token usage.
	OnUsage func(usage llm.Usage)

	// OnVendorFeatures fires for chunks that carry only vendor-specific
	// extension data.
	OnVendorFeatures func(extensions json.RawMessage)

	// OnAfterToolsResolved fires after tool results have been appended to
	// history, before the session-global after-tools hook.
	OnAfterToolsResolved func(response *RichResponse, results []llm.FunctionResult)
}

func (h Hooks) fireRoleResolved(role llm.Role) {
	if h.OnRoleResolved != nil {
		h.OnRoleResolved(role)
	}
}

func (h Hooks) fireToken(token string) {
	if h.OnToken != nil {
		h.OnToken(token)
	}
}

func (h Hooks) fireToolCalls(calls []llm.ToolCall) {
	if h.OnToolCalls != nil {
		h.OnToolCalls(calls)
	}
}

func (h Hooks) fireUsage(usage llm.Usage) {
	if h.OnUsage != nil {
		h.OnUsage(usage)
	}
}

func (h Hooks) fireVendorFeatures(extensions json.RawMessage) {
	if h.OnVendorFeatures != nil {
		h.OnVendorFeatures(extensions)
	}
}

func (h Hooks) fireAfterToolsResolved(response *RichResponse, results []llm.FunctionResult) {
	if h.OnAfterToolsResolved != nil {
		h.OnAfterToolsResolved(response, results)
	}
}
