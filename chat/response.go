// Terminal rich response assembled from the deltas applied during a turn.

package chat

import (
	"strings"

	"github.com/richinex/loom/llm"
)

// BlockKind identifies the kind of a rich response block.
type BlockKind int

const (
	// BlockMessage carries assistant text.
	BlockMessage BlockKind = iota
	// BlockFunction carries one resolved call and its result.
	BlockFunction
)

// Block is one unit of the terminal rich response. Block order mirrors
// emission order during normalization, not arrival order of fragments.
type Block struct {
	Kind BlockKind

	// Message is set for BlockMessage.
	Message *llm.Message

	// Call and Result are set for BlockFunction. Result is nil when the
	// handler returned no result for the call.
	Call   *llm.ToolCall
	Result *llm.FunctionResult
}

// RichResponse is the terminal per-call-site result of a turn: the last
// raw provider chunk plus the ordered block sequence.
type RichResponse struct {
	Last   *llm.RawResult
	Blocks []Block
}

// Text returns the concatenated text of all message blocks.
func (r *RichResponse) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range r.Blocks {
		if block.Kind == BlockMessage && block.Message != nil {
			b.WriteString(block.Message.Text())
		}
	}
	return b.String()
}

// ToolCalls returns the calls of all function blocks in block order.
func (r *RichResponse) ToolCalls() []llm.ToolCall {
	if r == nil {
		return nil
	}
	var calls []llm.ToolCall
	for _, block := range r.Blocks {
		if block.Kind == BlockFunction && block.Call != nil {
			calls = append(calls, *block.Call)
		}
	}
	return calls
}

// Result is the tagged outcome of the safe send variant: either a
// response or the transport error, never both.
type Result struct {
	Response *RichResponse
	Err      error
}

// OK reports whether the turn completed without a transport failure.
func (r Result) OK() bool {
	return r.Err == nil
}
