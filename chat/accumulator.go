// Tool-call fragment reassembly.
//
// Information Hiding:
// - Per-position buffers and their ordering hidden behind Feed/Seal

package chat

import (
	"sort"
	"strings"

	"github.com/richinex/loom/llm"
)

// ToolCallAccumulator reassembles partial tool-call fragments into
// complete calls, keyed by call position. State is turn-scoped: Seal
// returns the completed calls and clears the accumulator.
type ToolCallAccumulator struct {
	buffers map[int]*callBuffer
}

type callBuffer struct {
	id   string
	name string
	args strings.Builder
}

// NewToolCallAccumulator creates an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{
		buffers: make(map[int]*callBuffer),
	}
}

// Feed appends a fragment to the buffer at its index, creating the buffer
// on first sight. ID and name are recorded the first time each is seen;
// argument fragments are concatenated in arrival order.
func (a *ToolCallAccumulator) Feed(frag llm.ToolCallFragment) {
	buf, ok := a.buffers[frag.Index]
	if !ok {
		buf = &callBuffer{}
		a.buffers[frag.Index] = buf
	}
	if buf.id == "" && frag.ID != "" {
		buf.id = frag.ID
	}
	if buf.name == "" && frag.Name != "" {
		buf.name = frag.Name
	}
	buf.args.WriteString(frag.Arguments)
}

// FeedAll feeds a batch of fragments in order.
func (a *ToolCallAccumulator) FeedAll(frags []llm.ToolCallFragment) {
	for _, frag := range frags {
		a.Feed(frag)
	}
}

// Empty reports whether no fragments have been fed since the last seal.
func (a *ToolCallAccumulator) Empty() bool {
	return len(a.buffers) == 0
}

// Seal returns the completed calls in position order and clears the
// accumulator. A call with zero argument fragments yields an empty-string
// Arguments. Sealing twice yields an empty list the second time.
func (a *ToolCallAccumulator) Seal() []llm.ToolCall {
	if len(a.buffers) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(a.buffers))
	for index := range a.buffers {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	calls := make([]llm.ToolCall, 0, len(indexes))
	for _, index := range indexes {
		buf := a.buffers[index]
		calls = append(calls, llm.ToolCall{
			ID:        buf.id,
			Name:      buf.name,
			Arguments: buf.args.String(),
		})
	}

	a.buffers = make(map[int]*callBuffer)
	return calls
}
