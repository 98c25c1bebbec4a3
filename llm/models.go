// Package llm provides the canonical chat data model shared by providers
// and the chat engine.
package llm

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Role identifies the author of a message or delta.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleUnknown   Role = "unknown"
)

// ParseRole maps a provider role string to a Role, defaulting to RoleUnknown.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// ContentPartType identifies the kind of a message content fragment.
type ContentPartType string

const (
	ContentPartText  ContentPartType = "text"
	ContentPartImage ContentPartType = "image"
)

// ContentPart is one typed fragment of a multi-part message.
type ContentPart struct {
	Type ContentPartType `json:"type"`

	// Text is set for ContentPartText.
	Text string `json:"text,omitempty"`

	// URL or Data/MIME are set for ContentPartImage.
	URL  string `json:"url,omitempty"`
	Data []byte `json:"data,omitempty"`
	MIME string `json:"mime,omitempty"`
}

// TextPart creates a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartText, Text: text}
}

// ImagePart creates an image content part referencing a URL.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: ContentPartImage, URL: url}
}

// Message is one contributor to a conversation turn.
//
// Content and Parts are mutually exclusive: setting one through the
// accessors clears the other. Tool-role messages always carry ToolCallID.
type Message struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Content   *string       `json:"content,omitempty"`
	Parts     []ContentPart `json:"parts,omitempty"`
	ToolCalls []ToolCall    `json:"tool_calls,omitempty"`

	// ToolCallID links a tool result back to the originating call.
	// Set only on Tool-role messages.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolInvocationSucceeded records the outcome of the linked call.
	// Set only on Tool-role messages.
	ToolInvocationSucceeded *bool `json:"tool_invocation_succeeded,omitempty"`

	// Tokens is the consumption count attached once usage is known.
	Tokens *uint32 `json:"tokens,omitempty"`
}

// NewMessage creates a message with a fresh id and the given role.
func NewMessage(role Role) *Message {
	return &Message{ID: uuid.NewString(), Role: role}
}

// SystemMessage creates a system message with plain text content.
func SystemMessage(content string) *Message {
	m := NewMessage(RoleSystem)
	m.SetContent(content)
	return m
}

// UserMessage creates a user message with plain text content.
func UserMessage(content string) *Message {
	m := NewMessage(RoleUser)
	m.SetContent(content)
	return m
}

// AssistantMessage creates an assistant message with plain text content.
func AssistantMessage(content string) *Message {
	m := NewMessage(RoleAssistant)
	m.SetContent(content)
	return m
}

// ToolMessage creates a tool result message linked to a call id.
func ToolMessage(toolCallID, content string, succeeded bool) *Message {
	m := NewMessage(RoleTool)
	m.ToolCallID = toolCallID
	m.ToolInvocationSucceeded = &succeeded
	m.SetContent(content)
	return m
}

// SetContent sets plain text content and clears any parts.
func (m *Message) SetContent(content string) {
	m.Content = &content
	m.Parts = nil
}

// SetParts sets typed content parts and clears plain text content.
func (m *Message) SetParts(parts []ContentPart) {
	m.Parts = parts
	m.Content = nil
}

// Text returns the message text: plain content when set, otherwise the
// concatenation of text parts.
func (m *Message) Text() string {
	if m.Content != nil {
		return *m.Content
	}
	out := ""
	for _, p := range m.Parts {
		if p.Type == ContentPartText {
			out += p.Text
		}
	}
	return out
}

// ToolCall is a single function invocation requested by the model.
// Arguments is raw JSON text assembled from streamed fragments.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CallID returns the identifier a tool result should link back to:
// the provider-assigned id, or the function name when no id was assigned.
func (c ToolCall) CallID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Name
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// NoDataSentinel substitutes for a nil tool result content.
const NoDataSentinel = "no data"

// FunctionResult is the outcome of invoking one ToolCall.
type FunctionResult struct {
	Content             *string `json:"content"`
	InvocationSucceeded bool    `json:"invocation_succeeded"`
}

// Text returns the result content, or the "no data" sentinel when nil.
func (r FunctionResult) Text() string {
	if r.Content == nil {
		return NoDataSentinel
	}
	return *r.Content
}

// SuccessResult creates a successful function result with content.
func SuccessResult(content string) FunctionResult {
	return FunctionResult{Content: &content, InvocationSucceeded: true}
}

// FailureResult creates a failed function result with content.
func FailureResult(content string) FunctionResult {
	return FunctionResult{Content: &content, InvocationSucceeded: false}
}

// Usage contains token usage reported by a provider.
type Usage struct {
	PromptTokens     uint32 `json:"prompt_tokens"`
	CompletionTokens uint32 `json:"completion_tokens"`
	TotalTokens      uint32 `json:"total_tokens"`
}

// FinishReason is the provider-reported reason a choice ended.
type FinishReason string

const (
	FinishReasonNone      FinishReason = ""
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
)

// InternalKind tags vendor-synthesized control chunks. Control chunks are
// consumed by the engine and never reach caller hooks.
type InternalKind int

const (
	// InternalNone marks an ordinary content chunk.
	InternalNone InternalKind = iota

	// InternalAppendAssistant instructs the engine to synthesize an
	// assistant message from the deltas accumulated so far and append it
	// to history.
	InternalAppendAssistant
)

// ToolCallFragment is an incremental piece of a tool call, keyed by the
// call's position within the turn. ID and Name arrive at most once per
// index; Arguments fragments are concatenated in arrival order.
type ToolCallFragment struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Delta is the incremental message fragment carried by a chunk.
type Delta struct {
	Role      *Role              `json:"role,omitempty"`
	Content   string             `json:"content,omitempty"`
	ToolCalls []ToolCallFragment `json:"tool_calls,omitempty"`
}

// StreamChoice is one alternative within a chunk.
type StreamChoice struct {
	Delta        *Delta       `json:"delta,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// RawResult is one unit of a provider's incremental response stream,
// already deserialized into the canonical shape.
type RawResult struct {
	Choices []StreamChoice `json:"choices,omitempty"`
	Usage   *Usage         `json:"usage,omitempty"`

	// Extensions carries vendor-specific payloads for chunks without
	// choices (surfaced through the vendor-features hook).
	Extensions json.RawMessage `json:"extensions,omitempty"`

	// Internal tags vendor-synthesized control chunks.
	Internal InternalKind `json:"-"`
}
