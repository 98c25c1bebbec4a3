// Package chat implements the stream normalization and tool-call
// resolution engine on top of the canonical llm chunk model.
//
// Information Hiding:
// - Turn state machine internals hidden behind Session
// - Tool-call fragment reassembly hidden behind ToolCallAccumulator
// - History mutation funneled through Conversation
package chat

import (
	"github.com/richinex/loom/llm"
)

// Conversation is the ordered message history for one chat session.
//
// The conversation owns message lifetime: the engine appends and mutates
// through it and holds no second reference across turns. Not safe for
// concurrent mutation; callers serialize turns (one in-flight turn per
// conversation).
type Conversation struct {
	messages []*llm.Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds a message at the end of history.
func (c *Conversation) Append(msg *llm.Message) {
	c.messages = append(c.messages, msg)
}

// InsertAt adds a message at an explicit index. Indexes out of range are
// clamped to the valid bounds.
func (c *Conversation) InsertAt(index int, msg *llm.Message) {
	if index < 0 {
		index = 0
	}
	if index >= len(c.messages) {
		c.messages = append(c.messages, msg)
		return
	}
	c.messages = append(c.messages[:index], append([]*llm.Message{msg}, c.messages[index:]...)...)
}

// Remove deletes a message by identity. No-op if the message is absent.
func (c *Conversation) Remove(msg *llm.Message) {
	for i, m := range c.messages {
		if m == msg {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return
		}
	}
}

// RemoveByID deletes a message by id. Returns false (not an error) if no
// message carries the id.
func (c *Conversation) RemoveByID(id string) bool {
	for i, m := range c.messages {
		if m.ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the message with the given id.
func (c *Conversation) Get(id string) (*llm.Message, bool) {
	for _, m := range c.messages {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// SetContentByID replaces a message's text content by id lookup.
// Returns whether the message was found.
func (c *Conversation) SetContentByID(id, content string) bool {
	msg, ok := c.Get(id)
	if !ok {
		return false
	}
	msg.SetContent(content)
	return true
}

// SetPartsByID replaces a message's content parts by id lookup.
// Returns whether the message was found.
func (c *Conversation) SetPartsByID(id string, parts []llm.ContentPart) bool {
	msg, ok := c.Get(id)
	if !ok {
		return false
	}
	msg.SetParts(parts)
	return true
}

// SetRoleByID changes a message's role by id lookup.
// Returns whether the message was found.
func (c *Conversation) SetRoleByID(id string, role llm.Role) bool {
	msg, ok := c.Get(id)
	if !ok {
		return false
	}
	msg.Role = role
	return true
}

// LastOfRole returns the most recently appended message with the role.
func (c *Conversation) LastOfRole(role llm.Role) *llm.Message {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == role {
			return c.messages[i]
		}
	}
	return nil
}

// Messages returns the history in turn order. The slice is a copy; the
// messages are shared.
func (c *Conversation) Messages() []*llm.Message {
	out := make([]*llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in history.
func (c *Conversation) Len() int {
	return len(c.messages)
}
