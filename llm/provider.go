// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Wire format conversion to and from the canonical chunk model
// - Provider-specific streaming mechanics

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations translate vendor streams into canonical RawResult
// chunks; everything downstream of Recv is provider-agnostic.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// StreamChat opens a streaming chat completion and returns the lazy
	// chunk sequence. Tools may be nil when the caller offers none.
	StreamChat(ctx context.Context, messages []*Message, tools []ToolDefinition) (ChunkStream, error)
}
