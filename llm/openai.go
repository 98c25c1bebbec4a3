// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - SSE chunk decoding via go-openai; canonical mapping done here

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// StreamChat opens a streaming chat completion.
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []*Message, tools []ToolDefinition) (ChunkStream, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if len(tools) > 0 {
		req.Tools = convertToOpenAITools(tools)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("stream creation failed: %w", err)
	}
	return &openAIStream{stream: stream}, nil
}

// openAIStream adapts go-openai's stream to the canonical chunk model.
type openAIStream struct {
	stream *openai.ChatCompletionStream
	closed bool
}

// Recv maps the next vendor chunk to a RawResult.
func (s *openAIStream) Recv(ctx context.Context) (*RawResult, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("stream recv failed: %w", err)
	}
	return convertOpenAIChunk(resp), nil
}

// Close releases the underlying SSE connection.
func (s *openAIStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}

// convertOpenAIChunk maps one streamed response to the canonical shape.
func convertOpenAIChunk(resp openai.ChatCompletionStreamResponse) *RawResult {
	result := &RawResult{}

	if resp.Usage != nil {
		result.Usage = &Usage{
			PromptTokens:     uint32(resp.Usage.PromptTokens),
			CompletionTokens: uint32(resp.Usage.CompletionTokens),
			TotalTokens:      uint32(resp.Usage.TotalTokens),
		}
	}

	for _, choice := range resp.Choices {
		delta := &Delta{Content: choice.Delta.Content}
		if choice.Delta.Role != "" {
			role := ParseRole(choice.Delta.Role)
			delta.Role = &role
		}
		for i, tc := range choice.Delta.ToolCalls {
			index := i
			if tc.Index != nil {
				index = *tc.Index
			}
			delta.ToolCalls = append(delta.ToolCalls, ToolCallFragment{
				Index:     index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		result.Choices = append(result.Choices, StreamChoice{
			Delta:        delta,
			FinishReason: FinishReason(choice.FinishReason),
		})
	}

	return result
}

// convertToOpenAIMessages converts canonical messages to openai format,
// carrying tool calls, tool results, and multi-part content.
func convertToOpenAIMessages(messages []*Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role: string(msg.Role),
		}

		if msg.Content != nil {
			oaiMsg.Content = *msg.Content
		} else if len(msg.Parts) > 0 {
			oaiMsg.MultiContent = convertToOpenAIParts(msg.Parts)
		}

		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		if msg.ToolCallID != "" {
			oaiMsg.ToolCallID = msg.ToolCallID
		}

		result[i] = oaiMsg
	}
	return result
}

// convertToOpenAIParts converts typed content parts to openai multi-content.
func convertToOpenAIParts(parts []ContentPart) []openai.ChatMessagePart {
	var result []openai.ChatMessagePart
	for _, p := range parts {
		switch p.Type {
		case ContentPartText:
			result = append(result, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		case ContentPartImage:
			result = append(result, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: p.URL,
				},
			})
		}
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
var _ ChunkStream = (*openAIStream)(nil)
