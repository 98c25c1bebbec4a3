// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Messages API event stream decoding
// - Content-block indexes remapped to dense tool-call positions
//
// The Messages API never repeats accumulated text in its final event, so
// the adapter emits an internal append-assistant control chunk at message
// stop. The engine synthesizes the history entry from its own accumulated
// deltas without surfacing anything to caller hooks.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string, maxTokens uint32, temperature float32) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:      client,
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// StreamChat opens a streaming chat completion.
func (p *AnthropicProvider) StreamChat(ctx context.Context, messages []*Message, tools []ToolDefinition) (ChunkStream, error) {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(p.temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}
	if len(tools) > 0 {
		params.Tools = convertToAnthropicTools(tools)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{
		stream:    stream,
		toolIndex: make(map[int64]int),
	}, nil
}

// anthropicStream adapts the Messages API event stream to the canonical
// chunk model. Tool-use content blocks are remapped to dense positions so
// downstream accumulation is position-keyed regardless of interleaved text
// blocks.
type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	closed bool

	toolIndex map[int64]int // content block index -> tool call position
	toolCount int
}

// Recv maps the next meaningful vendor event to a RawResult. Events with
// no canonical representation (content block stops) are skipped.
func (s *anthropicStream) Recv(ctx context.Context) (*RawResult, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.stream.Next() {
			if err := s.stream.Err(); err != nil {
				return nil, fmt.Errorf("stream error: %w", err)
			}
			return nil, io.EOF
		}

		result := s.convertEvent(s.stream.Current())
		if result != nil {
			return result, nil
		}
	}
}

// Close releases the underlying event stream.
func (s *anthropicStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}

// convertEvent maps one stream event; returns nil when the event carries
// nothing for the canonical model.
func (s *anthropicStream) convertEvent(event anthropic.MessageStreamEventUnion) *RawResult {
	switch eventVariant := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		role := ParseRole(string(eventVariant.Message.Role))
		result := &RawResult{
			Choices: []StreamChoice{{Delta: &Delta{Role: &role}}},
		}
		if eventVariant.Message.Usage.InputTokens > 0 {
			result.Usage = &Usage{
				PromptTokens: uint32(eventVariant.Message.Usage.InputTokens),
				TotalTokens:  uint32(eventVariant.Message.Usage.InputTokens),
			}
		}
		return result

	case anthropic.ContentBlockStartEvent:
		switch blockVariant := eventVariant.ContentBlock.AsAny().(type) {
		case anthropic.ToolUseBlock:
			position := s.toolCount
			s.toolIndex[eventVariant.Index] = position
			s.toolCount++
			return &RawResult{
				Choices: []StreamChoice{{Delta: &Delta{
					ToolCalls: []ToolCallFragment{{
						Index: position,
						ID:    blockVariant.ID,
						Name:  blockVariant.Name,
					}},
				}}},
			}
		}
		return nil

	case anthropic.ContentBlockDeltaEvent:
		switch deltaVariant := eventVariant.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if deltaVariant.Text == "" {
				return nil
			}
			return &RawResult{
				Choices: []StreamChoice{{Delta: &Delta{Content: deltaVariant.Text}}},
			}
		case anthropic.InputJSONDelta:
			if deltaVariant.PartialJSON == "" {
				return nil
			}
			position, ok := s.toolIndex[eventVariant.Index]
			if !ok {
				return nil
			}
			return &RawResult{
				Choices: []StreamChoice{{Delta: &Delta{
					ToolCalls: []ToolCallFragment{{
						Index:     position,
						Arguments: deltaVariant.PartialJSON,
					}},
				}}},
			}
		}
		return nil

	case anthropic.MessageDeltaEvent:
		result := &RawResult{
			Choices: []StreamChoice{{
				Delta:        &Delta{},
				FinishReason: convertAnthropicStopReason(string(eventVariant.Delta.StopReason)),
			}},
		}
		if eventVariant.Usage.OutputTokens > 0 {
			result.Usage = &Usage{
				CompletionTokens: uint32(eventVariant.Usage.OutputTokens),
				TotalTokens:      uint32(eventVariant.Usage.OutputTokens),
			}
		}
		return result

	case anthropic.MessageStopEvent:
		return &RawResult{Internal: InternalAppendAssistant}
	}

	return nil
}

// convertAnthropicStopReason maps stop reasons to canonical finish reasons.
func convertAnthropicStopReason(reason string) FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return FinishReasonStop
	case "max_tokens":
		return FinishReasonLength
	case "tool_use":
		return FinishReasonToolCalls
	default:
		return FinishReasonNone
	}
}

// convertToAnthropicMessages converts canonical messages to Anthropic
// format, carrying tool calls and tool results. The system message is
// extracted and returned separately.
func convertToAnthropicMessages(messages []*Message) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt = msg.Text()
		case RoleUser:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Text()),
			))
		case RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				content := &anthropic.MessageParam{
					Role: anthropic.MessageParamRoleAssistant,
				}
				if text := msg.Text(); text != "" {
					content.Content = append(content.Content, anthropic.NewTextBlock(text))
				}
				for _, tc := range msg.ToolCalls {
					var input map[string]interface{}
					_ = json.Unmarshal([]byte(tc.Arguments), &input)
					content.Content = append(content.Content, anthropic.ContentBlockParamUnion{
						OfToolUse: &anthropic.ToolUseBlockParam{
							ID:    tc.ID,
							Name:  tc.Name,
							Input: input,
						},
					})
				}
				anthropicMessages = append(anthropicMessages, *content)
			} else {
				anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(
					anthropic.NewTextBlock(msg.Text()),
				))
			}
		case RoleTool:
			isError := msg.ToolInvocationSucceeded != nil && !*msg.ToolInvocationSucceeded
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Text(), isError),
			))
		}
	}

	return anthropicMessages, systemPrompt
}

// convertToAnthropicTools converts tool definitions to Anthropic format.
func convertToAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		properties, _ := t.Parameters["properties"].(map[string]interface{})
		required, _ := t.Parameters["required"].([]string)

		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
var _ ChunkStream = (*anthropicStream)(nil)
