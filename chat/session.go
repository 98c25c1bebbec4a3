// Session - one conversation against one provider.
//
// The turn loop is the stream normalizer: it pulls raw chunks from the
// provider, resolves the responding role once, emits ordered token
// events, absorbs vendor-internal control chunks, and hands sealed
// tool-call batches to the coordinator. Turn progress is an explicit
// state machine; "stop reading after tool resolution" is a transition to
// stateResolved, not a control-flow jump.

package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"unicode"

	"github.com/richinex/loom/llm"
)

// ToolHandler executes a whole batch of tool calls and returns one result
// per call, in call order. It is invoked at most once per turn and
// awaited to completion before the engine resumes.
type ToolHandler func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error)

// AfterToolsHook observes a completed tool resolution. The session-global
// hook runs after the per-call-site OnAfterToolsResolved hook.
type AfterToolsHook func(response *RichResponse, results []llm.FunctionResult)

// Session drives conversation turns against a provider. A session owns
// its conversation history; callers run one turn at a time.
type Session struct {
	provider   llm.Provider
	conv       *Conversation
	hooks      Hooks
	handler    ToolHandler
	tools      []llm.ToolDefinition
	known      map[string]struct{}
	afterTools AfterToolsHook
}

// NewSession creates a session with an empty conversation.
func NewSession(provider llm.Provider) *Session {
	return &Session{
		provider: provider,
		conv:     NewConversation(),
		known:    make(map[string]struct{}),
	}
}

// WithHooks sets the caller hook set.
func (s *Session) WithHooks(hooks Hooks) *Session {
	s.hooks = hooks
	return s
}

// WithToolHandler registers the external batch handler for tool calls.
func (s *Session) WithToolHandler(handler ToolHandler) *Session {
	s.handler = handler
	return s
}

// WithTools sets the tool definitions offered to the provider.
func (s *Session) WithTools(tools []llm.ToolDefinition) *Session {
	s.tools = tools
	return s
}

// WithKnownFunctions marks engine-internal pseudo-tool names. Calls to
// these are dropped silently and never forwarded to the handler.
func (s *Session) WithKnownFunctions(names ...string) *Session {
	for _, name := range names {
		s.known[name] = struct{}{}
	}
	return s
}

// WithAfterToolsHook sets the session-global after-tools hook.
func (s *Session) WithAfterToolsHook(hook AfterToolsHook) *Session {
	s.afterTools = hook
	return s
}

// WithConversation replaces the session's history (e.g. loaded from
// storage).
func (s *Session) WithConversation(conv *Conversation) *Session {
	s.conv = conv
	return s
}

// Conversation returns the session's history.
func (s *Session) Conversation() *Conversation {
	return s.conv
}

// Send appends a user message and runs one turn against the provider.
// Transport failures are returned as errors; handler failures propagate
// with history left partially mutated.
func (s *Session) Send(ctx context.Context, text string) (*RichResponse, error) {
	s.conv.Append(llm.UserMessage(text))
	return s.runTurn(ctx)
}

// SendSafe is the non-raising variant of Send: it always returns a tagged
// result wrapping either the response or the error.
func (s *Session) SendSafe(ctx context.Context, text string) Result {
	response, err := s.Send(ctx, text)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Response: response}
}

// Continue runs another turn without appending a user message. Used to
// hand tool results back to the model after a tool-call turn.
func (s *Session) Continue(ctx context.Context) (*RichResponse, error) {
	return s.runTurn(ctx)
}

func (s *Session) runTurn(ctx context.Context) (*RichResponse, error) {
	stream, err := s.provider.StreamChat(ctx, s.conv.Messages(), s.tools)
	if err != nil {
		return nil, err
	}
	return s.ConsumeStream(ctx, stream)
}

// ConsumeStream runs one turn over an already-open chunk stream. Exposed
// for transport collaborators and recorded-trace replay.
func (s *Session) ConsumeStream(ctx context.Context, stream llm.ChunkStream) (*RichResponse, error) {
	defer stream.Close()

	t := &turn{
		session: s,
		state:   stateAwaitingRole,
		acc:     NewToolCallAccumulator(),
	}

	for t.state != stateResolved && t.state != stateDone {
		chunk, err := stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			t.state = stateDone
			break
		}
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			// a null result terminates the sequence, benignly
			t.state = stateDone
			break
		}
		if err := t.consume(ctx, chunk); err != nil {
			return nil, err
		}
	}

	if t.state == stateDone {
		t.flushAssistant()
	}
	return t.response(), nil
}

// turnState tracks turn progress through the normalization state machine.
type turnState int

const (
	stateAwaitingRole turnState = iota
	stateStreamingContent
	stateToolCallsPending
	stateResolved
	stateDone
)

// turn holds the per-turn normalization state. Discarded after the turn.
type turn struct {
	session *Session
	state   turnState
	acc     *ToolCallAccumulator

	text              strings.Builder
	firstTokenEmitted bool
	completionTokens  *uint32

	last   *llm.RawResult
	blocks []Block
}

// consume processes a single chunk in arrival order.
func (t *turn) consume(ctx context.Context, chunk *llm.RawResult) error {
	// internal control chunks are absorbed: no hooks fire for them
	if chunk.Internal == llm.InternalAppendAssistant {
		t.last = chunk
		t.synthesizeAssistant(chunk.Usage)
		return nil
	}

	if chunk.Usage != nil {
		t.applyUsage(*chunk.Usage)
	}

	if len(chunk.Choices) == 0 {
		if len(chunk.Extensions) > 0 {
			t.last = chunk
			t.session.hooks.fireVendorFeatures(chunk.Extensions)
			return nil
		}
		// an empty choice list terminates the turn, benignly
		t.state = stateDone
		return nil
	}

	t.last = chunk
	choice := chunk.Choices[0]
	delta := choice.Delta
	if delta == nil {
		if choice.FinishReason != llm.FinishReasonNone {
			return t.finish(ctx)
		}
		return nil
	}

	// role resolution requires a non-null role and fires once, before
	// any token event
	if delta.Role != nil && t.state == stateAwaitingRole {
		t.state = stateStreamingContent
		t.session.hooks.fireRoleResolved(*delta.Role)
	}

	if len(delta.ToolCalls) > 0 {
		t.acc.FeedAll(delta.ToolCalls)
		// a Tool-role delta is a turn boundary: seal and resolve now
		if delta.Role != nil && *delta.Role == llm.RoleTool {
			return t.resolveToolCalls(ctx)
		}
	} else if delta.Content != "" {
		t.emitToken(delta.Content)
	}

	if choice.FinishReason != llm.FinishReasonNone {
		return t.finish(ctx)
	}
	return nil
}

// finish handles a terminal chunk: pending tool calls are sealed and
// resolved; otherwise the stream is left to drain to EOF so trailing
// usage-only chunks are still observed.
func (t *turn) finish(ctx context.Context) error {
	if !t.acc.Empty() {
		return t.resolveToolCalls(ctx)
	}
	return nil
}

// emitToken applies the first-token trim rule and fires the token hook.
// The rule is global for the turn, not per chunk: only the first
// non-empty token is trimmed, all later ones pass through verbatim.
func (t *turn) emitToken(content string) {
	if !t.firstTokenEmitted {
		trimmed := strings.TrimLeftFunc(content, unicode.IsSpace)
		if trimmed == "" {
			return
		}
		t.firstTokenEmitted = true
		t.text.WriteString(trimmed)
		t.session.hooks.fireToken(trimmed)
		return
	}
	t.text.WriteString(content)
	t.session.hooks.fireToken(content)
}

// applyUsage surfaces usage: prompt tokens attach to the most recent user
// message, completion tokens to the in-progress assistant message.
func (t *turn) applyUsage(usage llm.Usage) {
	t.session.hooks.fireUsage(usage)

	if usage.PromptTokens > 0 {
		if user := t.session.conv.LastOfRole(llm.RoleUser); user != nil {
			tokens := usage.PromptTokens
			user.Tokens = &tokens
		}
	}
	if usage.CompletionTokens > 0 {
		tokens := usage.CompletionTokens
		t.completionTokens = &tokens
	}
}

// synthesizeAssistant services an append-assistant control chunk: the
// accumulated text becomes an Assistant history entry, token-stamped from
// usage, with no hook invocation.
func (t *turn) synthesizeAssistant(usage *llm.Usage) {
	if usage != nil && usage.CompletionTokens > 0 {
		tokens := usage.CompletionTokens
		t.completionTokens = &tokens
	}
	if t.text.Len() == 0 {
		return
	}
	msg := llm.AssistantMessage(t.text.String())
	msg.Tokens = t.completionTokens
	t.session.conv.Append(msg)
	t.blocks = append(t.blocks, Block{Kind: BlockMessage, Message: msg})
	t.text.Reset()
}

// flushAssistant appends any accumulated assistant text at stream end.
func (t *turn) flushAssistant() {
	if t.text.Len() == 0 {
		return
	}
	msg := llm.AssistantMessage(t.text.String())
	msg.Tokens = t.completionTokens
	t.session.conv.Append(msg)
	t.blocks = append(t.blocks, Block{Kind: BlockMessage, Message: msg})
	t.text.Reset()
}

func (t *turn) response() *RichResponse {
	return &RichResponse{Last: t.last, Blocks: t.blocks}
}
