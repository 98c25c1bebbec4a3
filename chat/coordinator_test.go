package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/richinex/loom/llm"
)

func toolCallStream() *llm.SliceStream {
	return llm.NewSliceStream(
		roleChunk(llm.RoleAssistant),
		toolFragmentChunk(llm.ToolCallFragment{Index: 0, ID: "call_1", Name: "lookup"}),
		toolFragmentChunk(llm.ToolCallFragment{Index: 0, Arguments: `{"key":`}),
		toolFragmentChunk(llm.ToolCallFragment{Index: 0, Arguments: `"value"}`}),
		finishChunk(llm.FinishReasonToolCalls),
		contentChunk("trailing content that must be dropped"),
	)
}

func TestToolCallRoundTrip(t *testing.T) {
	stream := toolCallStream()

	var handled []llm.ToolCall
	session := sessionOver(stream).WithToolHandler(
		func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
			handled = calls
			return []llm.FunctionResult{llm.SuccessResult("42")}, nil
		},
	)

	resp, err := session.Send(context.Background(), "look it up")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(handled) != 1 {
		t.Fatalf("expected handler to receive 1 call, got %d", len(handled))
	}
	if handled[0].Name != "lookup" || handled[0].Arguments != `{"key":"value"}` {
		t.Errorf("handler received wrong call: %+v", handled[0])
	}

	messages := session.Conversation().Messages()
	if len(messages) != 3 {
		t.Fatalf("expected user + assistant + tool messages, got %d", len(messages))
	}
	assistant := messages[1]
	if assistant.Role != llm.RoleAssistant || len(assistant.ToolCalls) != 1 {
		t.Errorf("assistant call message wrong: %+v", assistant)
	}
	tool := messages[2]
	if tool.Role != llm.RoleTool || tool.ToolCallID != "call_1" {
		t.Errorf("tool message wrong: %+v", tool)
	}
	if tool.Text() != "42" {
		t.Errorf("expected tool content '42', got %q", tool.Text())
	}
	if tool.ToolInvocationSucceeded == nil || !*tool.ToolInvocationSucceeded {
		t.Error("expected success outcome recorded")
	}

	calls := resp.ToolCalls()
	if len(calls) != 1 || calls[0].ID != "call_1" {
		t.Errorf("response blocks missing the call: %+v", calls)
	}
}

func TestTurnStopsAfterToolResolution(t *testing.T) {
	stream := toolCallStream()

	session := sessionOver(stream).WithToolHandler(
		func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
			return []llm.FunctionResult{llm.SuccessResult("done")}, nil
		},
	)

	if _, err := session.Send(context.Background(), "go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 5 chunks read: role, 3 fragments, finish. The trailing content
	// chunk is never pulled.
	if stream.Consumed() != 5 {
		t.Errorf("expected 5 chunks consumed, got %d", stream.Consumed())
	}
}

func TestKnownFunctionsFilteredFromBatch(t *testing.T) {
	stream := llm.NewSliceStream(
		roleChunk(llm.RoleAssistant),
		toolFragmentChunk(
			llm.ToolCallFragment{Index: 0, ID: "call_1", Name: "emit_thought", Arguments: `{}`},
			llm.ToolCallFragment{Index: 1, ID: "call_2", Name: "lookup", Arguments: `{}`},
		),
		finishChunk(llm.FinishReasonToolCalls),
	)

	var handled []llm.ToolCall
	session := sessionOver(stream).
		WithKnownFunctions("emit_thought").
		WithToolHandler(func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
			handled = calls
			return []llm.FunctionResult{llm.SuccessResult("ok")}, nil
		})

	if _, err := session.Send(context.Background(), "go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(handled) != 1 || handled[0].Name != "lookup" {
		t.Errorf("internal pseudo-tool leaked to handler: %+v", handled)
	}
}

func TestAllInternalBatchKeepsStreaming(t *testing.T) {
	stream := llm.NewSliceStream(
		roleChunk(llm.RoleAssistant),
		toolFragmentChunk(llm.ToolCallFragment{Index: 0, Name: "emit_thought", Arguments: `{}`}),
		finishChunk(llm.FinishReasonToolCalls),
		contentChunk("visible text"),
		finishChunk(llm.FinishReasonStop),
	)

	handlerCalled := false
	session := sessionOver(stream).
		WithKnownFunctions("emit_thought").
		WithToolHandler(func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
			handlerCalled = true
			return nil, nil
		})

	resp, err := session.Send(context.Background(), "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if handlerCalled {
		t.Error("handler must not run for an all-internal batch")
	}
	if resp.Text() != "visible text" {
		t.Errorf("expected streaming to continue, got %q", resp.Text())
	}
}

func TestMissingResultGetsSentinel(t *testing.T) {
	stream := llm.NewSliceStream(
		roleChunk(llm.RoleAssistant),
		toolFragmentChunk(
			llm.ToolCallFragment{Index: 0, ID: "call_1", Name: "first", Arguments: `{}`},
			llm.ToolCallFragment{Index: 1, ID: "call_2", Name: "second", Arguments: `{}`},
		),
		finishChunk(llm.FinishReasonToolCalls),
	)

	session := sessionOver(stream).WithToolHandler(
		func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
			// one result short
			return []llm.FunctionResult{llm.SuccessResult("done")}, nil
		},
	)

	if _, err := session.Send(context.Background(), "go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages := session.Conversation().Messages()
	if len(messages) != 4 {
		t.Fatalf("expected user + assistant + 2 tool messages, got %d", len(messages))
	}
	second := messages[3]
	if second.Text() != llm.NoDataSentinel {
		t.Errorf("expected sentinel content, got %q", second.Text())
	}
	if second.ToolInvocationSucceeded == nil || *second.ToolInvocationSucceeded {
		t.Error("missing result must record failure")
	}
}

func TestNoHandlerRegistered(t *testing.T) {
	stream := llm.NewSliceStream(
		roleChunk(llm.RoleAssistant),
		toolFragmentChunk(llm.ToolCallFragment{Index: 0, Name: "lookup", Arguments: `{}`}),
		finishChunk(llm.FinishReasonToolCalls),
	)

	session := sessionOver(stream)
	_, err := session.Send(context.Background(), "go")
	if err == nil {
		t.Fatal("expected error when no handler is registered")
	}
	if !strings.Contains(err.Error(), "no tool handler") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHandlerFailurePropagates(t *testing.T) {
	stream := llm.NewSliceStream(
		roleChunk(llm.RoleAssistant),
		toolFragmentChunk(llm.ToolCallFragment{Index: 0, ID: "call_1", Name: "lookup", Arguments: `{}`}),
		finishChunk(llm.FinishReasonToolCalls),
	)

	boom := errors.New("backend down")
	session := sessionOver(stream).WithToolHandler(
		func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
			return nil, boom
		},
	)

	_, err := session.Send(context.Background(), "go")
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error to propagate, got %v", err)
	}

	// The assistant call message is committed; no tool messages follow.
	messages := session.Conversation().Messages()
	if len(messages) != 2 {
		t.Fatalf("expected user + assistant, got %d messages", len(messages))
	}
	if messages[1].Role != llm.RoleAssistant || len(messages[1].ToolCalls) != 1 {
		t.Errorf("assistant call message not committed: %+v", messages[1])
	}
}

func TestToolRoleDeltaSealsImmediately(t *testing.T) {
	toolRole := llm.RoleTool
	stream := llm.NewSliceStream(
		roleChunk(llm.RoleAssistant),
		&llm.RawResult{Choices: []llm.StreamChoice{{Delta: &llm.Delta{
			Role: &toolRole,
			ToolCalls: []llm.ToolCallFragment{
				{Index: 0, ID: "call_1", Name: "lookup", Arguments: `{}`},
			},
		}}}},
		contentChunk("never pulled"),
	)

	session := sessionOver(stream).WithToolHandler(
		func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
			return []llm.FunctionResult{llm.SuccessResult("ok")}, nil
		},
	)

	if _, err := session.Send(context.Background(), "go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stream.Consumed() != 2 {
		t.Errorf("tool-role delta must seal without a finish reason, consumed %d", stream.Consumed())
	}
}

func TestAssistantTextPrecedesToolCalls(t *testing.T) {
	stream := llm.NewSliceStream(
		roleContentChunk(llm.RoleAssistant, "Let me check."),
		toolFragmentChunk(llm.ToolCallFragment{Index: 0, ID: "call_1", Name: "lookup", Arguments: `{}`}),
		finishChunk(llm.FinishReasonToolCalls),
	)

	var batchSeen []llm.ToolCall
	session := sessionOver(stream).
		WithHooks(Hooks{OnToolCalls: func(calls []llm.ToolCall) { batchSeen = calls }}).
		WithToolHandler(func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
			return []llm.FunctionResult{llm.SuccessResult("found")}, nil
		})

	resp, err := session.Send(context.Background(), "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batchSeen) != 1 {
		t.Fatalf("tool-calls hook fired with %d calls", len(batchSeen))
	}
	if resp.Text() != "Let me check." {
		t.Errorf("preamble text lost: %q", resp.Text())
	}
	if len(resp.Blocks) != 2 {
		t.Fatalf("expected message + function blocks, got %d", len(resp.Blocks))
	}
	if resp.Blocks[0].Kind != BlockMessage || resp.Blocks[1].Kind != BlockFunction {
		t.Errorf("unexpected block order: %v, %v", resp.Blocks[0].Kind, resp.Blocks[1].Kind)
	}
}

func TestAfterToolsHookOrder(t *testing.T) {
	stream := toolCallStream()

	var order []string
	session := sessionOver(stream).
		WithHooks(Hooks{
			OnAfterToolsResolved: func(resp *RichResponse, results []llm.FunctionResult) {
				order = append(order, "call-site")
			},
		}).
		WithAfterToolsHook(func(resp *RichResponse, results []llm.FunctionResult) {
			order = append(order, "session")
		}).
		WithToolHandler(func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
			return []llm.FunctionResult{llm.SuccessResult("ok")}, nil
		})

	if _, err := session.Send(context.Background(), "go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "call-site" || order[1] != "session" {
		t.Errorf("unexpected hook order: %v", order)
	}
}

func TestContinueHandsResultsBack(t *testing.T) {
	provider := &stubProvider{streams: []llm.ChunkStream{
		toolCallStream(),
		llm.NewSliceStream(
			roleContentChunk(llm.RoleAssistant, "The answer is 42."),
			finishChunk(llm.FinishReasonStop),
		),
	}}

	session := NewSession(provider).WithToolHandler(
		func(ctx context.Context, calls []llm.ToolCall) ([]llm.FunctionResult, error) {
			return []llm.FunctionResult{llm.SuccessResult("42")}, nil
		},
	)

	ctx := context.Background()
	first, err := session.Send(ctx, "what is the answer?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.ToolCalls()) != 1 {
		t.Fatalf("expected a tool-call turn first")
	}

	second, err := session.Continue(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Text() != "The answer is 42." {
		t.Errorf("unexpected follow-up text: %q", second.Text())
	}

	// user, assistant(calls), tool, assistant(answer)
	if n := session.Conversation().Len(); n != 4 {
		t.Errorf("expected 4 messages in history, got %d", n)
	}
}
