package storage

import (
	"context"
	"testing"

	"github.com/richinex/loom/llm"
)

func TestSqliteStorageSaveAndLoad(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()

	messages := []*llm.Message{
		llm.UserMessage("Hello"),
		llm.AssistantMessage("Hi there"),
	}

	if err := storage.Save(ctx, "test-session", messages); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "test-session")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded))
	}
	if loaded[0].Text() != "Hello" {
		t.Errorf("expected 'Hello', got %q", loaded[0].Text())
	}
	if loaded[1].Text() != "Hi there" {
		t.Errorf("expected 'Hi there', got %q", loaded[1].Text())
	}
	if loaded[0].ID != messages[0].ID {
		t.Errorf("message id not preserved: %q vs %q", loaded[0].ID, messages[0].ID)
	}
}

func TestSqliteStoragePreservesMessageShape(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()

	assistant := llm.NewMessage(llm.RoleAssistant)
	assistant.ToolCalls = []llm.ToolCall{
		{ID: "call_1", Name: "lookup", Arguments: `{"key":"value"}`},
	}
	tokens := uint32(17)
	assistant.Tokens = &tokens

	tool := llm.ToolMessage("call_1", "result data", true)

	multi := llm.NewMessage(llm.RoleUser)
	multi.SetParts([]llm.ContentPart{
		llm.TextPart("look at this"),
		llm.ImagePart("https://example.com/img.png"),
	})

	history := []*llm.Message{assistant, tool, multi}
	if err := storage.Save(ctx, "shapes", history); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "shapes")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(loaded))
	}

	if len(loaded[0].ToolCalls) != 1 || loaded[0].ToolCalls[0].Arguments != `{"key":"value"}` {
		t.Errorf("tool calls not preserved: %+v", loaded[0].ToolCalls)
	}
	if loaded[0].Tokens == nil || *loaded[0].Tokens != 17 {
		t.Errorf("tokens not preserved: %v", loaded[0].Tokens)
	}
	if loaded[1].ToolCallID != "call_1" {
		t.Errorf("tool call id not preserved: %q", loaded[1].ToolCallID)
	}
	if loaded[1].ToolInvocationSucceeded == nil || !*loaded[1].ToolInvocationSucceeded {
		t.Error("invocation outcome not preserved")
	}
	if len(loaded[2].Parts) != 2 || loaded[2].Parts[1].URL != "https://example.com/img.png" {
		t.Errorf("parts not preserved: %+v", loaded[2].Parts)
	}
}

func TestSqliteStorageLoadNonexistentSession(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	loaded, err := storage.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty slice, got %d messages", len(loaded))
	}
}

func TestSqliteStorageSaveReplacesHistory(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()

	if err := storage.Save(ctx, "s", []*llm.Message{llm.UserMessage("one"), llm.UserMessage("two")}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := storage.Save(ctx, "s", []*llm.Message{llm.UserMessage("only")}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Text() != "only" {
		t.Errorf("save must replace prior history, got %d messages", len(loaded))
	}
}

func TestSqliteStorageDeleteSession(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()

	if err := storage.Save(ctx, "test-session", []*llm.Message{llm.UserMessage("Test")}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := storage.Delete(ctx, "test-session"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := storage.Exists(ctx, "test-session")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("session should not exist after delete")
	}
}

func TestSqliteStorageListSessions(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		if err := storage.Save(ctx, id, []*llm.Message{llm.UserMessage("x")}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	sessions, err := storage.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0] != "a" || sessions[1] != "b" || sessions[2] != "c" {
		t.Errorf("expected sorted sessions, got %v", sessions)
	}
}
