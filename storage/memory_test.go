package storage

import (
	"context"
	"testing"

	"github.com/richinex/loom/llm"
)

func TestInMemoryStorageSaveAndLoad(t *testing.T) {
	storage := NewInMemoryStorage()
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
}

func TestInMemoryStorageLoadNonexistent(t *testing.T) {
	storage := NewInMemoryStorage()

	loaded, err := storage.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty history, got %d", len(loaded))
	}
}

func TestInMemoryStorageIsolation(t *testing.T) {
	storage := NewInMemoryStorage()
	ctx := context.Background()

	original := []*llm.Message{llm.UserMessage("original")}
	if err := storage.Save(ctx, "s", original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the caller's message after save must not leak into storage
	original[0].SetContent("mutated")

	loaded, err := storage.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded[0].Text() != "original" {
		t.Errorf("stored history shares caller memory: %q", loaded[0].Text())
	}
}

func TestInMemoryStorageDelete(t *testing.T) {
	storage := NewInMemoryStorage()
	ctx := context.Background()

	if err := storage.Save(ctx, "s", []*llm.Message{llm.UserMessage("x")}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := storage.Delete(ctx, "s"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := storage.Exists(ctx, "s")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("session should not exist after delete")
	}
}

func TestInMemoryStorageListSessions(t *testing.T) {
	storage := NewInMemoryStorage()
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := storage.Save(ctx, id, []*llm.Message{llm.UserMessage("x")}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	sessions, err := storage.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(sessions))
	}
}
