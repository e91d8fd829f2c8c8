package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	sm := NewSessionManager("")

	s1 := sm.GetOrCreate("telegram:123")
	s2 := sm.GetOrCreate("telegram:123")

	if s1 != s2 {
		t.Error("GetOrCreate should return the same session for the same key")
	}
}

func TestAddMessageAndHistory(t *testing.T) {
	sm := NewSessionManager("")

	sm.AddMessage("cli:direct", "user", "hello")
	sm.AddMessage("cli:direct", "assistant", "hi there")

	history := sm.GetHistory("cli:direct")
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "hello" {
		t.Errorf("Unexpected first message: %+v", history[0])
	}
	if history[1].Role != "assistant" || history[1].Content != "hi there" {
		t.Errorf("Unexpected second message: %+v", history[1])
	}
}

func TestHistoryIsACopy(t *testing.T) {
	sm := NewSessionManager("")
	sm.AddMessage("cli:direct", "user", "original")

	history := sm.GetHistory("cli:direct")
	history[0].Content = "mutated"

	fresh := sm.GetHistory("cli:direct")
	if fresh[0].Content != "original" {
		t.Error("Mutating the returned history should not affect the stored session")
	}
}

func TestUnknownKeyYieldsEmptyHistory(t *testing.T) {
	sm := NewSessionManager("")

	history := sm.GetHistory("nope:missing")
	if history == nil {
		t.Fatal("Expected non-nil empty history")
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d messages", len(history))
	}
}

func TestClear(t *testing.T) {
	sm := NewSessionManager("")
	sm.AddMessage("discord:42", "user", "hello")
	sm.Clear("discord:42")

	if len(sm.GetHistory("discord:42")) != 0 {
		t.Error("Clear should empty the session history")
	}
}

func TestSaveAndReload(t *testing.T) {
	tempDir := t.TempDir()

	sm := NewSessionManager(tempDir)
	sm.AddMessage("telegram:123", "user", "remember this")
	sm.AddMessage("telegram:123", "assistant", "noted")

	if err := sm.Save("telegram:123"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Colon in the key must be sanitized in the filename.
	if _, err := os.Stat(filepath.Join(tempDir, "telegram_123.json")); err != nil {
		t.Fatalf("Expected session file telegram_123.json: %v", err)
	}

	reloaded := NewSessionManager(tempDir)
	history := reloaded.GetHistory("telegram:123")
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages after reload, got %d", len(history))
	}
	if history[1].Content != "noted" {
		t.Errorf("Unexpected reloaded content: %q", history[1].Content)
	}
}

func TestSaveRejectsTraversalKeys(t *testing.T) {
	tempDir := t.TempDir()
	sm := NewSessionManager(tempDir)

	for _, key := range []string{"../escape", "a/b", `a\b`, ".."} {
		sm.AddMessage(key, "user", "x")
		if err := sm.Save(key); err == nil {
			t.Errorf("Save(%q) should have been rejected", key)
		}
	}
}

func TestSaveUnknownKeyIsNoop(t *testing.T) {
	sm := NewSessionManager(t.TempDir())
	if err := sm.Save("never:seen"); err != nil {
		t.Errorf("Saving an unknown key should be a no-op, got %v", err)
	}
}
