package heartbeat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clawlab/tinyclaw/pkg/tools"
)

func TestExecuteHeartbeat_CallsHandlerWithPrompt(t *testing.T) {
	workspace := t.TempDir()
	hs := NewHeartbeatService(workspace, 30, true)
	hs.SetTarget("telegram", "42")

	os.WriteFile(filepath.Join(workspace, "HEARTBEAT.md"), []byte("Check the calendar"), 0644)

	var gotPrompt, gotChannel, gotChatID string
	hs.SetHandler(func(prompt, channel, chatID string) *tools.ToolResult {
		gotPrompt, gotChannel, gotChatID = prompt, channel, chatID
		return tools.NewToolResult("HEARTBEAT_OK")
	})

	hs.executeHeartbeat()

	if !strings.Contains(gotPrompt, "Check the calendar") {
		t.Errorf("Prompt missing HEARTBEAT.md contents: %q", gotPrompt)
	}
	if !strings.Contains(gotPrompt, "HEARTBEAT_OK") {
		t.Error("Prompt should instruct the idle reply")
	}
	if gotChannel != "telegram" || gotChatID != "42" {
		t.Errorf("Target = %s:%s, want telegram:42", gotChannel, gotChatID)
	}
}

func TestExecuteHeartbeat_ErrorIsLogged(t *testing.T) {
	workspace := t.TempDir()
	hs := NewHeartbeatService(workspace, 30, true)

	hs.SetHandler(func(prompt, channel, chatID string) *tools.ToolResult {
		return tools.ErrorResult("connection error")
	})

	hs.executeHeartbeat()

	data, err := os.ReadFile(filepath.Join(workspace, "heartbeat.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "connection error") {
		t.Errorf("Log should record the failure, got: %s", data)
	}
}

func TestExecuteHeartbeat_NilResultDoesNotPanic(t *testing.T) {
	workspace := t.TempDir()
	hs := NewHeartbeatService(workspace, 30, true)

	hs.SetHandler(func(prompt, channel, chatID string) *tools.ToolResult {
		return nil
	})

	hs.executeHeartbeat()
}

func TestBuildPrompt_CreatesDefaultTemplate(t *testing.T) {
	workspace := t.TempDir()
	hs := NewHeartbeatService(workspace, 30, true)

	prompt := hs.buildPrompt()
	if prompt == "" {
		t.Fatal("Expected a prompt from the default template")
	}

	if _, err := os.Stat(filepath.Join(workspace, "HEARTBEAT.md")); os.IsNotExist(err) {
		t.Error("Default HEARTBEAT.md should be created at the workspace root")
	}
}

func TestSetCron_RejectsInvalidExpression(t *testing.T) {
	hs := NewHeartbeatService(t.TempDir(), 30, true)

	if err := hs.SetCron("not a cron"); err == nil {
		t.Error("Expected error for invalid cron expression")
	}
	if err := hs.SetCron("*/5 * * * *"); err != nil {
		t.Errorf("Valid cron rejected: %v", err)
	}
	if err := hs.SetCron(""); err != nil {
		t.Errorf("Empty cron should be accepted: %v", err)
	}
}

func TestStartStop(t *testing.T) {
	hs := NewHeartbeatService(t.TempDir(), 1, true)
	hs.SetHandler(func(prompt, channel, chatID string) *tools.ToolResult {
		return tools.NewToolResult("ok")
	})

	if err := hs.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := hs.Start(); err == nil {
		t.Error("Second Start should fail while running")
	}
	hs.Stop()
	// Stop again is a no-op.
	hs.Stop()
}

func TestStart_DisabledIsNoop(t *testing.T) {
	hs := NewHeartbeatService(t.TempDir(), 1, false)

	if err := hs.Start(); err != nil {
		t.Errorf("Disabled service Start should be a no-op, got: %v", err)
	}
}
