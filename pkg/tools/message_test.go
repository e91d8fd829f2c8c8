package tools

import (
	"context"
	"errors"
	"testing"
)

func TestMessageTool_Execute_Success(t *testing.T) {
	tool := NewMessageTool()
	tool.SetContext("test-channel", "test-chat-id", "")

	var sentChannel, sentChatID, sentContent string
	tool.SetSendCallback(func(channel, chatID, content string) error {
		sentChannel = channel
		sentChatID = chatID
		sentContent = content
		return nil
	})

	result := tool.Execute(context.Background(), map[string]interface{}{
		"content": "Hello, world!",
	})

	if sentChannel != "test-channel" || sentChatID != "test-chat-id" {
		t.Errorf("Sent to %s:%s, expected test-channel:test-chat-id", sentChannel, sentChatID)
	}
	if sentContent != "Hello, world!" {
		t.Errorf("Unexpected content: %q", sentContent)
	}

	// Send success is silent: the user already received the message.
	if !result.Silent {
		t.Error("Expected Silent=true for successful send")
	}
	if result.IsError {
		t.Error("Expected IsError=false for successful send")
	}
	if !tool.HasSentInRound() {
		t.Error("Expected HasSentInRound to be true after a send")
	}
}

func TestMessageTool_Execute_ExplicitTargetOverridesContext(t *testing.T) {
	tool := NewMessageTool()
	tool.SetContext("default-channel", "default-chat", "")

	var sentChannel, sentChatID string
	tool.SetSendCallback(func(channel, chatID, content string) error {
		sentChannel = channel
		sentChatID = chatID
		return nil
	})

	tool.Execute(context.Background(), map[string]interface{}{
		"content": "Test",
		"channel": "custom-channel",
		"chat_id": "custom-chat",
	})

	if sentChannel != "custom-channel" || sentChatID != "custom-chat" {
		t.Errorf("Explicit target not honored, sent to %s:%s", sentChannel, sentChatID)
	}
}

func TestMessageTool_Execute_SendFailure(t *testing.T) {
	tool := NewMessageTool()
	tool.SetContext("ch", "id", "")
	tool.SetSendCallback(func(channel, chatID, content string) error {
		return errors.New("network down")
	})

	result := tool.Execute(context.Background(), map[string]interface{}{
		"content": "Test",
	})

	if !result.IsError {
		t.Error("Expected error result when send fails")
	}
	if result.Err == nil {
		t.Error("Expected Err to carry the send failure")
	}
	if tool.HasSentInRound() {
		t.Error("Failed send must not count as sent")
	}
}

func TestMessageTool_Execute_NoTarget(t *testing.T) {
	tool := NewMessageTool()
	tool.SetSendCallback(func(channel, chatID, content string) error { return nil })

	result := tool.Execute(context.Background(), map[string]interface{}{
		"content": "Test",
	})

	if !result.IsError {
		t.Error("Expected error when no channel/chat target is known")
	}
}

func TestMessageTool_SetContextResetsSentFlag(t *testing.T) {
	tool := NewMessageTool()
	tool.SetContext("ch", "id", "")
	tool.SetSendCallback(func(channel, chatID, content string) error { return nil })

	tool.Execute(context.Background(), map[string]interface{}{"content": "one"})
	if !tool.HasSentInRound() {
		t.Fatal("Expected sent flag after send")
	}

	// A new round begins with SetContext.
	tool.SetContext("ch", "id", "")
	if tool.HasSentInRound() {
		t.Error("Expected sent flag to reset on new round")
	}
}
