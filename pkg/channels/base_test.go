package channels

import (
	"context"
	"testing"
	"time"

	"github.com/clawlab/tinyclaw/pkg/bus"
)

func TestIsAllowed_EmptyAllowlistAdmitsEveryone(t *testing.T) {
	base := NewBaseChannel("test", bus.NewMessageBus(), nil)
	if !base.IsAllowed("anyone") {
		t.Error("Empty allowlist should admit everyone")
	}
}

func TestIsAllowed_MatchesIDOrUsername(t *testing.T) {
	base := NewBaseChannel("test", bus.NewMessageBus(), []string{"12345", "@alice"})

	tests := []struct {
		senderID string
		want     bool
	}{
		{"12345", true},
		{"12345|bob", true},   // composite: ID part matches
		{"99999|alice", true}, // composite: username part matches
		{"99999|ALICE", true}, // case-insensitive
		{"99999", false},
		{"99999|bob", false},
	}

	for _, tt := range tests {
		if got := base.IsAllowed(tt.senderID); got != tt.want {
			t.Errorf("IsAllowed(%q) = %v, want %v", tt.senderID, got, tt.want)
		}
	}
}

func TestHandleMessage_PublishesInbound(t *testing.T) {
	msgBus := bus.NewMessageBus()
	base := NewBaseChannel("testchan", msgBus, nil)

	base.HandleMessage("user-1", "chat-9", "hello", nil, map[string]string{"k": "v"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := msgBus.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("Expected an inbound message")
	}
	if msg.Channel != "testchan" || msg.SenderID != "user-1" || msg.ChatID != "chat-9" {
		t.Errorf("Unexpected message identity: %+v", msg)
	}
	if msg.Content != "hello" || msg.Metadata["k"] != "v" {
		t.Errorf("Unexpected message payload: %+v", msg)
	}
}
