package channels

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/config"
)

// fakeChannel records sent messages for dispatch tests.
type fakeChannel struct {
	*BaseChannel
	mu   sync.Mutex
	sent []bus.OutboundMessage
}

func newFakeChannel(name string, msgBus bus.Broker) *fakeChannel {
	return &fakeChannel{BaseChannel: NewBaseChannel(name, msgBus, nil)}
}

func (c *fakeChannel) Start(ctx context.Context) error {
	c.setRunning(true)
	return nil
}

func (c *fakeChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

func (c *fakeChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) sentMessages() []bus.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bus.OutboundMessage(nil), c.sent...)
}

func TestNewManager_NoChannelsEnabled(t *testing.T) {
	cfg := config.DefaultConfig()
	m, err := NewManager(cfg, bus.NewMessageBus())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("Expected no channels, got %d", m.Count())
	}
	if len(m.Active()) != 0 {
		t.Errorf("Expected no active channels, got %v", m.Active())
	}
}

func TestDispatchOutbound_RoutesToChannel(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m := &Manager{channels: make(map[string]Channel), bus: msgBus}

	fake := newFakeChannel("fake", msgBus)
	m.add(fake)
	fake.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.DispatchOutbound(ctx)

	msgBus.PublishOutbound(bus.OutboundMessage{
		Channel: "fake",
		ChatID:  "chat-1",
		Content: "hello",
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := fake.sentMessages(); len(msgs) == 1 {
			if msgs[0].ChatID != "chat-1" || msgs[0].Content != "hello" {
				t.Errorf("Unexpected delivered message: %+v", msgs[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Message never reached the channel")
}

func TestDispatchOutbound_UnknownChannelDropped(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m := &Manager{channels: make(map[string]Channel), bus: msgBus}

	fake := newFakeChannel("fake", msgBus)
	m.add(fake)
	fake.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.DispatchOutbound(ctx)

	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "nowhere", ChatID: "x", Content: "lost"})
	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "fake", ChatID: "y", Content: "kept"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := fake.sentMessages(); len(msgs) == 1 {
			if msgs[0].Content != "kept" {
				t.Errorf("Wrong message delivered: %+v", msgs[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Follow-up message never delivered")
}
