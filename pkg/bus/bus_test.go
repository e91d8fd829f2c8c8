package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInboundFIFO(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	for i := 0; i < 50; i++ {
		mb.PublishInbound(InboundMessage{
			Channel: "telegram",
			ChatID:  "42",
			Content: fmt.Sprintf("msg-%d", i),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 50; i++ {
		msg, ok := mb.ConsumeInbound(ctx)
		if !ok {
			t.Fatalf("ConsumeInbound returned !ok at %d", i)
		}
		want := fmt.Sprintf("msg-%d", i)
		if msg.Content != want {
			t.Fatalf("message %d out of order: got %q, want %q", i, msg.Content, want)
		}
	}
}

func TestConcurrentPublishers(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	const publishers = 8
	const perPublisher = 10

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				mb.PublishInbound(InboundMessage{
					Channel:  "discord",
					SenderID: fmt.Sprintf("sender-%d", p),
					ChatID:   "chat",
					Content:  "hello",
				})
			}
		}(p)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < publishers*perPublisher; i++ {
		if _, ok := mb.ConsumeInbound(ctx); !ok {
			t.Fatalf("lost message %d of %d", i, publishers*perPublisher)
		}
	}
}

func TestConsumeInboundTimeout(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := mb.ConsumeInbound(ctx)
	if ok {
		t.Fatal("expected timeout, got a message")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("ConsumeInbound did not honor context deadline")
	}
}

func TestOutboundIndependentOfInbound(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishOutbound(OutboundMessage{Channel: "slack", ChatID: "c1", Content: "out"})
	mb.PublishInbound(InboundMessage{Channel: "slack", ChatID: "c1", Content: "in"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out, ok := mb.SubscribeOutbound(ctx)
	if !ok || out.Content != "out" {
		t.Fatalf("unexpected outbound message: %+v ok=%v", out, ok)
	}
	in, ok := mb.ConsumeInbound(ctx)
	if !ok || in.Content != "in" {
		t.Fatalf("unexpected inbound message: %+v ok=%v", in, ok)
	}
}

func TestRegisterHandlerLastWins(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	var got string
	mb.RegisterHandler("telegram", func(msg OutboundMessage) error {
		got = "first"
		return nil
	})
	mb.RegisterHandler("telegram", func(msg OutboundMessage) error {
		got = "second"
		return nil
	})

	handler, ok := mb.GetHandler("telegram")
	if !ok {
		t.Fatal("handler not registered")
	}
	handler(OutboundMessage{})
	if got != "second" {
		t.Fatalf("expected last registration to win, got %q", got)
	}
}

func TestPublishAfterClose(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	// Must not panic.
	mb.PublishInbound(InboundMessage{Channel: "cli", ChatID: "direct"})
	mb.PublishOutbound(OutboundMessage{Channel: "cli", ChatID: "direct"})
}

func TestSessionKey(t *testing.T) {
	msg := InboundMessage{Channel: "telegram", ChatID: "12345"}
	if key := msg.SessionKey(); key != "telegram:12345" {
		t.Fatalf("SessionKey() = %q", key)
	}
}
