package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/config"
	"github.com/clawlab/tinyclaw/pkg/providers"
)

// scriptedProvider returns canned responses in order, then echoes the last
// user message.
type scriptedProvider struct {
	responses []*providers.LLMResponse
	err       error
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []providers.Message, tools []providers.ToolDefinition, model string, options map[string]interface{}) (*providers.LLMResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.calls < len(p.responses) {
		resp := p.responses[p.calls]
		p.calls++
		return resp, nil
	}
	p.calls++
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return &providers.LLMResponse{Content: "echo: " + messages[i].Content, FinishReason: "stop"}, nil
		}
	}
	return &providers.LLMResponse{Content: "nothing to say", FinishReason: "stop"}, nil
}

func (p *scriptedProvider) GetDefaultModel() string { return "scripted" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Workspace = t.TempDir()
	cfg.Agents.Defaults.MaxToolIterations = 5
	return cfg
}

func TestProcessDirect_AnswersAndPersistsSession(t *testing.T) {
	cfg := testConfig(t)
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{Content: "4", FinishReason: "stop"},
	}}
	loop := NewAgentLoop(cfg, bus.NewMessageBus(), provider, "scripted")

	response, err := loop.ProcessDirect(context.Background(), "what is 2+2?", "")
	if err != nil {
		t.Fatalf("ProcessDirect failed: %v", err)
	}
	if response != "4" {
		t.Errorf("Expected '4', got %q", response)
	}

	history := loop.sessions.GetHistory("cli:direct")
	if len(history) != 2 {
		t.Fatalf("Expected user+assistant pair in session, got %d messages", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "what is 2+2?" {
		t.Errorf("Unexpected user message: %+v", history[0])
	}
	if history[1].Role != "assistant" || history[1].Content != "4" {
		t.Errorf("Unexpected assistant message: %+v", history[1])
	}
}

func TestProcessDirect_EmptyAnswerFallsBackToDefault(t *testing.T) {
	cfg := testConfig(t)
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{Content: "", FinishReason: "stop"},
	}}
	loop := NewAgentLoop(cfg, bus.NewMessageBus(), provider, "scripted")

	response, err := loop.ProcessDirect(context.Background(), "say nothing", "")
	if err != nil {
		t.Fatalf("ProcessDirect failed: %v", err)
	}
	if response != defaultResponse {
		t.Errorf("Expected default response, got %q", response)
	}
}

func TestProcessDirect_SecondTurnSeesHistory(t *testing.T) {
	cfg := testConfig(t)
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{Content: "My name is TinyClaw", FinishReason: "stop"},
	}}
	loop := NewAgentLoop(cfg, bus.NewMessageBus(), provider, "scripted")

	if _, err := loop.ProcessDirect(context.Background(), "what's your name?", ""); err != nil {
		t.Fatalf("First turn failed: %v", err)
	}

	var secondTurnMessages []providers.Message
	capture := &captureProvider{onChat: func(messages []providers.Message) {
		secondTurnMessages = messages
	}}
	loop.provider = capture

	if _, err := loop.ProcessDirect(context.Background(), "repeat that", ""); err != nil {
		t.Fatalf("Second turn failed: %v", err)
	}

	var sawFirstAnswer bool
	for _, m := range secondTurnMessages {
		if m.Role == "assistant" && m.Content == "My name is TinyClaw" {
			sawFirstAnswer = true
		}
	}
	if !sawFirstAnswer {
		t.Error("Second turn should include the first turn's assistant message")
	}
}

type captureProvider struct {
	onChat func(messages []providers.Message)
}

func (p *captureProvider) Chat(ctx context.Context, messages []providers.Message, tools []providers.ToolDefinition, model string, options map[string]interface{}) (*providers.LLMResponse, error) {
	if p.onChat != nil {
		p.onChat(messages)
	}
	return &providers.LLMResponse{Content: "ok", FinishReason: "stop"}, nil
}

func (p *captureProvider) GetDefaultModel() string { return "capture" }

func TestRun_ConsumesInboundAndPublishesResponse(t *testing.T) {
	cfg := testConfig(t)
	msgBus := bus.NewMessageBus()
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{Content: "hello there", FinishReason: "stop"},
	}}
	loop := NewAgentLoop(cfg, msgBus, provider, "scripted")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	defer loop.Stop()

	msgBus.PublishInbound(bus.InboundMessage{
		Channel:  "telegram",
		SenderID: "user-1",
		ChatID:   "42",
		Content:  "hi",
	})

	recvCtx, recvCancel := context.WithTimeout(ctx, 3*time.Second)
	defer recvCancel()
	out, ok := msgBus.SubscribeOutbound(recvCtx)
	if !ok {
		t.Fatal("No outbound response arrived")
	}
	if out.Channel != "telegram" || out.ChatID != "42" {
		t.Errorf("Response routed to %s:%s, want telegram:42", out.Channel, out.ChatID)
	}
	if out.Content != "hello there" {
		t.Errorf("Unexpected response content: %q", out.Content)
	}
}

func TestRun_ProviderErrorBecomesErrorResponse(t *testing.T) {
	cfg := testConfig(t)
	msgBus := bus.NewMessageBus()
	provider := &scriptedProvider{err: errors.New("provider unavailable")}
	loop := NewAgentLoop(cfg, msgBus, provider, "scripted")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	defer loop.Stop()

	msgBus.PublishInbound(bus.InboundMessage{
		Channel: "discord", SenderID: "u", ChatID: "1", Content: "hi",
	})

	recvCtx, recvCancel := context.WithTimeout(ctx, 3*time.Second)
	defer recvCancel()
	out, ok := msgBus.SubscribeOutbound(recvCtx)
	if !ok {
		t.Fatal("No outbound response arrived")
	}
	if !strings.Contains(out.Content, "Error processing message") {
		t.Errorf("Expected error response, got %q", out.Content)
	}
}

type panickyProvider struct{}

func (p *panickyProvider) Chat(ctx context.Context, messages []providers.Message, tools []providers.ToolDefinition, model string, options map[string]interface{}) (*providers.LLMResponse, error) {
	panic("unexpected provider failure")
}

func (p *panickyProvider) GetDefaultModel() string { return "panicky" }

func TestProcessMessage_PanicBecomesReply(t *testing.T) {
	cfg := testConfig(t)
	loop := NewAgentLoop(cfg, bus.NewMessageBus(), &panickyProvider{}, "panicky")

	response, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel: "telegram", SenderID: "u", ChatID: "42", Content: "hello",
	})
	if err != nil {
		t.Fatalf("Panic should be contained, got error: %v", err)
	}
	if !strings.Contains(response, "something went wrong") {
		t.Errorf("Expected an apologetic reply, got %q", response)
	}
}

func TestRun_SurvivesProviderPanic(t *testing.T) {
	cfg := testConfig(t)
	msgBus := bus.NewMessageBus()
	loop := NewAgentLoop(cfg, msgBus, &panickyProvider{}, "panicky")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	defer loop.Stop()

	for i := 0; i < 2; i++ {
		msgBus.PublishInbound(bus.InboundMessage{
			Channel: "telegram", SenderID: "u", ChatID: "42", Content: "hi",
		})

		recvCtx, recvCancel := context.WithTimeout(ctx, 3*time.Second)
		out, ok := msgBus.SubscribeOutbound(recvCtx)
		recvCancel()
		if !ok {
			t.Fatalf("No outbound reply for message %d; consume loop died", i+1)
		}
		if !strings.Contains(out.Content, "something went wrong") {
			t.Errorf("Expected an apologetic reply, got %q", out.Content)
		}
	}
}

func TestProcessMessage_ClearCommandSkipsLLM(t *testing.T) {
	cfg := testConfig(t)
	provider := &scriptedProvider{}
	loop := NewAgentLoop(cfg, bus.NewMessageBus(), provider, "scripted")

	loop.sessions.AddMessage("telegram:42", "user", "old message")

	response, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel: "telegram", SenderID: "u", ChatID: "42", Content: " /CLEAR ",
	})
	if err != nil {
		t.Fatalf("processMessage failed: %v", err)
	}
	if !strings.Contains(response, "cleared") {
		t.Errorf("Unexpected clear response: %q", response)
	}
	if provider.calls != 0 {
		t.Error("/clear must not reach the LLM")
	}
	if len(loop.sessions.GetHistory("telegram:42")) != 0 {
		t.Error("History should be empty after /clear")
	}
}

func TestProcessSystemMessage_RoutesToOrigin(t *testing.T) {
	cfg := testConfig(t)
	msgBus := bus.NewMessageBus()
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{Content: "Your report is ready.", FinishReason: "stop"},
	}}
	loop := NewAgentLoop(cfg, msgBus, provider, "scripted")

	_, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel:  bus.SystemChannel,
		SenderID: "subagent",
		ChatID:   "telegram:42",
		Content:  "Task 'report' completed.\n\nResult:\nAll done.",
	})
	if err != nil {
		t.Fatalf("processMessage failed: %v", err)
	}

	recvCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, ok := msgBus.SubscribeOutbound(recvCtx)
	if !ok {
		t.Fatal("System message handling should publish to the origin conversation")
	}
	if out.Channel != "telegram" || out.ChatID != "42" {
		t.Errorf("Routed to %s:%s, want telegram:42", out.Channel, out.ChatID)
	}
	if out.Content != "Your report is ready." {
		t.Errorf("Unexpected content: %q", out.Content)
	}
}

func TestProcessSystemMessage_InternalOriginIsSwallowed(t *testing.T) {
	cfg := testConfig(t)
	provider := &scriptedProvider{}
	loop := NewAgentLoop(cfg, bus.NewMessageBus(), provider, "scripted")

	response, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel:  bus.SystemChannel,
		SenderID: "subagent",
		ChatID:   "cli:direct",
		Content:  "Task 'x' completed.\n\nResult:\ndone",
	})
	if err != nil {
		t.Fatalf("processMessage failed: %v", err)
	}
	if response != "" {
		t.Errorf("Internal origin should produce no response, got %q", response)
	}
	if provider.calls != 0 {
		t.Error("Internal-origin completion must not reach the LLM")
	}
}

func TestProcessHeartbeat_DoesNotPersistHistory(t *testing.T) {
	cfg := testConfig(t)
	provider := &scriptedProvider{responses: []*providers.LLMResponse{
		{Content: "HEARTBEAT_OK", FinishReason: "stop"},
	}}
	loop := NewAgentLoop(cfg, bus.NewMessageBus(), provider, "scripted")

	response, err := loop.ProcessHeartbeat(context.Background(), "Check HEARTBEAT.md", "telegram", "42")
	if err != nil {
		t.Fatalf("ProcessHeartbeat failed: %v", err)
	}
	if response != "HEARTBEAT_OK" {
		t.Errorf("Unexpected heartbeat response: %q", response)
	}
	if len(loop.sessions.GetHistory("heartbeat")) != 0 {
		t.Error("Heartbeat rounds must not accumulate session history")
	}
}

func TestNewAgentLoop_RegistersCoreTools(t *testing.T) {
	cfg := testConfig(t)
	loop := NewAgentLoop(cfg, bus.NewMessageBus(), &scriptedProvider{}, "scripted")

	for _, name := range []string{"read_file", "write_file", "edit_file", "list_dir", "exec", "message", "spawn", "subagent"} {
		if _, ok := loop.registry.Get(name); !ok {
			t.Errorf("Tool %q not registered", name)
		}
	}
}
