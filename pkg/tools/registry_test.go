package tools

import (
	"context"
	"strings"
	"testing"
)

type stubTool struct {
	name    string
	result  *ToolResult
	lastCtx struct {
		channel, chatID, sessionKey string
	}
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub tool" }
func (t *stubTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *stubTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	return t.result
}
func (t *stubTool) SetContext(channel, chatID, sessionKey string) {
	t.lastCtx.channel = channel
	t.lastCtx.chatID = chatID
	t.lastCtx.sessionKey = sessionKey
}

type panickingTool struct{}

func (t *panickingTool) Name() string        { return "boom" }
func (t *panickingTool) Description() string { return "always panics" }
func (t *panickingTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (t *panickingTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	panic("tool exploded")
}

func TestRegistryUnknownToolReturnsErrorResult(t *testing.T) {
	registry := NewToolRegistry()

	result := registry.Execute(context.Background(), "nope", nil)

	if !result.IsError {
		t.Fatal("Expected error result for unknown tool")
	}
	if !strings.Contains(result.ForLLM, "not found") {
		t.Errorf("Expected 'not found' in result, got: %s", result.ForLLM)
	}
}

func TestRegistryPanicBecomesErrorResult(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&panickingTool{})

	result := registry.Execute(context.Background(), "boom", nil)

	if result == nil {
		t.Fatal("Expected a result, got nil")
	}
	if !result.IsError {
		t.Fatal("Expected error result from panicking tool")
	}
	if !strings.Contains(result.ForLLM, "crashed") {
		t.Errorf("Expected crash notice in result, got: %s", result.ForLLM)
	}
}

func TestRegistryRegisterLastWins(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&stubTool{name: "dup", result: NewToolResult("first")})
	registry.Register(&stubTool{name: "dup", result: NewToolResult("second")})

	if registry.Count() != 1 {
		t.Fatalf("Expected 1 tool, got %d", registry.Count())
	}

	result := registry.Execute(context.Background(), "dup", nil)
	if result.ForLLM != "second" {
		t.Errorf("Expected the later registration to win, got: %s", result.ForLLM)
	}
}

func TestRegistryInjectsContext(t *testing.T) {
	registry := NewToolRegistry()
	tool := &stubTool{name: "ctx", result: NewToolResult("ok")}
	registry.Register(tool)

	registry.ExecuteWithContext(context.Background(), "ctx", nil, "telegram", "42", "telegram:42", nil, nil)

	if tool.lastCtx.channel != "telegram" || tool.lastCtx.chatID != "42" {
		t.Errorf("Context not injected: %+v", tool.lastCtx)
	}
	if tool.lastCtx.sessionKey != "telegram:42" {
		t.Errorf("Session key not injected: %q", tool.lastCtx.sessionKey)
	}
}

func TestRegistryToProviderDefs(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&stubTool{name: "alpha", result: NewToolResult("ok")})

	defs := registry.ToProviderDefs()
	if len(defs) != 1 {
		t.Fatalf("Expected 1 definition, got %d", len(defs))
	}
	if defs[0].Type != "function" || defs[0].Function.Name != "alpha" {
		t.Errorf("Unexpected definition: %+v", defs[0])
	}
}

func TestRegistryDefinitionsKeepRegistrationOrder(t *testing.T) {
	registry := NewToolRegistry()
	names := []string{"zeta", "alpha", "mid", "beta"}
	for _, name := range names {
		registry.Register(&stubTool{name: name, result: NewToolResult("ok")})
	}
	// Replacement keeps the original position.
	registry.Register(&stubTool{name: "alpha", result: NewToolResult("ok2")})

	defs := registry.ToProviderDefs()
	if len(defs) != len(names) {
		t.Fatalf("Expected %d definitions, got %d", len(names), len(defs))
	}
	for i, name := range names {
		if defs[i].Function.Name != name {
			t.Errorf("Definition %d = %q, want %q", i, defs[i].Function.Name, name)
		}
	}

	listed := registry.List()
	for i, name := range names {
		if listed[i] != name {
			t.Errorf("List()[%d] = %q, want %q", i, listed[i], name)
		}
	}
}

func TestRegistryNilResultBecomesError(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&stubTool{name: "nilly", result: nil})

	result := registry.Execute(context.Background(), "nilly", nil)
	if result == nil || !result.IsError {
		t.Fatal("Expected a nil tool result to be converted to an error result")
	}
}
