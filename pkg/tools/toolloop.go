// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clawlab/tinyclaw/pkg/logger"
	"github.com/clawlab/tinyclaw/pkg/metrics"
	"github.com/clawlab/tinyclaw/pkg/providers"
	"github.com/clawlab/tinyclaw/pkg/utils"
)

// ToolLoopConfig configures the tool execution loop.
type ToolLoopConfig struct {
	Provider      providers.LLMProvider
	Model         string
	Tools         *ToolRegistry
	MaxIterations int
	LLMOptions    map[string]any
	Metrics       *metrics.Collector // nil disables recording

	// AsyncCallback is handed to async tools for their completion signal.
	AsyncCallback AsyncCallback
	// OnToolResult, if set, observes every executed tool result (for
	// relaying user-facing output mid-round).
	OnToolResult func(toolName string, result *ToolResult)
}

// ToolLoopResult contains the result of running the tool loop.
type ToolLoopResult struct {
	Content     string
	Iterations  int
	ToolCalls   int
	TotalTokens int
	Truncated   bool // iteration cap reached before a direct answer
}

// RunToolLoop executes the LLM + tool call iteration loop. This is the core
// reasoning cycle shared by the main agent and subagents: call the model,
// execute any requested tools, feed results back, repeat until the model
// answers directly or the iteration cap is hit.
func RunToolLoop(ctx context.Context, config ToolLoopConfig, messages []providers.Message, channel, chatID, sessionKey string) (*ToolLoopResult, error) {
	iteration := 0
	toolCallCount := 0
	totalTokens := 0
	var finalContent string
	truncated := true

	for iteration < config.MaxIterations {
		iteration++

		logger.DebugCF("toolloop", "LLM iteration",
			map[string]any{
				"iteration": iteration,
				"max":       config.MaxIterations,
			})

		var providerToolDefs []providers.ToolDefinition
		if config.Tools != nil {
			providerToolDefs = config.Tools.ToProviderDefs()
		}

		llmOpts := config.LLMOptions
		if llmOpts == nil {
			llmOpts = map[string]any{}
		}

		llmStart := time.Now()
		response, err := config.Provider.Chat(ctx, messages, providerToolDefs, config.Model, llmOpts)
		if err != nil {
			logger.ErrorCF("toolloop", "LLM call failed",
				map[string]any{
					"iteration": iteration,
					"error":     err.Error(),
				})
			return nil, fmt.Errorf("LLM call failed: %w", err)
		}
		recordLLMEvent(config, sessionKey, response, iteration, time.Since(llmStart))
		if response.Usage != nil {
			totalTokens += response.Usage.TotalTokens
		}

		// No tool calls means the model answered directly; we're done.
		if len(response.ToolCalls) == 0 {
			finalContent = response.Content
			truncated = false
			logger.InfoCF("toolloop", "LLM response without tool calls (direct answer)",
				map[string]any{
					"iteration":     iteration,
					"content_chars": len(finalContent),
				})
			break
		}

		// Content produced alongside tool calls: keep it as the best
		// answer so far in case the iteration cap cuts the loop short.
		if response.Content != "" {
			finalContent = response.Content
		}

		normalizedToolCalls := make([]providers.ToolCall, 0, len(response.ToolCalls))
		for _, tc := range response.ToolCalls {
			normalizedToolCalls = append(normalizedToolCalls, providers.NormalizeToolCall(tc))
		}

		toolNames := make([]string, 0, len(normalizedToolCalls))
		for _, tc := range normalizedToolCalls {
			toolNames = append(toolNames, tc.Name)
		}
		logger.InfoCF("toolloop", "LLM requested tool calls",
			map[string]any{
				"tools":     toolNames,
				"count":     len(normalizedToolCalls),
				"iteration": iteration,
			})

		assistantMsg := providers.Message{
			Role:    "assistant",
			Content: response.Content,
		}
		for _, tc := range normalizedToolCalls {
			argumentsJSON, _ := json.Marshal(tc.Arguments)
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, providers.ToolCall{
				ID:        tc.ID,
				Type:      "function",
				Name:      tc.Name,
				Arguments: tc.Arguments,
				Function: &providers.FunctionCall{
					Name:      tc.Name,
					Arguments: string(argumentsJSON),
				},
			})
		}
		messages = append(messages, assistantMsg)

		for _, tc := range normalizedToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			argsPreview := utils.Truncate(string(argsJSON), 200)
			logger.InfoCF("toolloop", fmt.Sprintf("Tool call: %s(%s)", tc.Name, argsPreview),
				map[string]any{
					"tool":      tc.Name,
					"iteration": iteration,
				})

			toolCallCount++
			toolStart := time.Now()
			var toolResult *ToolResult
			if config.Tools != nil {
				toolResult = config.Tools.ExecuteWithContext(ctx, tc.Name, tc.Arguments, channel, chatID, sessionKey, config.AsyncCallback, nil)
			} else {
				toolResult = ErrorResult("No tools available")
			}
			recordToolEvent(config, sessionKey, tc.Name, toolResult, iteration, time.Since(toolStart))

			if config.OnToolResult != nil {
				config.OnToolResult(tc.Name, toolResult)
			}

			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    toolResult.ContentForLLM(),
				ToolCallID: tc.ID,
			})
		}
	}

	return &ToolLoopResult{
		Content:     finalContent,
		Iterations:  iteration,
		ToolCalls:   toolCallCount,
		TotalTokens: totalTokens,
		Truncated:   truncated,
	}, nil
}

func recordLLMEvent(config ToolLoopConfig, sessionKey string, response *providers.LLMResponse, iteration int, latency time.Duration) {
	if config.Metrics == nil {
		return
	}
	ev := metrics.LLMEvent{
		SessionKey:   sessionKey,
		Model:        config.Model,
		NumToolCalls: len(response.ToolCalls),
		LatencyMS:    latency.Milliseconds(),
		Iteration:    iteration,
		FinishReason: response.FinishReason,
	}
	if response.Usage != nil {
		ev.PromptTokens = response.Usage.PromptTokens
		ev.CompletionTokens = response.Usage.CompletionTokens
		ev.TotalTokens = response.Usage.TotalTokens
	}
	config.Metrics.RecordLLMEvent(ev)
}

func recordToolEvent(config ToolLoopConfig, sessionKey, toolName string, result *ToolResult, iteration int, latency time.Duration) {
	if config.Metrics == nil {
		return
	}
	ev := metrics.ToolEvent{
		SessionKey: sessionKey,
		ToolName:   toolName,
		Success:    !result.IsError,
		LatencyMS:  latency.Milliseconds(),
		OutputSize: len(result.ForLLM),
		Iteration:  iteration,
	}
	if result.IsError {
		ev.Error = utils.Truncate(result.ContentForLLM(), 120)
	}
	config.Metrics.RecordToolEvent(ev)
}
