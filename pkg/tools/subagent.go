// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/logger"
	"github.com/clawlab/tinyclaw/pkg/metrics"
	"github.com/clawlab/tinyclaw/pkg/providers"
	"github.com/clawlab/tinyclaw/pkg/utils"
)

const subagentMaxIterations = 10

// SubagentTask tracks one background task from spawn to completion.
type SubagentTask struct {
	ID            string
	Label         string
	Task          string
	OriginChannel string
	OriginChatID  string
	Started       time.Time
}

// SubagentManager runs delegated tasks in background goroutines. Completions
// are announced back to the agent loop as inbound system messages whose
// ChatID carries the origin "channel:chat_id", so the answer lands in the
// conversation that asked for the work.
type SubagentManager struct {
	provider   providers.LLMProvider
	model      string
	workspace  string
	bus        *bus.MessageBus
	registry   *ToolRegistry
	llmOptions map[string]interface{}
	metrics    *metrics.Collector

	active map[string]*SubagentTask
	mu     sync.Mutex
	wg     sync.WaitGroup
}

func NewSubagentManager(provider providers.LLMProvider, model, workspace string, msgBus *bus.MessageBus) *SubagentManager {
	return &SubagentManager{
		provider:  provider,
		model:     model,
		workspace: workspace,
		bus:       msgBus,
		active:    make(map[string]*SubagentTask),
	}
}

// SetRegistry gives subagents their tool set. Kept separate from the main
// agent's registry so subagents cannot spawn or message on their own.
func (m *SubagentManager) SetRegistry(registry *ToolRegistry) {
	m.registry = registry
}

// SetMetrics enables event recording for subagent rounds.
func (m *SubagentManager) SetMetrics(collector *metrics.Collector) {
	m.metrics = collector
}

func (m *SubagentManager) SetLLMOptions(maxTokens int, temperature float64) {
	m.llmOptions = map[string]interface{}{
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
}

// Spawn starts a background task and returns an acknowledgement immediately.
func (m *SubagentManager) Spawn(ctx context.Context, task, label, originChannel, originChatID string, callback AsyncCallback) (string, error) {
	if task == "" {
		return "", fmt.Errorf("task is required")
	}

	t := &SubagentTask{
		ID:            uuid.NewString(),
		Label:         label,
		Task:          task,
		OriginChannel: originChannel,
		OriginChatID:  originChatID,
		Started:       time.Now(),
	}

	m.mu.Lock()
	m.active[t.ID] = t
	m.mu.Unlock()

	logger.InfoCF("subagent", "Spawning subagent",
		map[string]interface{}{
			"id":    t.ID,
			"label": displayLabel(label),
		})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.active, t.ID)
			m.mu.Unlock()
		}()

		content, err := m.runTask(ctx, task)

		var announcement string
		if err != nil {
			announcement = fmt.Sprintf("Task '%s' failed: %v", displayLabel(label), err)
		} else {
			announcement = fmt.Sprintf("Task '%s' completed.\n\nResult:\n%s", displayLabel(label), content)
		}

		// The callback is an in-process notification only; the bus
		// announcement below is the delivery path back to the origin
		// conversation.
		if callback != nil {
			result := NewToolResult(announcement)
			if err != nil {
				result.IsError = true
				result.Err = err
			}
			callback(ctx, result)
		}

		if m.bus != nil {
			m.bus.PublishInbound(bus.InboundMessage{
				Channel:  bus.SystemChannel,
				SenderID: "subagent",
				ChatID:   originChannel + ":" + originChatID,
				Content:  announcement,
			})
		}
	}()

	return fmt.Sprintf("Subagent '%s' started (id %s), will report back when done", displayLabel(label), t.ID), nil
}

// RunSync executes a task inline and returns its final content. Used by the
// synchronous subagent tool.
func (m *SubagentManager) RunSync(ctx context.Context, task string) (string, error) {
	return m.runTask(ctx, task)
}

func (m *SubagentManager) runTask(ctx context.Context, task string) (string, error) {
	messages := []providers.Message{
		{
			Role: "system",
			Content: "You are a subagent of a personal assistant. Complete the given task and " +
				"reply with a concise result. You cannot talk to the user directly; your final " +
				"message is reported back to the main agent.",
		},
		{Role: "user", Content: task},
	}

	result, err := RunToolLoop(ctx, ToolLoopConfig{
		Provider:      m.provider,
		Model:         m.model,
		Tools:         m.registry,
		MaxIterations: subagentMaxIterations,
		LLMOptions:    m.llmOptions,
		Metrics:       m.metrics,
	}, messages, "", "", "subagent")
	if err != nil {
		return "", err
	}

	content := result.Content
	if content == "" {
		content = "(subagent finished without a final answer)"
	}
	return content, nil
}

// ActiveTasks returns a snapshot of the currently running tasks.
func (m *SubagentManager) ActiveTasks() []SubagentTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make([]SubagentTask, 0, len(m.active))
	for _, t := range m.active {
		tasks = append(tasks, *t)
	}
	return tasks
}

// ActiveCount returns the number of running tasks.
func (m *SubagentManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Wait blocks until all running tasks finish. Used during shutdown.
func (m *SubagentManager) Wait() {
	m.wg.Wait()
}

func displayLabel(label string) string {
	if label == "" {
		return "(unnamed)"
	}
	return label
}

// SubagentTool runs a delegated task synchronously and returns the result
// in the same round.
type SubagentTool struct {
	manager       *SubagentManager
	originChannel string
	originChatID  string
}

func NewSubagentTool(manager *SubagentManager) *SubagentTool {
	return &SubagentTool{manager: manager}
}

func (t *SubagentTool) Name() string {
	return "subagent"
}

func (t *SubagentTool) Description() string {
	return "Run a subagent to handle a focused task and wait for its result. Use spawn instead for long-running background work."
}

func (t *SubagentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to complete",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Optional short label for the task (for display)",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SubagentTool) SetContext(channel, chatID, sessionKey string) {
	t.originChannel = channel
	t.originChatID = chatID
}

func (t *SubagentTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	task, ok := args["task"].(string)
	if !ok || task == "" {
		return ErrorResult("task is required").WithError(fmt.Errorf("task is required"))
	}

	label, _ := args["label"].(string)

	if t.manager == nil {
		return ErrorResult("Subagent manager not configured")
	}

	content, err := t.manager.RunSync(ctx, task)
	if err != nil {
		return ErrorResult(fmt.Sprintf("subagent failed: %v", err)).WithError(err)
	}

	return &ToolResult{
		ForLLM:  fmt.Sprintf("Subagent '%s' result:\n%s", displayLabel(label), content),
		ForUser: utils.Truncate(content, 500),
	}
}
