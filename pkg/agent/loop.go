// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package agent

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/config"
	"github.com/clawlab/tinyclaw/pkg/logger"
	"github.com/clawlab/tinyclaw/pkg/metrics"
	"github.com/clawlab/tinyclaw/pkg/providers"
	"github.com/clawlab/tinyclaw/pkg/session"
	"github.com/clawlab/tinyclaw/pkg/tools"
	"github.com/clawlab/tinyclaw/pkg/utils"
)

const defaultResponse = "I've completed processing but have no response to give."

// AgentLoop is the observe-decide-act core: it consumes inbound messages,
// runs the bounded LLM+tool cycle per message, and publishes responses.
type AgentLoop struct {
	bus            bus.Broker
	cfg            *config.Config
	provider       providers.LLMProvider
	model          string
	sessions       *session.SessionManager
	contextBuilder *ContextBuilder
	registry       *tools.ToolRegistry
	subagents      *tools.SubagentManager
	metrics        *metrics.Collector
	maxIterations  int
	running        atomic.Bool
}

// processOptions configures how a single message is processed.
type processOptions struct {
	SessionKey      string // session identifier for history
	Channel         string // target channel for tool context and replies
	ChatID          string // target chat ID
	UserMessage     string // user message content (may include prefix)
	DefaultResponse string // response when the LLM returns empty content
	SendResponse    bool   // publish the final response to the bus directly
	NoHistory       bool   // skip session history (heartbeat)
}

func NewAgentLoop(cfg *config.Config, msgBus bus.Broker, provider providers.LLMProvider, model string) *AgentLoop {
	defaults := cfg.Agents.Defaults
	workspace := cfg.WorkspacePath()

	maxIterations := defaults.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = 20
	}

	al := &AgentLoop{
		bus:            msgBus,
		cfg:            cfg,
		provider:       provider,
		model:          model,
		sessions:       session.NewSessionManager(workspace + "/sessions"),
		contextBuilder: NewContextBuilder(workspace),
		registry:       tools.NewToolRegistry(),
		maxIterations:  maxIterations,
	}

	al.registerTools(workspace, defaults.RestrictToWorkspace)
	al.contextBuilder.SetToolsRegistry(al.registry)
	return al
}

// registerTools builds the main agent's tool set and a reduced set for
// subagents (no message/spawn, so background tasks cannot fan out).
func (al *AgentLoop) registerTools(workspace string, restrict bool) {
	register := func(r *tools.ToolRegistry) {
		r.Register(tools.NewReadFileTool(workspace, restrict))
		r.Register(tools.NewWriteFileTool(workspace, restrict))
		r.Register(tools.NewEditFileTool(workspace, restrict))
		r.Register(tools.NewListDirTool(workspace, restrict))

		execTool := tools.NewExecTool(workspace, restrict)
		if t := al.cfg.Tools.Exec.TimeoutSeconds; t > 0 {
			execTool.SetTimeout(time.Duration(t) * time.Second)
		}
		if !al.cfg.Tools.Exec.EnableDenyPatterns {
			execTool.DisableDenyPatterns()
		}
		r.Register(execTool)

		web := al.cfg.Tools.Web
		if web.Brave.Enabled || web.DuckDuckGo.Enabled {
			maxResults := web.DuckDuckGo.MaxResults
			apiKey := ""
			if web.Brave.Enabled {
				apiKey = web.Brave.APIKey
				maxResults = web.Brave.MaxResults
			}
			r.Register(tools.NewWebSearchTool(apiKey, maxResults))
		}
		r.Register(tools.NewWebFetchTool())
	}

	register(al.registry)

	messageTool := tools.NewMessageTool()
	messageTool.SetSendCallback(func(channel, chatID, content string) error {
		al.bus.PublishOutbound(bus.OutboundMessage{
			Channel: channel,
			ChatID:  chatID,
			Content: content,
		})
		return nil
	})
	al.registry.Register(messageTool)

	subagentRegistry := tools.NewToolRegistry()
	register(subagentRegistry)

	var msgBus *bus.MessageBus
	if mb, ok := al.bus.(*bus.MessageBus); ok {
		msgBus = mb
	}
	al.subagents = tools.NewSubagentManager(al.provider, al.model, workspace, msgBus)
	al.subagents.SetRegistry(subagentRegistry)
	al.subagents.SetLLMOptions(al.cfg.Agents.Defaults.MaxTokens, al.cfg.Agents.Defaults.Temperature)

	al.registry.Register(tools.NewSpawnTool(al.subagents))
	al.registry.Register(tools.NewSubagentTool(al.subagents))
}

// SetMetrics enables JSONL metrics recording.
func (al *AgentLoop) SetMetrics(collector *metrics.Collector) {
	al.metrics = collector
	al.subagents.SetMetrics(collector)
}

// RegisterTool adds an extra tool to the main registry.
func (al *AgentLoop) RegisterTool(tool tools.Tool) {
	al.registry.Register(tool)
}

// Subagents exposes the background task manager for status reporting.
func (al *AgentLoop) Subagents() *tools.SubagentManager {
	return al.subagents
}

// Run consumes inbound messages until Stop is called or ctx is canceled.
// The short receive timeout lets the loop observe the running flag.
func (al *AgentLoop) Run(ctx context.Context) error {
	al.running.Store(true)

	for al.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		recvCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		msg, ok := al.bus.ConsumeInbound(recvCtx)
		cancel()
		if !ok {
			continue
		}

		response, err := al.processMessage(ctx, msg)
		if err != nil {
			response = fmt.Sprintf("Error processing message: %v", err)
		}

		if response != "" {
			// Skip publishing when the message tool already delivered a
			// reply during this round.
			alreadySent := false
			if tool, ok := al.registry.Get("message"); ok {
				if mt, ok := tool.(*tools.MessageTool); ok {
					alreadySent = mt.HasSentInRound()
				}
			}

			if !alreadySent {
				al.bus.PublishOutbound(bus.OutboundMessage{
					Channel: msg.Channel,
					ChatID:  msg.ChatID,
					Content: response,
				})
			}
		}
	}

	return nil
}

func (al *AgentLoop) Stop() {
	al.running.Store(false)
}

// ProcessDirect handles a single prompt synchronously, outside the bus loop.
// Used by the CLI.
func (al *AgentLoop) ProcessDirect(ctx context.Context, content, sessionKey string) (string, error) {
	if sessionKey == "" {
		sessionKey = bus.CLIChannel + ":direct"
	}
	return al.runAgentLoop(ctx, processOptions{
		SessionKey:      sessionKey,
		Channel:         bus.CLIChannel,
		ChatID:          "direct",
		UserMessage:     content,
		DefaultResponse: defaultResponse,
	})
}

// ProcessHeartbeat runs a heartbeat prompt without session history. Each
// heartbeat is independent and doesn't accumulate context.
func (al *AgentLoop) ProcessHeartbeat(ctx context.Context, content, channel, chatID string) (string, error) {
	return al.runAgentLoop(ctx, processOptions{
		SessionKey:      "heartbeat",
		Channel:         channel,
		ChatID:          chatID,
		UserMessage:     content,
		DefaultResponse: "HEARTBEAT_OK",
		NoHistory:       true,
	})
}

func (al *AgentLoop) processMessage(ctx context.Context, msg bus.InboundMessage) (response string, err error) {
	// One recovery per message: a panic anywhere in the cycle (provider,
	// context builder, session code) becomes an apologetic reply instead of
	// killing the consume loop.
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("agent", "Panic while processing message",
				map[string]interface{}{
					"channel": msg.Channel,
					"chat_id": msg.ChatID,
					"panic":   fmt.Sprintf("%v", rec),
				})
			response = "Sorry, something went wrong while processing that message. Please try again."
			err = nil
		}
	}()

	logContent := utils.Truncate(msg.Content, 80)
	logger.InfoCF("agent", fmt.Sprintf("Processing message from %s:%s: %s", msg.Channel, msg.SenderID, logContent),
		map[string]interface{}{
			"channel":   msg.Channel,
			"chat_id":   msg.ChatID,
			"sender_id": msg.SenderID,
		})

	if msg.Channel == bus.SystemChannel {
		return al.processSystemMessage(ctx, msg)
	}

	sessionKey := msg.SessionKey()

	// Built-in command: wipe the conversation without a model round-trip.
	if strings.ToLower(strings.TrimSpace(msg.Content)) == "/clear" {
		al.sessions.Clear(sessionKey)
		al.sessions.Save(sessionKey)
		logger.InfoCF("agent", "User cleared session history",
			map[string]interface{}{
				"session_key": sessionKey,
				"channel":     msg.Channel,
			})
		return "Session cleared, let's start fresh.", nil
	}

	return al.runAgentLoop(ctx, processOptions{
		SessionKey:      sessionKey,
		Channel:         msg.Channel,
		ChatID:          msg.ChatID,
		UserMessage:     msg.Content,
		DefaultResponse: defaultResponse,
	})
}

// processSystemMessage handles internal announcements, mainly subagent
// completions. The origin conversation is encoded in ChatID as
// "channel:chat_id" so the result can be routed back to whoever asked.
func (al *AgentLoop) processSystemMessage(ctx context.Context, msg bus.InboundMessage) (string, error) {
	if msg.Channel != bus.SystemChannel {
		return "", fmt.Errorf("processSystemMessage called with non-system message channel: %s", msg.Channel)
	}

	logger.InfoCF("agent", "Processing system message",
		map[string]interface{}{
			"sender_id": msg.SenderID,
			"chat_id":   msg.ChatID,
		})

	var originChannel, originChatID string
	if idx := strings.Index(msg.ChatID, ":"); idx > 0 {
		originChannel = msg.ChatID[:idx]
		originChatID = msg.ChatID[idx+1:]
	} else {
		originChannel = bus.CLIChannel
		originChatID = msg.ChatID
	}

	// Internal origins (cli, system) have no delivery channel; log and stop.
	if isInternalChannel(originChannel) {
		logger.InfoCF("agent", "Background task completed (internal origin)",
			map[string]interface{}{
				"sender_id":   msg.SenderID,
				"content_len": len(msg.Content),
				"channel":     originChannel,
			})
		return "", nil
	}

	sessionKey := originChannel + ":" + originChatID

	// The round publishes to the origin conversation itself; returning an
	// empty response keeps Run from double-sending.
	_, err := al.runAgentLoop(ctx, processOptions{
		SessionKey:      sessionKey,
		Channel:         originChannel,
		ChatID:          originChatID,
		UserMessage:     fmt.Sprintf("[System: %s] %s", msg.SenderID, msg.Content),
		DefaultResponse: "Background task completed.",
		SendResponse:    true,
	})
	return "", err
}

// runAgentLoop is the core per-message processing: build context, run the
// bounded LLM iteration cycle, persist the exchange, reply.
func (al *AgentLoop) runAgentLoop(ctx context.Context, opts processOptions) (string, error) {
	started := time.Now()

	al.updateToolContexts(opts.Channel, opts.ChatID, opts.SessionKey)

	var history []providers.Message
	if !opts.NoHistory {
		history = al.sessions.GetHistory(opts.SessionKey)
	}
	messages := al.contextBuilder.BuildMessages(history, opts.UserMessage, opts.Channel, opts.ChatID)

	result, err := tools.RunToolLoop(ctx, tools.ToolLoopConfig{
		Provider:      al.provider,
		Model:         al.model,
		Tools:         al.registry,
		MaxIterations: al.maxIterations,
		LLMOptions: map[string]interface{}{
			"max_tokens":  al.cfg.Agents.Defaults.MaxTokens,
			"temperature": al.cfg.Agents.Defaults.Temperature,
		},
		Metrics: al.metrics,
		// Async completions come back through the bus as system messages;
		// here we only log.
		AsyncCallback: func(cbCtx context.Context, res *tools.ToolResult) {
			if !res.Silent && res.ForUser != "" {
				logger.InfoCF("agent", "Async tool completed, result arrives via system message",
					map[string]interface{}{
						"content_len": len(res.ForUser),
					})
			}
		},
		// Relay user-facing tool output right away for bus-driven rounds
		// (system message handling).
		OnToolResult: func(toolName string, res *tools.ToolResult) {
			if opts.SendResponse && !res.Silent && res.ForUser != "" {
				al.bus.PublishOutbound(bus.OutboundMessage{
					Channel: opts.Channel,
					ChatID:  opts.ChatID,
					Content: res.ForUser,
				})
			}
		},
	}, messages, opts.Channel, opts.ChatID, opts.SessionKey)

	al.recordRound(opts, started, result, err)

	if err != nil {
		return "", err
	}

	finalContent := result.Content
	if finalContent == "" {
		finalContent = opts.DefaultResponse
	}
	if result.Truncated {
		logger.WarnCF("agent", "Iteration cap reached before a direct answer",
			map[string]interface{}{
				"session_key": opts.SessionKey,
				"iterations":  result.Iterations,
			})
	}

	// Persist exactly the user/assistant pair; intermediate tool traffic
	// stays within the round.
	if !opts.NoHistory {
		al.sessions.AddMessage(opts.SessionKey, "user", opts.UserMessage)
		al.sessions.AddMessage(opts.SessionKey, "assistant", finalContent)
		al.sessions.Save(opts.SessionKey)
	}

	if opts.SendResponse {
		al.bus.PublishOutbound(bus.OutboundMessage{
			Channel: opts.Channel,
			ChatID:  opts.ChatID,
			Content: finalContent,
		})
	}

	responsePreview := utils.Truncate(finalContent, 120)
	logger.InfoCF("agent", fmt.Sprintf("Response: %s", responsePreview),
		map[string]interface{}{
			"session_key":  opts.SessionKey,
			"iterations":   result.Iterations,
			"final_length": len(finalContent),
		})

	return finalContent, nil
}

// updateToolContexts points contextual tools at the conversation being
// processed.
func (al *AgentLoop) updateToolContexts(channel, chatID, sessionKey string) {
	for _, name := range []string{"message", "spawn", "subagent"} {
		if tool, ok := al.registry.Get(name); ok {
			if ct, ok := tool.(tools.ContextualTool); ok {
				ct.SetContext(channel, chatID, sessionKey)
			}
		}
	}
}

func (al *AgentLoop) recordRound(opts processOptions, started time.Time, result *tools.ToolLoopResult, err error) {
	if al.metrics == nil {
		return
	}
	summary := metrics.RoundSummary{
		SessionKey: opts.SessionKey,
		StartedAt:  started.UTC().Format(time.RFC3339),
		EndedAt:    time.Now().UTC().Format(time.RFC3339),
		DurationMS: time.Since(started).Milliseconds(),
		Success:    err == nil,
		Channel:    opts.Channel,
		Model:      al.model,
	}
	if result != nil {
		summary.TotalIterations = result.Iterations
		summary.TotalToolCalls = result.ToolCalls
		summary.TotalTokens = result.TotalTokens
	}
	if err != nil {
		summary.FailureReason = utils.Truncate(err.Error(), 200)
	}
	al.metrics.RecordRound(summary)
}

func isInternalChannel(channel string) bool {
	return channel == bus.CLIChannel || channel == bus.SystemChannel
}
