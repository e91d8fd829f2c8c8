// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

// Package heartbeat wakes the agent periodically so it can act without a
// user message: check reminders, follow up on tasks, tidy the workspace.
// The instructions live in HEARTBEAT.md at the workspace root.
package heartbeat

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/clawlab/tinyclaw/pkg/logger"
	"github.com/clawlab/tinyclaw/pkg/tools"
)

const heartbeatFile = "HEARTBEAT.md"

const defaultHeartbeatTemplate = `# Heartbeat Tasks

Instructions checked on every heartbeat. Edit this file to give the
assistant standing duties.

- (no tasks yet)
`

const promptPreamble = "This is a scheduled heartbeat, not a user message. " +
	"Work through the tasks below. If nothing needs attention, reply with exactly HEARTBEAT_OK."

// HeartbeatHandler runs one heartbeat prompt and returns the outcome.
type HeartbeatHandler func(prompt, channel, chatID string) *tools.ToolResult

type HeartbeatService struct {
	workspace string
	interval  time.Duration
	enabled   bool
	cronExpr  string
	channel   string
	chatID    string

	handler  HeartbeatHandler
	gron     *gronx.Gronx
	stopChan chan struct{}
	mu       sync.Mutex
}

func NewHeartbeatService(workspace string, intervalMinutes int, enabled bool) *HeartbeatService {
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}
	return &HeartbeatService{
		workspace: workspace,
		interval:  time.Duration(intervalMinutes) * time.Minute,
		enabled:   enabled,
		gron:      gronx.New(),
	}
}

func (hs *HeartbeatService) SetHandler(handler HeartbeatHandler) {
	hs.handler = handler
}

// SetCron restricts heartbeat execution to ticks where the cron expression
// is due. Empty means every tick fires.
func (hs *HeartbeatService) SetCron(expr string) error {
	if expr != "" && !hs.gron.IsValid(expr) {
		return fmt.Errorf("invalid cron expression: %s", expr)
	}
	hs.cronExpr = expr
	return nil
}

// SetTarget sets where heartbeat-initiated messages should be delivered.
func (hs *HeartbeatService) SetTarget(channel, chatID string) {
	hs.channel = channel
	hs.chatID = chatID
}

func (hs *HeartbeatService) Start() error {
	if !hs.enabled {
		logger.InfoC("heartbeat", "Heartbeat disabled")
		return nil
	}
	if hs.handler == nil {
		return fmt.Errorf("heartbeat handler not set")
	}

	hs.mu.Lock()
	if hs.stopChan != nil {
		hs.mu.Unlock()
		return fmt.Errorf("heartbeat already running")
	}
	hs.stopChan = make(chan struct{})
	stop := hs.stopChan
	hs.mu.Unlock()

	logger.InfoCF("heartbeat", "Heartbeat started", map[string]interface{}{
		"interval": hs.interval.String(),
		"cron":     hs.cronExpr,
	})

	go hs.run(stop)
	return nil
}

func (hs *HeartbeatService) Stop() {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.stopChan != nil {
		close(hs.stopChan)
		hs.stopChan = nil
	}
}

func (hs *HeartbeatService) run(stop chan struct{}) {
	ticker := time.NewTicker(hs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !hs.due() {
				continue
			}
			hs.executeHeartbeat()
		}
	}
}

func (hs *HeartbeatService) due() bool {
	if hs.cronExpr == "" {
		return true
	}
	ok, err := hs.gron.IsDue(hs.cronExpr, time.Now())
	if err != nil {
		hs.log("ERROR", fmt.Sprintf("Cron evaluation failed: %v", err))
		return false
	}
	return ok
}

func (hs *HeartbeatService) executeHeartbeat() {
	prompt := hs.buildPrompt()
	if prompt == "" {
		return
	}

	hs.log("INFO", "Heartbeat triggered")

	result := hs.handler(prompt, hs.channel, hs.chatID)
	if result == nil {
		hs.log("WARN", "Heartbeat handler returned no result")
		return
	}

	switch {
	case result.IsError:
		hs.log("ERROR", fmt.Sprintf("Heartbeat failed: %s", result.ForLLM))
	case result.Async:
		hs.log("INFO", "Heartbeat started background work")
	default:
		hs.log("INFO", fmt.Sprintf("Heartbeat completed: %s", result.ForLLM))
	}
}

// buildPrompt reads HEARTBEAT.md, creating the default template on first
// use, and wraps it with the heartbeat preamble.
func (hs *HeartbeatService) buildPrompt() string {
	path := filepath.Join(hs.workspace, heartbeatFile)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if writeErr := os.WriteFile(path, []byte(defaultHeartbeatTemplate), 0644); writeErr != nil {
			hs.log("ERROR", fmt.Sprintf("Cannot create %s: %v", heartbeatFile, writeErr))
			return ""
		}
		data = []byte(defaultHeartbeatTemplate)
	} else if err != nil {
		hs.log("ERROR", fmt.Sprintf("Cannot read %s: %v", heartbeatFile, err))
		return ""
	}

	return promptPreamble + "\n\n" + string(data)
}

// log appends to heartbeat.log at the workspace root, so heartbeat activity
// survives restarts and stays inspectable by the agent itself.
func (hs *HeartbeatService) log(level, msg string) {
	line := fmt.Sprintf("%s [%s] %s\n", time.Now().Format(time.RFC3339), level, msg)

	path := filepath.Join(hs.workspace, "heartbeat.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.WarnCF("heartbeat", "Cannot write heartbeat log",
			map[string]interface{}{"error": err.Error()})
		return
	}
	defer f.Close()
	f.WriteString(line)
}
