// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

// Package metrics writes structured runtime events to append-only JSONL
// files. One line per tool invocation, LLM call, or completed round.
package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clawlab/tinyclaw/pkg/logger"
)

// ToolEvent is a single tool invocation record.
type ToolEvent struct {
	TS         string `json:"ts"`
	SessionKey string `json:"session_key"`
	ToolName   string `json:"tool_name"`
	Success    bool   `json:"success"`
	LatencyMS  int64  `json:"latency_ms"`
	OutputSize int    `json:"output_size"`
	Error      string `json:"error,omitempty"`
	Iteration  int    `json:"iteration"`
}

// LLMEvent is a single LLM API call record.
type LLMEvent struct {
	TS               string `json:"ts"`
	SessionKey       string `json:"session_key"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	NumToolCalls     int    `json:"num_tool_calls"`
	LatencyMS        int64  `json:"latency_ms"`
	Iteration        int    `json:"iteration"`
	FinishReason     string `json:"finish_reason"`
}

// RoundSummary is an end-of-round aggregate record.
type RoundSummary struct {
	SessionKey      string   `json:"session_key"`
	StartedAt       string   `json:"started_at"`
	EndedAt         string   `json:"ended_at"`
	DurationMS      int64    `json:"duration_ms"`
	Success         bool     `json:"success"`
	TotalIterations int      `json:"total_iterations"`
	TotalToolCalls  int      `json:"total_tool_calls"`
	TotalTokens     int      `json:"total_tokens"`
	ToolsUsed       []string `json:"tools_used,omitempty"`
	FailureReason   string   `json:"failure_reason,omitempty"`
	Channel         string   `json:"channel,omitempty"`
	Model           string   `json:"model,omitempty"`
}

const (
	toolEventsFile = "tool_events.jsonl"
	llmEventsFile  = "llm_events.jsonl"
	roundsFile     = "rounds.jsonl"
)

// Collector appends events under a metrics directory. A nil *Collector is a
// valid no-op collector, so callers never have to nil-check.
type Collector struct {
	dir string
	mu  sync.Mutex
}

func NewCollector(dir string) *Collector {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.WarnCF("metrics", "Cannot create metrics directory, metrics disabled",
			map[string]interface{}{"dir": dir, "error": err.Error()})
		return nil
	}
	return &Collector{dir: dir}
}

func (c *Collector) RecordToolEvent(ev ToolEvent) {
	if ev.TS == "" {
		ev.TS = time.Now().UTC().Format(time.RFC3339)
	}
	c.append(toolEventsFile, ev)
}

func (c *Collector) RecordLLMEvent(ev LLMEvent) {
	if ev.TS == "" {
		ev.TS = time.Now().UTC().Format(time.RFC3339)
	}
	c.append(llmEventsFile, ev)
}

func (c *Collector) RecordRound(summary RoundSummary) {
	c.append(roundsFile, summary)
}

func (c *Collector) append(name string, v interface{}) {
	if c == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		logger.WarnCF("metrics", "Metrics marshal failed", map[string]interface{}{
			"file":  name,
			"error": err.Error(),
		})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(c.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.WarnCF("metrics", "Metrics write failed", map[string]interface{}{
			"file":  name,
			"error": err.Error(),
		})
		return
	}
	defer f.Close()

	f.Write(append(data, '\n'))
}

// ReadRounds returns the last limit round summaries (all when limit <= 0).
func (c *Collector) ReadRounds(limit int) []RoundSummary {
	var rounds []RoundSummary
	c.readInto(roundsFile, func(line []byte) {
		var r RoundSummary
		if err := json.Unmarshal(line, &r); err == nil {
			rounds = append(rounds, r)
		}
	})
	if limit > 0 && len(rounds) > limit {
		rounds = rounds[len(rounds)-limit:]
	}
	return rounds
}

// ReadLLMEvents returns the last limit LLM call records (all when limit <= 0).
func (c *Collector) ReadLLMEvents(limit int) []LLMEvent {
	var events []LLMEvent
	c.readInto(llmEventsFile, func(line []byte) {
		var ev LLMEvent
		if err := json.Unmarshal(line, &ev); err == nil {
			events = append(events, ev)
		}
	})
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events
}

func (c *Collector) readInto(name string, parse func(line []byte)) {
	if c == nil {
		return
	}

	f, err := os.Open(filepath.Join(c.dir, name))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 {
			parse(line)
		}
	}
}
