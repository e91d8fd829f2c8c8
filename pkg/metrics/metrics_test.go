package metrics

import (
	"testing"
	"time"
)

func TestCollectorRoundTrip(t *testing.T) {
	c := NewCollector(t.TempDir())
	if c == nil {
		t.Fatal("Collector should be created")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	c.RecordRound(RoundSummary{
		SessionKey:      "cli:direct",
		StartedAt:       now,
		EndedAt:         now,
		Success:         true,
		TotalIterations: 2,
		TotalToolCalls:  1,
		TotalTokens:     100,
		Model:           "test-model",
	})
	c.RecordLLMEvent(LLMEvent{SessionKey: "cli:direct", Model: "test-model", TotalTokens: 50})
	c.RecordToolEvent(ToolEvent{SessionKey: "cli:direct", ToolName: "exec", Success: true})

	rounds := c.ReadRounds(0)
	if len(rounds) != 1 {
		t.Fatalf("Expected 1 round, got %d", len(rounds))
	}
	if rounds[0].SessionKey != "cli:direct" || !rounds[0].Success {
		t.Errorf("Unexpected round: %+v", rounds[0])
	}

	events := c.ReadLLMEvents(0)
	if len(events) != 1 || events[0].TS == "" {
		t.Errorf("Expected 1 LLM event with timestamp, got %+v", events)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector

	// None of these may panic.
	c.RecordRound(RoundSummary{})
	c.RecordLLMEvent(LLMEvent{})
	c.RecordToolEvent(ToolEvent{})

	if rounds := c.ReadRounds(0); rounds != nil {
		t.Errorf("Expected nil rounds from nil collector, got %v", rounds)
	}
}

func TestSummarize(t *testing.T) {
	c := NewCollector(t.TempDir())
	now := time.Now().UTC().Format(time.RFC3339)

	c.RecordRound(RoundSummary{StartedAt: now, Success: true, TotalIterations: 2, TotalToolCalls: 1, TotalTokens: 100})
	c.RecordRound(RoundSummary{StartedAt: now, Success: false, TotalIterations: 4, TotalToolCalls: 3, TotalTokens: 300})
	// Old round outside the window.
	c.RecordRound(RoundSummary{StartedAt: "2000-01-01T00:00:00Z", Success: true, TotalTokens: 999})

	s := Summarize(c, 24)
	if s.TotalRounds != 2 {
		t.Fatalf("Expected 2 rounds in window, got %d", s.TotalRounds)
	}
	if s.SuccessRate != 50 {
		t.Errorf("Expected 50%% success, got %.1f", s.SuccessRate)
	}
	if s.TotalTokens != 400 || s.TokensPerRound != 200 {
		t.Errorf("Unexpected token totals: %+v", s)
	}
	if s.AvgIterations != 3 {
		t.Errorf("Expected avg 3 iterations, got %.1f", s.AvgIterations)
	}
}
