package metrics

import (
	"fmt"
	"strings"
	"time"
)

// Summary aggregates recent rounds for the stats command.
type Summary struct {
	PeriodHours    float64
	TotalRounds    int
	SuccessRate    float64
	AvgIterations  float64
	TotalToolCalls int
	TotalTokens    int
	TokensPerRound int
	LLMCalls       int
}

// Summarize computes a high-level summary over the last hours hours.
func Summarize(c *Collector, hours float64) Summary {
	cutoff := time.Now().Add(-time.Duration(hours * float64(time.Hour))).UTC().Format(time.RFC3339)

	var rounds []RoundSummary
	for _, r := range c.ReadRounds(0) {
		if r.StartedAt >= cutoff {
			rounds = append(rounds, r)
		}
	}

	llmCalls := 0
	for _, ev := range c.ReadLLMEvents(0) {
		if ev.TS >= cutoff {
			llmCalls++
		}
	}

	s := Summary{
		PeriodHours: hours,
		TotalRounds: len(rounds),
		LLMCalls:    llmCalls,
	}

	if len(rounds) == 0 {
		return s
	}

	successes := 0
	iterations := 0
	for _, r := range rounds {
		if r.Success {
			successes++
		}
		iterations += r.TotalIterations
		s.TotalToolCalls += r.TotalToolCalls
		s.TotalTokens += r.TotalTokens
	}

	s.SuccessRate = float64(successes) / float64(len(rounds)) * 100
	s.AvgIterations = float64(iterations) / float64(len(rounds))
	s.TokensPerRound = s.TotalTokens / len(rounds)
	return s
}

// Format renders the summary for terminal output.
func (s Summary) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %.0fh:\n", s.PeriodHours)
	fmt.Fprintf(&sb, "  rounds:          %d (%.1f%% success)\n", s.TotalRounds, s.SuccessRate)
	fmt.Fprintf(&sb, "  avg iterations:  %.1f\n", s.AvgIterations)
	fmt.Fprintf(&sb, "  tool calls:      %d\n", s.TotalToolCalls)
	fmt.Fprintf(&sb, "  llm calls:       %d\n", s.LLMCalls)
	fmt.Fprintf(&sb, "  tokens:          %d total, %d per round\n", s.TotalTokens, s.TokensPerRound)
	return sb.String()
}
