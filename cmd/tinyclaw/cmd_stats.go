// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/clawlab/tinyclaw/pkg/metrics"
)

func statsCmd() {
	hours := 24.0

	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		if args[i] == "--hours" && i+1 < len(args) {
			if v, err := strconv.ParseFloat(args[i+1], 64); err == nil && v > 0 {
				hours = v
			}
			i++
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector(metricsDir(cfg))
	summary := metrics.Summarize(collector, hours)

	fmt.Printf("%s tinyclaw stats\n\n", logo)
	if summary.TotalRounds == 0 {
		fmt.Printf("No activity in the last %.0f hours.\n", hours)
		return
	}
	fmt.Print(summary.Format())
}
