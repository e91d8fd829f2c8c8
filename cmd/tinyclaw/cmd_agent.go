// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/clawlab/tinyclaw/pkg/agent"
	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/config"
	"github.com/clawlab/tinyclaw/pkg/logger"
	"github.com/clawlab/tinyclaw/pkg/metrics"
	"github.com/clawlab/tinyclaw/pkg/providers"
)

func agentCmd() {
	message := ""
	sessionKey := "cli:default"
	modelOverride := ""

	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--debug", "-d":
			logger.SetLevel(logger.DEBUG)
		case "-m", "--message":
			if i+1 < len(args) {
				message = args[i+1]
				i++
			}
		case "-s", "--session":
			if i+1 < len(args) {
				sessionKey = args[i+1]
				i++
			}
		case "--model":
			if i+1 < len(args) {
				modelOverride = args[i+1]
				i++
			}
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		fmt.Println("Run 'tinyclaw onboard' first.")
		os.Exit(1)
	}

	if modelOverride != "" {
		cfg.Agents.Defaults.Model = modelOverride
	}

	agentLoop, err := buildAgentLoop(cfg, bus.NewMessageBus())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if message != "" {
		response, err := agentLoop.ProcessDirect(context.Background(), message, sessionKey)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n%s %s\n", logo, response)
		agentLoop.Subagents().Wait()
		return
	}

	fmt.Printf("%s Interactive mode (Ctrl+C to exit)\n\n", logo)
	interactiveMode(agentLoop, sessionKey)
	agentLoop.Subagents().Wait()
}

// buildAgentLoop wires provider, metrics, and the agent loop from config.
func buildAgentLoop(cfg *config.Config, msgBus bus.Broker) (*agent.AgentLoop, error) {
	provider, model, err := providers.CreateProvider(providerSettings(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	agentLoop := agent.NewAgentLoop(cfg, msgBus, provider, model)
	agentLoop.SetMetrics(metrics.NewCollector(metricsDir(cfg)))
	return agentLoop, nil
}

func providerSettings(cfg *config.Config) providers.Settings {
	return providers.Settings{
		Provider:         cfg.Agents.Defaults.Provider,
		Model:            cfg.Agents.Defaults.Model,
		AnthropicAPIKey:  cfg.Providers.Anthropic.APIKey,
		AnthropicAPIBase: cfg.Providers.Anthropic.APIBase,
		OpenAIAPIKey:     cfg.Providers.OpenAI.APIKey,
		OpenAIAPIBase:    cfg.Providers.OpenAI.APIBase,
	}
}

func metricsDir(cfg *config.Config) string {
	return filepath.Join(cfg.WorkspacePath(), "metrics")
}

func interactiveMode(agentLoop *agent.AgentLoop, sessionKey string) {
	prompt := fmt.Sprintf("%s You: ", logo)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".tinyclaw_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		simpleInteractiveMode(agentLoop, sessionKey)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		if !handleInput(agentLoop, sessionKey, line) {
			return
		}
	}
}

func simpleInteractiveMode(agentLoop *agent.AgentLoop, sessionKey string) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s You: ", logo)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		if !handleInput(agentLoop, sessionKey, line) {
			return
		}
	}
}

// handleInput processes one REPL line; returns false when the user quits.
func handleInput(agentLoop *agent.AgentLoop, sessionKey, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if input == "exit" || input == "quit" {
		fmt.Println("Goodbye!")
		return false
	}

	response, err := agentLoop.ProcessDirect(context.Background(), input, sessionKey)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return true
	}

	fmt.Printf("\n%s %s\n\n", logo, response)
	return true
}
