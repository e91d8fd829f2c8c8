// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/clawlab/tinyclaw/pkg/config"
)

const defaultAgentsTemplate = `# Agent Notes

Standing instructions for your assistant. This file is loaded into every
conversation; keep it short.

- Be concise.
`

func onboardCmd() {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0755); err != nil {
		fmt.Printf("Error creating workspace: %v\n", err)
		os.Exit(1)
	}

	agentsPath := filepath.Join(workspace, "AGENTS.md")
	if _, err := os.Stat(agentsPath); os.IsNotExist(err) {
		if err := os.WriteFile(agentsPath, []byte(defaultAgentsTemplate), 0644); err != nil {
			fmt.Printf("Error writing workspace template: %v\n", err)
		}
	}

	fmt.Printf("%s tinyclaw is ready!\n", logo)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your API key to", configPath)
	fmt.Println("     (providers.anthropic.api_key or providers.openai.api_key)")
	fmt.Println("  2. Chat: tinyclaw agent -m \"Hello!\"")
	fmt.Println("  3. Enable a channel in the config and run: tinyclaw serve")
}
