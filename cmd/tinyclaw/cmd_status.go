// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package main

import (
	"fmt"
	"os"
)

func statusCmd() {
	fmt.Printf("%s tinyclaw status\n\n", logo)

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("Config:    not found (%s)\n", configPath)
		fmt.Println("\nRun 'tinyclaw onboard' to get started.")
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Config:    invalid (%v)\n", err)
		return
	}

	fmt.Printf("Config:    %s\n", configPath)
	fmt.Printf("Workspace: %s\n", cfg.WorkspacePath())
	fmt.Printf("Provider:  %s (%s)\n", cfg.Agents.Defaults.Provider, cfg.Agents.Defaults.Model)

	keyConfigured := cfg.Providers.Anthropic.APIKey != "" || cfg.Providers.OpenAI.APIKey != ""
	fmt.Printf("API key:   %s\n", configuredMarker(keyConfigured))

	fmt.Println("\nChannels:")
	fmt.Printf("  telegram:  %s\n", enabledMarker(cfg.Channels.Telegram.Enabled))
	fmt.Printf("  discord:   %s\n", enabledMarker(cfg.Channels.Discord.Enabled))
	fmt.Printf("  slack:     %s\n", enabledMarker(cfg.Channels.Slack.Enabled))
	fmt.Printf("  whatsapp:  %s\n", enabledMarker(cfg.Channels.WhatsApp.Enabled))

	fmt.Println()
	if cfg.Heartbeat.Enabled {
		fmt.Printf("Heartbeat: enabled (every %dm", cfg.Heartbeat.IntervalMinutes)
		if cfg.Heartbeat.Cron != "" {
			fmt.Printf(", cron %q", cfg.Heartbeat.Cron)
		}
		fmt.Println(")")
	} else {
		fmt.Println("Heartbeat: disabled")
	}
}

func enabledMarker(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func configuredMarker(ok bool) string {
	if ok {
		return "configured"
	}
	return "missing"
}
