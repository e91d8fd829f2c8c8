// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/clawlab/tinyclaw/pkg/config"
	"github.com/clawlab/tinyclaw/pkg/logger"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
)

const logo = "🦀"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "onboard":
		onboardCmd()
	case "agent":
		agentCmd()
	case "serve":
		serveCmd()
	case "status":
		statusCmd()
	case "stats":
		statsCmd()
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Printf("%s tinyclaw - Personal AI Assistant v%s\n\n", logo, version)
	fmt.Println("Usage: tinyclaw <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  onboard     Initialize tinyclaw configuration and workspace")
	fmt.Println("  agent       Interact with the agent directly")
	fmt.Println("  serve       Start the runtime with all enabled channels")
	fmt.Println("  status      Show tinyclaw status")
	fmt.Println("  stats       Show runtime metrics")
	fmt.Println("  version     Show version information")
}

func printVersion() {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	fmt.Printf("%s tinyclaw %s\n", logo, v)
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	fmt.Printf("  Go: %s\n", runtime.Version())
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tinyclaw", "config.json")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	return cfg, nil
}
