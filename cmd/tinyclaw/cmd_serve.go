// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/channels"
	"github.com/clawlab/tinyclaw/pkg/heartbeat"
	"github.com/clawlab/tinyclaw/pkg/logger"
	"github.com/clawlab/tinyclaw/pkg/tools"
)

// serveCmd runs the full runtime: agent loop, chat channels, outbound
// dispatch, and the heartbeat scheduler.
func serveCmd() {
	for _, arg := range os.Args[2:] {
		if arg == "--debug" || arg == "-d" {
			logger.SetLevel(logger.DEBUG)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		fmt.Println("Run 'tinyclaw onboard' first.")
		os.Exit(1)
	}

	msgBus := bus.NewMessageBus()

	agentLoop, err := buildAgentLoop(cfg, msgBus)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	manager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		fmt.Printf("Error building channels: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager.StartAll(ctx)
	go manager.DispatchOutbound(ctx)
	go agentLoop.Run(ctx)

	hb := heartbeat.NewHeartbeatService(cfg.WorkspacePath(), cfg.Heartbeat.IntervalMinutes, cfg.Heartbeat.Enabled)
	hb.SetTarget(cfg.Heartbeat.Channel, cfg.Heartbeat.ChatID)
	if err := hb.SetCron(cfg.Heartbeat.Cron); err != nil {
		fmt.Printf("Error in heartbeat config: %v\n", err)
		os.Exit(1)
	}
	hb.SetHandler(func(prompt, channel, chatID string) *tools.ToolResult {
		content, err := agentLoop.ProcessHeartbeat(ctx, prompt, channel, chatID)
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		// Only notable outcomes get delivered; the idle marker stays quiet.
		if channel != "" && chatID != "" && !strings.Contains(content, "HEARTBEAT_OK") {
			msgBus.PublishOutbound(bus.OutboundMessage{
				Channel: channel,
				ChatID:  chatID,
				Content: content,
			})
		}
		return tools.NewToolResult(content)
	})
	if err := hb.Start(); err != nil {
		fmt.Printf("Error starting heartbeat: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s tinyclaw is running (channels: %v). Ctrl+C to stop.\n", logo, manager.Active())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	hb.Stop()
	agentLoop.Stop()
	manager.StopAll(context.Background())
	cancel()
	agentLoop.Subagents().Wait()
	msgBus.Close()
}
