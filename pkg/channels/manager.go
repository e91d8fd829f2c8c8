// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/config"
	"github.com/clawlab/tinyclaw/pkg/logger"
)

// Manager owns the enabled channels and routes outbound bus messages to
// whichever channel they name.
type Manager struct {
	channels map[string]Channel
	bus      bus.Broker
}

func NewManager(cfg *config.Config, msgBus bus.Broker) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      msgBus,
	}

	if cfg.Channels.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Channels.Telegram, msgBus)
		if err != nil {
			return nil, fmt.Errorf("telegram channel: %w", err)
		}
		m.add(ch)
	}

	if cfg.Channels.Discord.Enabled {
		ch, err := NewDiscordChannel(cfg.Channels.Discord, msgBus)
		if err != nil {
			return nil, fmt.Errorf("discord channel: %w", err)
		}
		m.add(ch)
	}

	if cfg.Channels.Slack.Enabled {
		ch, err := NewSlackChannel(cfg.Channels.Slack, msgBus)
		if err != nil {
			return nil, fmt.Errorf("slack channel: %w", err)
		}
		m.add(ch)
	}

	if cfg.Channels.WhatsApp.Enabled {
		ch, err := NewWhatsAppChannel(cfg.Channels.WhatsApp, msgBus)
		if err != nil {
			return nil, fmt.Errorf("whatsapp channel: %w", err)
		}
		m.add(ch)
	}

	return m, nil
}

func (m *Manager) add(ch Channel) {
	m.channels[ch.Name()] = ch
	// The bus handler path lets other components deliver through a channel
	// without holding a channel reference.
	m.bus.RegisterHandler(ch.Name(), func(msg bus.OutboundMessage) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return ch.Send(ctx, msg)
	})
}

// StartAll starts every enabled channel. A channel that fails to start is
// logged and skipped so one bad token doesn't take the runtime down.
func (m *Manager) StartAll(ctx context.Context) {
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Channel failed to start",
				map[string]interface{}{
					"channel": name,
					"error":   err.Error(),
				})
			continue
		}
		logger.InfoCF("channels", "Channel started", map[string]interface{}{"channel": name})
	}
}

func (m *Manager) StopAll(ctx context.Context) {
	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "Channel stop error",
				map[string]interface{}{
					"channel": name,
					"error":   err.Error(),
				})
		}
	}
}

// Active returns the names of channels that are currently running.
func (m *Manager) Active() []string {
	names := make([]string, 0, len(m.channels))
	for name, ch := range m.channels {
		if ch.IsRunning() {
			names = append(names, name)
		}
	}
	return names
}

// Count returns the number of configured channels.
func (m *Manager) Count() int {
	return len(m.channels)
}

// DispatchOutbound consumes outbound bus messages and delivers each to its
// channel. Messages for unknown channels are dropped with a log line.
// Blocks until ctx is canceled.
func (m *Manager) DispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		handler, found := m.bus.GetHandler(msg.Channel)
		if !found {
			logger.WarnCF("channels", "No channel for outbound message",
				map[string]interface{}{
					"channel": msg.Channel,
					"chat_id": msg.ChatID,
				})
			continue
		}

		if err := handler(msg); err != nil {
			logger.ErrorCF("channels", "Outbound delivery failed",
				map[string]interface{}{
					"channel": msg.Channel,
					"chat_id": msg.ChatID,
					"error":   err.Error(),
				})
		}
	}
}
