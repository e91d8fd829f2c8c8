// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

// Package channels connects chat platforms to the message bus. Each channel
// turns platform events into inbound messages and delivers outbound messages
// back to the platform.
package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/logger"
)

// Channel is one chat platform connection.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
}

// BaseChannel carries the shared channel plumbing: allowlist checks, the
// running flag, and inbound publishing.
type BaseChannel struct {
	name      string
	bus       bus.Broker
	allowFrom []string
	running   atomic.Bool
}

func NewBaseChannel(name string, msgBus bus.Broker, allowFrom []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       msgBus,
		allowFrom: allowFrom,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) setRunning(v bool) {
	c.running.Store(v)
}

// IsAllowed checks the sender against the allowlist. An empty allowlist
// admits everyone. Sender IDs may be composite ("id|username"); any part
// matching any entry admits the sender. Entries may carry a leading "@".
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowFrom) == 0 {
		return true
	}

	for _, part := range strings.Split(senderID, "|") {
		for _, allowed := range c.allowFrom {
			if strings.EqualFold(part, strings.TrimPrefix(allowed, "@")) {
				return true
			}
		}
	}
	return false
}

// HandleMessage publishes a received platform message onto the bus.
func (c *BaseChannel) HandleMessage(senderID, chatID, content string, media []string, metadata map[string]string) {
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Media:    media,
		Metadata: metadata,
	})

	logger.DebugCF(c.name, "Inbound message published",
		map[string]interface{}{
			"sender_id": senderID,
			"chat_id":   chatID,
		})
}
