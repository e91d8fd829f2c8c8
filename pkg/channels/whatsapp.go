// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/config"
	"github.com/clawlab/tinyclaw/pkg/logger"
	"github.com/clawlab/tinyclaw/pkg/utils"
)

// WhatsAppChannel talks to an external bridge process over a websocket. The
// bridge owns the WhatsApp session; this side only exchanges JSON frames of
// the form {"type":"message","from":...,"chat":...,"content":...}.
type WhatsAppChannel struct {
	*BaseChannel
	cfg  config.WhatsAppConfig
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWhatsAppChannel(cfg config.WhatsAppConfig, msgBus bus.Broker) (*WhatsAppChannel, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}
	return &WhatsAppChannel{
		BaseChannel: NewBaseChannel("whatsapp", msgBus, cfg.AllowFrom),
		cfg:         cfg,
	}, nil
}

func (c *WhatsAppChannel) Start(ctx context.Context) error {
	logger.InfoCF("whatsapp", "Connecting to WhatsApp bridge",
		map[string]interface{}{"url": c.cfg.BridgeURL})

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.cfg.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WhatsApp bridge: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setRunning(true)
	logger.InfoC("whatsapp", "WhatsApp bridge connected")

	go c.listen(ctx)
	return nil
}

func (c *WhatsAppChannel) Stop(ctx context.Context) error {
	logger.InfoC("whatsapp", "Stopping WhatsApp channel")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			logger.WarnCF("whatsapp", "Error closing bridge connection",
				map[string]interface{}{"error": err.Error()})
		}
		c.conn = nil
	}

	c.setRunning(false)
	return nil
}

func (c *WhatsAppChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}

	data, err := json.Marshal(map[string]interface{}{
		"type":    "message",
		"to":      msg.ChatID,
		"content": msg.Content,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *WhatsAppChannel) listen(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			time.Sleep(time.Second)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WarnCF("whatsapp", "Bridge read error",
				map[string]interface{}{"error": err.Error()})
			time.Sleep(2 * time.Second)
			continue
		}

		var frame map[string]interface{}
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.WarnCF("whatsapp", "Malformed bridge frame",
				map[string]interface{}{"error": err.Error()})
			continue
		}

		if frameType, _ := frame["type"].(string); frameType == "message" {
			c.handleIncoming(frame)
		}
	}
}

func (c *WhatsAppChannel) handleIncoming(frame map[string]interface{}) {
	senderID, ok := frame["from"].(string)
	if !ok {
		return
	}

	if !c.IsAllowed(senderID) {
		logger.DebugCF("whatsapp", "Message rejected by allowlist",
			map[string]interface{}{"user_id": senderID})
		return
	}

	chatID, ok := frame["chat"].(string)
	if !ok {
		chatID = senderID
	}
	content, _ := frame["content"].(string)
	if content == "" {
		return
	}

	metadata := make(map[string]string)
	if messageID, ok := frame["id"].(string); ok {
		metadata["message_id"] = messageID
	}
	if userName, ok := frame["from_name"].(string); ok {
		metadata["user_name"] = userName
	}

	logger.DebugCF("whatsapp", "Received message", map[string]interface{}{
		"sender_id": senderID,
		"preview":   utils.Truncate(content, 50),
	})

	c.HandleMessage(senderID, chatID, content, nil, metadata)
}
