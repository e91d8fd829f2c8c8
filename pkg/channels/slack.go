// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/config"
	"github.com/clawlab/tinyclaw/pkg/logger"
	"github.com/clawlab/tinyclaw/pkg/utils"
)

// SlackChannel connects through Socket Mode, so no public webhook endpoint
// is needed. Thread replies keep their own conversation identity via the
// composite "channel/thread_ts" chat ID.
type SlackChannel struct {
	*BaseChannel
	cfg          config.SlackConfig
	api          *slack.Client
	socketClient *socketmode.Client
	botUserID    string
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewSlackChannel(cfg config.SlackConfig, msgBus bus.Broker) (*SlackChannel, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack bot_token and app_token are required")
	}

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	return &SlackChannel{
		BaseChannel:  NewBaseChannel("slack", msgBus, cfg.AllowFrom),
		cfg:          cfg,
		api:          api,
		socketClient: socketmode.New(api),
	}, nil
}

func (c *SlackChannel) Start(ctx context.Context) error {
	logger.InfoC("slack", "Starting Slack channel (Socket Mode)")

	c.ctx, c.cancel = context.WithCancel(ctx)

	authResp, err := c.api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth test failed: %w", err)
	}
	c.botUserID = authResp.UserID

	go c.eventLoop()
	go func() {
		if err := c.socketClient.RunContext(c.ctx); err != nil && c.ctx.Err() == nil {
			logger.ErrorCF("slack", "Socket Mode connection error",
				map[string]interface{}{"error": err.Error()})
		}
	}()

	c.setRunning(true)
	logger.InfoCF("slack", "Slack bot connected", map[string]interface{}{
		"bot_user_id": c.botUserID,
		"team":        authResp.Team,
	})
	return nil
}

func (c *SlackChannel) Stop(ctx context.Context) error {
	logger.InfoC("slack", "Stopping Slack channel")
	if c.cancel != nil {
		c.cancel()
	}
	c.setRunning(false)
	return nil
}

func (c *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("slack channel not running")
	}

	channelID, threadTS := parseSlackChatID(msg.ChatID)
	if channelID == "" {
		return fmt.Errorf("invalid slack chat ID: %s", msg.ChatID)
	}

	opts := []slack.MsgOption{slack.MsgOptionText(msg.Content, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	if _, _, err := c.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		return fmt.Errorf("failed to send slack message: %w", err)
	}
	return nil
}

func (c *SlackChannel) eventLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case event, ok := <-c.socketClient.Events:
			if !ok {
				return
			}
			if event.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			if event.Request != nil {
				c.socketClient.Ack(*event.Request)
			}

			apiEvent, ok := event.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}

			switch ev := apiEvent.InnerEvent.Data.(type) {
			case *slackevents.MessageEvent:
				c.handleMessageEvent(ev)
			case *slackevents.AppMentionEvent:
				c.handleAppMention(ev)
			}
		}
	}
}

func (c *SlackChannel) handleMessageEvent(ev *slackevents.MessageEvent) {
	if ev.User == c.botUserID || ev.User == "" || ev.BotID != "" {
		return
	}
	if ev.SubType != "" {
		return
	}

	if !c.IsAllowed(ev.User) {
		logger.DebugCF("slack", "Message rejected by allowlist",
			map[string]interface{}{"user_id": ev.User})
		return
	}

	chatID := ev.Channel
	if ev.ThreadTimeStamp != "" {
		chatID = ev.Channel + "/" + ev.ThreadTimeStamp
	}

	content := strings.TrimSpace(c.stripBotMention(ev.Text))
	if content == "" {
		return
	}

	// Eyes on the message acknowledges receipt before the answer lands.
	c.api.AddReaction("eyes", slack.ItemRef{
		Channel:   ev.Channel,
		Timestamp: ev.TimeStamp,
	})

	logger.DebugCF("slack", "Received message", map[string]interface{}{
		"sender_id": ev.User,
		"chat_id":   chatID,
		"preview":   utils.Truncate(content, 50),
	})

	metadata := map[string]string{
		"message_ts": ev.TimeStamp,
		"channel_id": ev.Channel,
		"thread_ts":  ev.ThreadTimeStamp,
	}

	c.HandleMessage(ev.User, chatID, content, nil, metadata)
}

func (c *SlackChannel) handleAppMention(ev *slackevents.AppMentionEvent) {
	if ev.User == c.botUserID {
		return
	}
	if !c.IsAllowed(ev.User) {
		logger.DebugCF("slack", "Mention rejected by allowlist",
			map[string]interface{}{"user_id": ev.User})
		return
	}

	// Mentions start (or continue) a thread keyed conversation.
	chatID := ev.Channel + "/" + ev.TimeStamp
	if ev.ThreadTimeStamp != "" {
		chatID = ev.Channel + "/" + ev.ThreadTimeStamp
	}

	content := strings.TrimSpace(c.stripBotMention(ev.Text))
	if content == "" {
		return
	}

	c.api.AddReaction("eyes", slack.ItemRef{
		Channel:   ev.Channel,
		Timestamp: ev.TimeStamp,
	})

	metadata := map[string]string{
		"message_ts": ev.TimeStamp,
		"channel_id": ev.Channel,
		"thread_ts":  ev.ThreadTimeStamp,
		"is_mention": "true",
	}

	c.HandleMessage(ev.User, chatID, content, nil, metadata)
}

func (c *SlackChannel) stripBotMention(text string) string {
	return strings.ReplaceAll(text, fmt.Sprintf("<@%s>", c.botUserID), "")
}

func parseSlackChatID(chatID string) (channelID, threadTS string) {
	parts := strings.SplitN(chatID, "/", 2)
	channelID = parts[0]
	if len(parts) > 1 {
		threadTS = parts[1]
	}
	return
}
