// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegohandler"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/clawlab/tinyclaw/pkg/bus"
	"github.com/clawlab/tinyclaw/pkg/config"
	"github.com/clawlab/tinyclaw/pkg/logger"
	"github.com/clawlab/tinyclaw/pkg/utils"
)

// Telegram caps messages at 4096 chars; leave headroom for HTML tags.
const telegramChunkSize = 4000

var (
	reHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	reQuote      = regexp.MustCompile(`(?m)^>\s*(.*)$`)
	reMDLink     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalicWord = regexp.MustCompile(`\b_([^_]+)_\b`)
	reStrike     = regexp.MustCompile(`~~(.+?)~~`)
	reBullet     = regexp.MustCompile(`(?m)^[-*]\s+`)
	reFence      = regexp.MustCompile("```[\\w]*\\n?([\\s\\S]*?)```")
	reBacktick   = regexp.MustCompile("`([^`]+)`")
)

type TelegramChannel struct {
	*BaseChannel
	bot *telego.Bot
	cfg config.TelegramConfig
}

func NewTelegramChannel(cfg config.TelegramConfig, msgBus bus.Broker) (*TelegramChannel, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	} else if os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" {
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", msgBus, cfg.AllowFrom),
		bot:         bot,
		cfg:         cfg,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)")

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	bh, err := telegohandler.NewBotHandler(c.bot, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}

	bh.HandleMessage(func(hctx *th.Context, message telego.Message) error {
		c.handleMessage(hctx, &message)
		return nil
	}, th.AnyMessageWithText())

	c.setRunning(true)
	logger.InfoCF("telegram", "Telegram bot connected", map[string]interface{}{
		"username": c.bot.Username(),
	})

	go bh.Start()
	go func() {
		<-ctx.Done()
		bh.Stop()
	}()

	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	logger.InfoC("telegram", "Stopping Telegram bot")
	c.setRunning(false)
	return nil
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, threadID, err := parseTelegramChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	var lastErr error
	for _, chunk := range utils.SplitMessage(msg.Content, telegramChunkSize) {
		params := &telego.SendMessageParams{
			ChatID:    tu.ID(chatID),
			Text:      markdownToTelegramHTML(chunk),
			ParseMode: telego.ModeHTML,
		}
		if threadID != 0 {
			params.MessageThreadID = threadID
		}

		if _, err := c.bot.SendMessage(ctx, params); err != nil {
			// HTML parse errors fall back to plain text once.
			logger.WarnCF("telegram", "HTML send failed, retrying as plain text",
				map[string]interface{}{"error": err.Error()})
			params.ParseMode = ""
			params.Text = chunk
			if _, err := c.bot.SendMessage(ctx, params); err != nil {
				lastErr = err
			}
		}
	}

	return lastErr
}

func (c *TelegramChannel) handleMessage(ctx context.Context, message *telego.Message) {
	if message == nil || message.From == nil {
		return
	}
	user := message.From

	senderID := strconv.FormatInt(user.ID, 10)
	if user.Username != "" {
		senderID = senderID + "|" + user.Username
	}

	if !c.IsAllowed(senderID) {
		logger.DebugCF("telegram", "Message rejected by allowlist",
			map[string]interface{}{"user_id": senderID})
		return
	}

	chatIDStr := strconv.FormatInt(message.Chat.ID, 10)
	// Forum topics get their own conversation identity.
	if message.MessageThreadID != 0 {
		chatIDStr = fmt.Sprintf("%d:%d", message.Chat.ID, message.MessageThreadID)
	}

	content := message.Text
	if content == "" {
		content = message.Caption
	}
	if content == "" {
		return
	}

	logger.DebugCF("telegram", "Received message", map[string]interface{}{
		"sender_id": senderID,
		"chat_id":   chatIDStr,
		"preview":   utils.Truncate(content, 50),
	})

	actionParams := &telego.SendChatActionParams{
		ChatID: tu.ID(message.Chat.ID),
		Action: telego.ChatActionTyping,
	}
	if message.MessageThreadID != 0 {
		actionParams.MessageThreadID = message.MessageThreadID
	}
	if err := c.bot.SendChatAction(ctx, actionParams); err != nil {
		logger.DebugCF("telegram", "Chat action failed",
			map[string]interface{}{"error": err.Error()})
	}

	metadata := map[string]string{
		"message_id": strconv.Itoa(message.MessageID),
		"user_id":    strconv.FormatInt(user.ID, 10),
		"username":   user.Username,
		"is_group":   strconv.FormatBool(message.Chat.Type != "private"),
	}
	if message.MessageThreadID != 0 {
		metadata["thread_id"] = strconv.Itoa(message.MessageThreadID)
	}

	c.HandleMessage(strconv.FormatInt(user.ID, 10), chatIDStr, content, nil, metadata)
}

// parseTelegramChatID splits a composite "chat" or "chat:thread" identifier.
func parseTelegramChatID(s string) (int64, int, error) {
	parts := strings.SplitN(s, ":", 2)
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chat ID format: %w", err)
	}

	var threadID int
	if len(parts) > 1 {
		threadID, err = strconv.Atoi(parts[1])
		if err != nil {
			return chatID, 0, fmt.Errorf("invalid thread ID format: %w", err)
		}
	}
	return chatID, threadID, nil
}

// markdownToTelegramHTML converts the markdown subset the model produces into
// Telegram-safe HTML. Code spans are pulled out first so their contents
// escape the other rewrites.
func markdownToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	fences := stashMatches(&text, reFence, "\x00CB%d\x00")
	spans := stashMatches(&text, reBacktick, "\x00IC%d\x00")

	text = reHeading.ReplaceAllString(text, "$1")
	text = reQuote.ReplaceAllString(text, "$1")
	text = escapeTelegramHTML(text)
	text = reMDLink.ReplaceAllString(text, `<a href="$2">$1</a>`)
	text = reBold.ReplaceAllString(text, "<b>$1</b>")
	text = reItalicWord.ReplaceAllString(text, "<i>$1</i>")
	text = reStrike.ReplaceAllString(text, "<s>$1</s>")
	text = reBullet.ReplaceAllString(text, "• ")

	for i, code := range spans {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00IC%d\x00", i),
			"<code>"+escapeTelegramHTML(code)+"</code>")
	}
	for i, code := range fences {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00CB%d\x00", i),
			"<pre><code>"+escapeTelegramHTML(code)+"</code></pre>")
	}

	return text
}

// stashMatches replaces every match of re with a numbered placeholder and
// returns the captured contents in order.
func stashMatches(text *string, re *regexp.Regexp, placeholder string) []string {
	matches := re.FindAllStringSubmatch(*text, -1)
	captured := make([]string, 0, len(matches))
	for _, m := range matches {
		captured = append(captured, m[1])
	}

	i := 0
	*text = re.ReplaceAllStringFunc(*text, func(string) string {
		p := fmt.Sprintf(placeholder, i)
		i++
		return p
	})
	return captured
}

func escapeTelegramHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}
